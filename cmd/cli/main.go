package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/infra"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/objectstore"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/dvloznov/student-finance/internal/report"
	"github.com/dvloznov/student-finance/internal/store"
	"github.com/rs/zerolog"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "categories":
		runCategories(cfg, log)
	case "logs":
		runLogs(cfg, log)
	case "summary":
		runSummary(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Student Finance CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import      Import a CSV bank statement (local path, gs:// or s3:// URI)")
	fmt.Println("  upload      Upload a CSV statement to GCS")
	fmt.Println("  categories  List or add categories")
	fmt.Println("  logs        Show recent import logs")
	fmt.Println("  summary     Show monthly spending by category")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openStore validates cfg and opens the configured backend or exits.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) store.Store {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	repo, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	return repo
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("file", "", "Statement path or gs:// / s3:// URI")
	userID := fs.String("user", cfg.DefaultUserID, "User ID that owns the expenses")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend (sqlite or bigquery)")
	fs.Parse(os.Args[2:])

	if *source == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := openStore(ctx, cfg, log)
	defer repo.Close()

	importer := pipeline.NewImporter(repo,
		pipeline.WithFetcher(objectstore.NewFetcher(true)),
		pipeline.WithCategorySeeding(),
	)

	result, err := importer.Import(ctx, pipeline.ImportRequest{
		UserID:     *userID,
		Filename:   objectstore.Filename(*source),
		SourceType: objectstore.SourceType(*source),
		SourceURI:  *source,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	s := result.Summary
	fmt.Printf("Imported %s: %d rows, %d expenses created, %d failed, %d credits skipped.\n",
		objectstore.Filename(*source), s.TotalRows, s.Succeeded, s.Failed, s.Skipped)
	for _, msg := range s.Errors {
		fmt.Printf("  - %s\n", msg)
	}
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to statements/<filename>)")
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = "statements/" + filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	defer f.Close()

	gcs, err := objectstore.NewGCS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer gcs.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := gcs.Upload(ctx, *bucketName, *objectName, f, "text/csv")
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runCategories(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	userID := fs.String("user", cfg.DefaultUserID, "User ID")
	add := fs.String("add", "", "Create a category with this name")
	seed := fs.Bool("seed", false, "Create the default categories when the user has none")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	repo := openStore(ctx, cfg, log)
	defer repo.Close()

	if *seed {
		if _, err := store.SeedDefaultCategories(ctx, repo, *userID); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed categories")
		}
	}

	if name := strings.TrimSpace(*add); name != "" {
		c := &domain.Category{UserID: *userID, Name: name}
		if err := repo.CreateCategory(ctx, c); err != nil {
			log.Fatal().Err(err).Str("name", name).Msg("Failed to create category")
		}
		fmt.Printf("Created category %s (%s)\n", c.Name, c.ID)
	}

	categories, err := repo.ListCategories(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
}

func runLogs(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	userID := fs.String("user", cfg.DefaultUserID, "User ID")
	limit := fs.Int("limit", 20, "Number of import logs to show")
	verbose := fs.Bool("v", false, "Show per-row errors")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	repo := openStore(ctx, cfg, log)
	defer repo.Close()

	logs, err := repo.ListImportLogs(ctx, *userID, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list import logs")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tFILE\tSOURCE\tTOTAL\tOK\tFAILED")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04"), l.Filename, l.SourceType,
			l.TotalRecords, l.SuccessfulImports, l.FailedImports)
		if *verbose {
			for _, msg := range l.Errors {
				fmt.Fprintf(w, "\t  %s\t\t\t\t\n", msg)
			}
		}
	}
	w.Flush()
}

func runSummary(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	userID := fs.String("user", cfg.DefaultUserID, "User ID")
	fromStr := fs.String("from", "", "Start date YYYY-MM-DD (optional)")
	toStr := fs.String("to", "", "End date YYYY-MM-DD (optional)")
	fs.Parse(os.Args[2:])

	filter := domain.ExpenseFilter{UserID: *userID}
	var err error
	if *fromStr != "" {
		if filter.From, err = civil.ParseDate(*fromStr); err != nil {
			log.Fatal().Err(err).Str("from", *fromStr).Msg("Error: invalid from date, expected YYYY-MM-DD")
		}
	}
	if *toStr != "" {
		if filter.To, err = civil.ParseDate(*toStr); err != nil {
			log.Fatal().Err(err).Str("to", *toStr).Msg("Error: invalid to date, expected YYYY-MM-DD")
		}
	}

	ctx := logger.WithContext(context.Background(), log)
	repo := openStore(ctx, cfg, log)
	defer repo.Close()

	expenses, err := repo.ListExpenses(ctx, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expenses")
	}
	categories, err := repo.ListCategories(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}

	summary := report.Summarize(expenses, categories)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, m := range summary.Months {
		fmt.Fprintf(w, "%s\t¥%d\t%d items\t\n", m.Label(), m.Total, m.Count)
		for _, c := range m.ByCategory {
			fmt.Fprintf(w, "  %s\t¥%d\t%d items\t\n", c.CategoryName, c.Total, c.Count)
		}
	}
	fmt.Fprintf(w, "Total\t¥%d\t%d items\t\n", summary.Total, summary.Count)
	w.Flush()
}
