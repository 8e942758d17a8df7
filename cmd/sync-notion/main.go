package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/infra"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/notionsync"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	// Parse CLI flags
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	userID := flag.String("user", cfg.DefaultUserID, "User whose expenses are exported")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionExpensesDBID, "Notion database ID (or NOTION_EXPENSES_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	prune := flag.Bool("prune", false, "Archive pages in the range whose expense no longer exists")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend (sqlite or bigquery)")
	flag.Parse()

	// Validate required flags
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Parse dates
	startDate, err := civil.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}

	endDate, err := civil.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}

	// Validate date range
	if endDate.Before(startDate) {
		log.Fatal().
			Str("start_date", startDate.String()).
			Str("end_date", endDate.String()).
			Msg("Error: end-date must not be before start-date")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	repo, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	defer repo.Close()

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)
	if err := notionClient.CheckDatabase(ctx, *notionDBID); err != nil {
		log.Fatal().Err(err).Msg("Notion database is not set up for expenses")
	}

	result, err := notionsync.SyncExpenses(ctx, repo, notionClient, *notionDBID, *userID, startDate, endDate,
		notionsync.Options{DryRun: *dryRun, Prune: *prune})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d deleted, %d failed.\n",
		result.Created, result.Updated, result.Deleted, result.Failed)
}
