package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/student-finance/internal/api"
	"github.com/dvloznov/student-finance/internal/assistant"
	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/infra"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/jobs/inmemory"
	"github.com/dvloznov/student-finance/internal/jobs/rabbitmq"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/objectstore"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// jobQueue is what the API needs from a queue backend.
type jobQueue interface {
	jobs.Publisher
	jobs.Consumer
}

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	// Parse command-line flags
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend (sqlite or bigquery)")
	flag.StringVar(&cfg.QueueBackend, "queue", cfg.QueueBackend, "Job queue backend (memory or rabbitmq)")
	flag.Parse()

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// Initialize repositories
	repo, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	defer repo.Close()

	importer := pipeline.NewImporter(repo,
		pipeline.WithFetcher(objectstore.NewFetcher(false)),
		pipeline.WithCategorySeeding(),
	)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	queue, err := newJobQueue(cfg, jobStore, log)
	if err != nil {
		log.Fatal().Err(err).Str("queue", cfg.QueueBackend).Msg("Failed to create job queue")
	}

	deps := api.Deps{
		Store:         repo,
		Importer:      importer,
		Publisher:     queue,
		JobStore:      jobStore,
		MaxRetries:    cfg.MaxRetries,
		DefaultUserID: cfg.DefaultUserID,
		Log:           log,
	}

	if gen, err := assistant.NewGeminiGenerator(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Assistant disabled: Gemini client unavailable")
	} else {
		deps.Assistant = assistant.New(gen, repo)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// The in-memory queue is consumed in-process; RabbitMQ jobs go to cmd/worker.
	if cfg.QueueBackend == config.QueueMemory {
		if err := queue.Start(gctx, jobs.NewImportHandler(importer)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
	}

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.Backend).Str("queue", cfg.QueueBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}

		// Stop job queue and wait for in-flight jobs
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		if err := queue.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close job queue")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}

	log.Info().Msg("Server exited")
}

func newJobQueue(cfg *config.Config, store jobs.JobStore, log zerolog.Logger) (jobQueue, error) {
	switch cfg.QueueBackend {
	case config.QueueRabbitMQ:
		return rabbitmq.NewQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, store, log)
	default:
		return inmemory.NewQueue(cfg.QueueBuffer, store,
			inmemory.WithWorkers(cfg.WorkerCount),
			inmemory.WithLogger(log),
		), nil
	}
}
