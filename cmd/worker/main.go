package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/infra"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/jobs/inmemory"
	"github.com/dvloznov/student-finance/internal/jobs/rabbitmq"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/objectstore"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	flag.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "RabbitMQ connection URL")
	flag.StringVar(&cfg.AMQPQueue, "queue-name", cfg.AMQPQueue, "RabbitMQ queue to consume")
	allowLocal := flag.Bool("allow-local", false, "Allow jobs to read statements from the local filesystem")
	flag.Parse()

	// The worker only consumes RabbitMQ; the in-memory queue runs inside cmd/api.
	cfg.QueueBackend = config.QueueRabbitMQ

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	repo, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	defer repo.Close()

	importer := pipeline.NewImporter(repo,
		pipeline.WithFetcher(objectstore.NewFetcher(*allowLocal)),
		pipeline.WithCategorySeeding(),
	)

	// Job state is tracked locally for logging; the API keeps its own view.
	jobStore := inmemory.NewStore()
	queue, err := rabbitmq.NewQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, jobStore, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}

	log.Info().Str("queue", cfg.AMQPQueue).Str("backend", cfg.Backend).Msg("Starting worker service")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return queue.Start(gctx, jobs.NewImportHandler(importer))
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down worker service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stop the queue and wait for in-flight jobs
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during graceful shutdown")
		}
		if err := queue.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close job queue")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
		os.Exit(1)
	}

	log.Info().Msg("Worker service exited")
}
