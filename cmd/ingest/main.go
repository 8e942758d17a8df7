package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/jobs/rabbitmq"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/objectstore"
)

// ingest enqueues statement imports for cmd/worker over RabbitMQ.
func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	// Parse CLI flags
	sourceURI := flag.String("source-uri", "", "Statement URI (e.g. gs://bucket/statements/may.csv)")
	userID := flag.String("user", cfg.DefaultUserID, "User ID that owns the expenses")
	flag.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "RabbitMQ connection URL")
	flag.Parse()

	if *sourceURI == "" {
		log.Fatal().Msg("Error: --source-uri is required")
	}
	loc, err := objectstore.ParseURI(*sourceURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid --source-uri")
	}
	if loc.Scheme == objectstore.SchemeFile {
		log.Fatal().Msg("Error: --source-uri must be a gs:// or s3:// URI the worker can read")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	queue, err := rabbitmq.NewQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer queue.Close()

	job := &jobs.ImportStatementJob{
		UserID:     *userID,
		SourceURI:  *sourceURI,
		Filename:   objectstore.Filename(*sourceURI),
		MaxRetries: cfg.MaxRetries,
	}
	if err := queue.PublishImportStatement(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to enqueue import job")
	}

	log.Info().Str("job_id", job.JobID).Str("source_uri", *sourceURI).Msg("Import job enqueued")
	fmt.Printf("Enqueued import job %s for %s\n", job.JobID, *sourceURI)
}
