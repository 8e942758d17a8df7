package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// channel is the subset of *amqp091.Channel the queue uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Queue publishes and consumes import jobs over a durable RabbitMQ queue.
// Failed jobs are re-published with an incremented RetryCount and the
// original delivery is acked; exhausted or permanent failures are dropped.
type Queue struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	store        jobs.JobStore
	log          zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewQueue dials url and declares the exchange, queue and binding.
// store may be nil.
func NewQueue(url, exchangeName, queueName string, store jobs.JobStore, log zerolog.Logger) (*Queue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, exchangeName, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	q := newQueue(ch, exchangeName, queueName, store, log)
	q.conn = conn
	return q, nil
}

func newQueue(ch channel, exchangeName, queueName string, store jobs.JobStore, log zerolog.Logger) *Queue {
	return &Queue{
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		store:        store,
		log:          log.With().Str("queue", queueName).Logger(),
	}
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishImportStatement implements jobs.Publisher.
func (q *Queue) PublishImportStatement(ctx context.Context, job *jobs.ImportStatementJob) error {
	jobs.PrepareForPublish(job, uuid.NewString, time.Now())

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(
		pubCtx,
		q.exchangeName, // exchange
		q.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    job.JobID,
			Type:         string(jobs.JobTypeImportStatement),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	q.log.Info().Str("job_id", job.JobID).Int("retry", job.RetryCount).Msg("published import job")
	return nil
}

// Start implements jobs.Consumer. Deliveries are handled one at a time with manual ack.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.consume(ctx, msgs, handler)
	}()

	q.log.Info().Msg("started consuming import jobs")
	return nil
}

func (q *Queue) consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler jobs.JobHandler) {
	for {
		select {
		case <-ctx.Done():
			q.log.Info().Err(ctx.Err()).Msg("stopping message consumption")
			return
		case d, ok := <-msgs:
			if !ok {
				q.log.Warn().Msg("delivery channel closed")
				return
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *Queue) handleDelivery(ctx context.Context, d amqp091.Delivery, handler jobs.JobHandler) {
	var job jobs.ImportStatementJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Error().Err(err).Msg("failed to unmarshal job, dropping")
		_ = d.Nack(false, false)
		return
	}

	log := q.log.With().Str("job_id", job.JobID).Str("user_id", job.UserID).Logger()

	job.Status = jobs.JobStatusRunning
	started := time.Now()
	job.StartedAt = &started
	q.save(ctx, &job)

	err := handler(logger.WithContext(ctx, log), &job)

	completed := time.Now()
	job.CompletedAt = &completed

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, &job)
		_ = d.Ack(false)
		log.Info().Msg("job completed")

	case !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries:
		log.Warn().Err(err).Int("retry", job.RetryCount+1).Msg("job failed, retrying")
		retry := job
		retry.RetryCount++
		retry.Status = jobs.JobStatusPending
		retry.Error = err.Error()
		retry.StartedAt = nil
		retry.CompletedAt = nil
		if pubErr := q.PublishImportStatement(ctx, &retry); pubErr != nil {
			log.Error().Err(pubErr).Msg("failed to re-publish job, requeueing delivery")
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)

	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		q.save(ctx, &job)
		_ = d.Nack(false, false)
		log.Error().Err(err).Bool("permanent", jobs.IsPermanent(err)).Msg("job failed")
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.ImportStatementJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to save job state")
	}
}

// Stop implements jobs.Consumer. It waits for the in-flight delivery.
func (q *Queue) Stop(ctx context.Context) error {
	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	_ = q.Stop(context.Background())
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
