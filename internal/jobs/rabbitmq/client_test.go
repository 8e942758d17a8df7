package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/jobs/inmemory"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp091.Publishing
	keys       []string
	publishErr error
	deliveries chan amqp091.Delivery
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, exchange+"/"+key)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error { return nil }

type ackRecorder struct {
	acked    int
	nacked   int
	requeued bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error { a.acked++; return nil }
func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}
func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func delivery(t *testing.T, job *jobs.ImportStatementJob, ack *ackRecorder) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return amqp091.Delivery{Acknowledger: ack, Body: body, DeliveryTag: 1}
}

func TestPublishImportStatement(t *testing.T) {
	ch := &fakeChannel{}
	store := inmemory.NewStore()
	q := newQueue(ch, "finance", "import_statements", store, zerolog.Nop())

	job := &jobs.ImportStatementJob{UserID: "u1", SourceURI: "s3://b/a.csv"}
	require.NoError(t, q.PublishImportStatement(context.Background(), job))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "finance/import_statements", ch.keys[0])
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, job.JobID, msg.MessageId)

	var decoded jobs.ImportStatementJob
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "s3://b/a.csv", decoded.SourceURI)
	assert.Equal(t, jobs.JobStatusPending, decoded.Status)

	stored, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, stored.Status)
}

func TestHandleDelivery(t *testing.T) {
	tests := []struct {
		name          string
		job           jobs.ImportStatementJob
		handlerErr    error
		wantAck       int
		wantNack      int
		wantRequeue   bool
		wantPublished int
		wantStatus    jobs.JobStatus
	}{
		{
			name:       "success",
			job:        jobs.ImportStatementJob{JobID: "j1", MaxRetries: 3},
			wantAck:    1,
			wantStatus: jobs.JobStatusCompleted,
		},
		{
			name:          "transient error republishes",
			job:           jobs.ImportStatementJob{JobID: "j1", MaxRetries: 3},
			handlerErr:    errors.New("timeout"),
			wantAck:       1,
			wantPublished: 1,
			wantStatus:    jobs.JobStatusPending,
		},
		{
			name:       "retries exhausted",
			job:        jobs.ImportStatementJob{JobID: "j1", MaxRetries: 3, RetryCount: 3},
			handlerErr: errors.New("timeout"),
			wantNack:   1,
			wantStatus: jobs.JobStatusFailed,
		},
		{
			name:       "permanent error",
			job:        jobs.ImportStatementJob{JobID: "j1", MaxRetries: 3},
			handlerErr: jobs.Permanent(errors.New("missing required columns")),
			wantNack:   1,
			wantStatus: jobs.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			store := inmemory.NewStore()
			q := newQueue(ch, "finance", "import_statements", store, zerolog.Nop())
			ack := &ackRecorder{}

			job := tt.job
			q.handleDelivery(context.Background(), delivery(t, &job, ack), func(ctx context.Context, j jobs.Job) error {
				return tt.handlerErr
			})

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, tt.wantNack, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeued)
			assert.Len(t, ch.published, tt.wantPublished)

			stored, err := store.GetJob(context.Background(), "j1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)

			if tt.wantPublished > 0 {
				var retry jobs.ImportStatementJob
				require.NoError(t, json.Unmarshal(ch.published[0].Body, &retry))
				assert.Equal(t, tt.job.RetryCount+1, retry.RetryCount)
				assert.Equal(t, "timeout", retry.Error)
			}
		})
	}
}

func TestHandleDelivery_RepublishFailureRequeues(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	q := newQueue(ch, "finance", "import_statements", nil, zerolog.Nop())
	ack := &ackRecorder{}

	q.handleDelivery(context.Background(), delivery(t, &jobs.ImportStatementJob{JobID: "j1", MaxRetries: 1}, ack), func(context.Context, jobs.Job) error {
		return errors.New("timeout")
	})

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeued)
}

func TestHandleDelivery_MalformedBody(t *testing.T) {
	q := newQueue(&fakeChannel{}, "finance", "import_statements", nil, zerolog.Nop())
	ack := &ackRecorder{}
	called := false

	q.handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{not json")}, func(context.Context, jobs.Job) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestStartAndStop(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp091.Delivery, 1)}
	q := newQueue(ch, "finance", "import_statements", nil, zerolog.Nop())

	handled := make(chan string, 1)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, j jobs.Job) error {
		handled <- j.GetID()
		return nil
	}))

	ack := &ackRecorder{}
	ch.deliveries <- delivery(t, &jobs.ImportStatementJob{JobID: "j42"}, ack)
	assert.Equal(t, "j42", <-handled)

	require.NoError(t, q.Stop(context.Background()))
}
