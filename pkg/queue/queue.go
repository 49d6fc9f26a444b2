// Package queue is a Redis list job queue with bounded retries and a dead-letter list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueIngest is the Redis list key for bulk ingestion jobs.
	QueueIngest = "jobs:ingest"
	// QueueThumbnails is the Redis list key for thumbnail mirror jobs.
	QueueThumbnails = "jobs:thumbnails"
	// QueueDLQ is the dead-letter queue for jobs that will not be retried.
	QueueDLQ = "jobs:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeIngest    JobType = "ingest"
	JobTypeThumbnail JobType = "thumbnail"
)

// IngestPayload asks the worker to ingest one video.
type IngestPayload struct {
	VideoRef string `json:"video_ref"`
	Category string `json:"category"`
	Genre    string `json:"genre,omitempty"`
	Summary  string `json:"summary"`
}

// ThumbnailPayload asks the worker to mirror a thumbnail into object storage.
type ThumbnailPayload struct {
	ExternalID string `json:"external_id"`
	SourceURL  string `json:"source_url"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.UniversalClient, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func listFor(t JobType) (string, error) {
	switch t {
	case JobTypeIngest:
		return QueueIngest, nil
	case JobTypeThumbnail:
		return QueueThumbnails, nil
	}
	return "", fmt.Errorf("unknown job type %q", t)
}

func newJob(t JobType, payload interface{}) (string, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", nil, fmt.Errorf("marshal job: %w", err)
	}
	return job.ID, raw, nil
}

// enqueue pushes all payloads in a single RPUSH, so either every job is
// queued or none is.
func (q *Queue) enqueue(ctx context.Context, t JobType, payloads ...interface{}) ([]string, error) {
	list, err := listFor(t)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(payloads))
	values := make([]interface{}, 0, len(payloads))
	for _, p := range payloads {
		id, raw, err := newJob(t, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		values = append(values, raw)
	}
	if err := q.client.RPush(ctx, list, values...).Err(); err != nil {
		return nil, fmt.Errorf("rpush %s: %w", list, err)
	}
	q.logger.Debug("enqueued jobs", zap.String("type", string(t)), zap.Int("count", len(ids)))
	return ids, nil
}

// EnqueueIngest enqueues one ingestion job per payload and returns their ids
// in order.
func (q *Queue) EnqueueIngest(ctx context.Context, payloads ...IngestPayload) ([]string, error) {
	items := make([]interface{}, len(payloads))
	for i := range payloads {
		items[i] = payloads[i]
	}
	return q.enqueue(ctx, JobTypeIngest, items...)
}

// EnqueueThumbnail enqueues a thumbnail mirror job.
func (q *Queue) EnqueueThumbnail(ctx context.Context, payload ThumbnailPayload) error {
	_, err := q.enqueue(ctx, JobTypeThumbnail, payload)
	return err
}

// Dequeue blocks up to timeout for a job from any work list. A nil job with
// nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueIngest, QueueThumbnails).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("queue", result[0]), zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. Once attempts reach
// MaxRetries the job goes to the DLQ instead. It reports whether the job was
// dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		return true, q.DeadLetter(ctx, job, cause)
	}
	list, err := listFor(job.Type)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if err := q.client.RPush(ctx, list, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// Requeue puts a job back on its work list without counting an attempt.
// The worker uses it for jobs interrupted by shutdown.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	list, err := listFor(job.Type)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, list, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", list, err)
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetter parks a job on the DLQ with the reason it failed.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	if cause != nil {
		job.Error = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("error", job.Error))
	return nil
}
