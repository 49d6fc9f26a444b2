// Package worker drains the background job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/metrics"
	"github.com/flixtube/catalog/pkg/queue"
)

// ErrPermanent marks a job failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

func permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Processor executes one kind of job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// JobQueue is the part of queue.Queue the worker drives.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
	Requeue(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// Worker dispatches dequeued jobs to processors by type.
type Worker struct {
	queue       JobQueue
	processors  map[queue.JobType]Processor
	pollTimeout time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

// New creates a worker. Register processors before calling Run.
func New(q JobQueue, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:       q,
		processors:  make(map[queue.JobType]Processor),
		pollTimeout: 5 * time.Second,
		backoff:     2 * time.Second,
		logger:      logger,
	}
}

// Register routes jobs of type t to p.
func (w *Worker) Register(t queue.JobType, p Processor) {
	w.processors[t] = p
}

// Run dequeues and processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			w.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		w.Handle(ctx, job)
	}
}

// Handle processes one job and settles it: done, retried or dead-lettered.
// A job cut short by ctx cancellation goes back on its list untouched.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) {
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))

	p, ok := w.processors[job.Type]
	if !ok {
		err := fmt.Errorf("no processor for job type %q", job.Type)
		log.Error("job rejected", zap.Error(err))
		w.deadLetter(context.WithoutCancel(ctx), job, err)
		return
	}

	err := p.Process(ctx, job)
	switch {
	case err == nil:
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "done").Inc()
		log.Debug("job done")
	case errors.Is(err, ErrPermanent):
		log.Warn("job failed permanently", zap.Error(err))
		w.deadLetter(context.WithoutCancel(ctx), job, err)
	case ctx.Err() != nil:
		log.Info("job interrupted, requeueing", zap.Error(err))
		w.requeue(context.WithoutCancel(ctx), job, err)
	default:
		log.Error("job failed", zap.Error(err))
		dead, reErr := w.queue.Retry(ctx, job, err)
		if reErr != nil {
			log.Error("retry enqueue failed, dead-lettering", zap.Error(reErr))
			w.deadLetter(context.WithoutCancel(ctx), job, err)
			return
		}
		result := "retried"
		if dead {
			result = "dead"
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Type), result).Inc()
		w.sleep(ctx)
	}
}

func (w *Worker) requeue(ctx context.Context, job *queue.Job, cause error) {
	if err := w.queue.Requeue(ctx, job); err != nil {
		w.logger.Error("requeue failed, dead-lettering", zap.String("job_id", job.ID), zap.Error(err))
		w.deadLetter(ctx, job, cause)
		return
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "requeued").Inc()
}

func (w *Worker) deadLetter(ctx context.Context, job *queue.Job, err error) {
	if dlErr := w.queue.DeadLetter(ctx, job, err); dlErr != nil {
		w.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(dlErr))
		return
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "dead").Inc()
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
