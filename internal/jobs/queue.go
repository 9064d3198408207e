// Package jobs runs background work for the engine: an in-process
// queue with bounded retries and a cron scheduler that enqueues the
// daily routine stamping. Retry state lives on each queued job, never
// in package-level counters, so the queue can be injected and tested
// like any other dependency.
package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Job is one unit of background work. Run returning an error schedules
// a retry with exponential backoff until the queue's retry budget is
// spent.
type Job struct {
	Kind string
	Run  func(ctx context.Context) error
}

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

type queued struct {
	job     Job
	attempt int
}

// Queue is a bounded in-process job queue.
type Queue struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logf        func(format string, v ...any)

	mu     sync.Mutex
	jobs   chan queued
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(maxRetries int, backoffBase, backoffMax time.Duration) *Queue {
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	if backoffMax < backoffBase {
		backoffMax = backoffBase
	}
	return &Queue{
		MaxRetries:  maxRetries,
		BackoffBase: backoffBase,
		BackoffMax:  backoffMax,
		Logf:        log.Printf,
		jobs:        make(chan queued, 256),
	}
}

// Start launches the worker goroutines. They exit when the context is
// cancelled; Wait blocks until all in-flight jobs have finished.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item := <-q.jobs:
					q.process(ctx, item)
				}
			}
		}()
	}
}

// Enqueue never blocks; a full queue rejects with ErrQueueFull so a
// slow consumer cannot wedge producers or Close.
func (q *Queue) Enqueue(job Job) error {
	return q.push(queued{job: job})
}

func (q *Queue) push(item queued) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting new jobs and waits for the workers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) process(ctx context.Context, item queued) {
	err := item.job.Run(ctx)
	if err == nil {
		return
	}
	if item.attempt >= q.MaxRetries {
		q.Logf("job %s dropped after %d attempts: %v", item.job.Kind, item.attempt+1, err)
		return
	}
	delay := q.backoff(item.attempt)
	q.Logf("job %s attempt %d failed, retrying in %s: %v", item.job.Kind, item.attempt+1, delay, err)
	next := queued{job: item.job, attempt: item.attempt + 1}
	q.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer q.wg.Done()
		if pushErr := q.push(next); pushErr != nil {
			q.Logf("job %s retry lost: %v", next.job.Kind, pushErr)
		}
	})
}

func (q *Queue) backoff(attempt int) time.Duration {
	d := q.BackoffBase << attempt
	if d > q.BackoffMax || d <= 0 {
		return q.BackoffMax
	}
	return d
}
