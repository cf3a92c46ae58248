package queue

import (
	"context"
	"sync"
)

// Logger defines the logging interface used by the Queue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Job is a unit of work executed by the queue.
type Job func(ctx context.Context) (any, error)

// Future resolves to the result of an enqueued job.
type Future struct {
	done   chan struct{}
	result any
	err    error
}

// Wait blocks until the job completes or the context is cancelled. Context
// cancellation abandons the wait only; the job itself still runs.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(result any, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

type task struct {
	ctx    context.Context
	job    Job
	future *Future
}

// Queue executes jobs strictly one at a time in enqueue order. It is the
// serialisation point for compound state transitions that must not
// interleave (close-then-append pairs, presence arrivals).
//
// The worker goroutine is started lazily on the first enqueue after a
// drain and exits once the queue is empty, so an idle queue holds no
// goroutine. A job that returns an error fails only its own future; the
// queue keeps draining.
type Queue struct {
	logger Logger

	mu      sync.Mutex
	tasks   []task
	running bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{logger: noopLogger{}}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// Enqueue adds a job to the back of the queue and returns a future for its
// result. The job runs with the passed context regardless of how long it
// waits its turn.
func (q *Queue) Enqueue(ctx context.Context, job Job) *Future {
	f := &Future{done: make(chan struct{})}

	q.mu.Lock()
	q.tasks = append(q.tasks, task{ctx: ctx, job: job, future: f})
	start := !q.running
	if start {
		q.running = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return f
}

// drain runs queued jobs one at a time until none remain.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		next := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		result, err := next.job(next.ctx)
		if err != nil {
			q.logger.Warn("queued job failed", "error", err)
		}
		next.future.resolve(result, err)
	}
}

// Run enqueues fn and waits for its result, keeping the result typed.
// Cancellation of ctx abandons the wait; the job itself still runs.
func Run[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	future := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})

	result, err := future.Wait(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Len returns the number of jobs waiting to run. The job currently
// executing is not counted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
