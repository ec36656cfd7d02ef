// Package notify hands assignment and completion events off to an external
// notification collaborator without letting delivery slow down the
// assignment path. Delivery itself (email, chat, push) is out of scope
// (spec Non-goals); this package only owns the queue and worker pool that
// drain events to whatever Notifier the caller wires in.
//
// Grounded on the teacher's mq/queue + mq/worker pair: a bounded
// non-blocking channel queue feeding a fixed pool of workers, generalized
// from scoring events to notification events.
package notify

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/taskloop/assignengine/pkg/logger"
	"github.com/taskloop/assignengine/pkg/metrics"
)

// Default queue/worker configuration.
const (
	defaultQueueCapacity  = 10000
	defaultBufferSize     = 10000
	defaultWorkerCount    = 4
	poolShutdownTimeout   = 30 * time.Second
)

// EventKind distinguishes the two lifecycle events this package dispatches.
type EventKind string

const (
	EventAssigned EventKind = "assigned"
	EventComplete EventKind = "completed"
)

// Event is the payload flowing through the queue.
type Event struct {
	Kind         EventKind
	TaskID       string
	EmployeeID   string
	AssignmentID string
	Reward       float64
	OccurredAt   time.Time
}

// Notifier is the external collaborator that actually delivers a
// notification. Implementations live outside this module; a no-op
// implementation is sufficient here since delivery is out of scope.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	Enqueue(e Event) bool
	Dequeue(ctx context.Context) <-chan Event
	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// QueueOption configures an InMemoryQueue.
type QueueOption func(*InMemoryQueue)

// WithCapacity sets the queue's logical capacity (used for the full check
// and utilization metric, independent of the channel's own buffer).
func WithCapacity(capacity int) QueueOption {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewQueue creates a bounded in-memory notification queue.
func NewQueue(opts ...QueueOption) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, defaultBufferSize)
	metrics.UpdateNotifyQueueCapacity(q.capacity)
	metrics.UpdateNotifyQueueSize(0)
	return q
}

// Enqueue adds e to the queue. Returns false if the queue is closed or full;
// callers must not block assignment/completion on notification delivery.
func (q *InMemoryQueue) Enqueue(e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotifyEnqueueError()
		return false
	}
	if len(q.events) >= q.capacity {
		metrics.RecordNotifyEnqueueError()
		return false
	}
	select {
	case q.events <- e:
		metrics.RecordNotifyEnqueue()
		metrics.UpdateNotifyQueueSize(len(q.events))
		return true
	default:
		metrics.RecordNotifyEnqueueError()
		return false
	}
}

// Dequeue returns a channel of events, closed when the queue is closed or
// ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range q.events {
			select {
			case out <- e:
				metrics.RecordNotifyDequeue()
				metrics.UpdateNotifyQueueSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current queue depth.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Close shuts the queue down; no further Enqueue calls will succeed.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Pool drains a Queue through a fixed number of workers, dispatching each
// event to a Notifier. A Notifier failure is logged and counted; it never
// propagates back to the assignment/completion path.
type Pool struct {
	queue    Queue
	notifier Notifier
	workers  int
	shutdown chan struct{}
	done     []chan struct{}
	logger   logger.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the worker count. n <= 0 defaults to defaultWorkerCount.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPoolLogger overrides the pool's logger.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a notification dispatch pool. queue and notifier must be
// non-nil.
func NewPool(queue Queue, notifier Notifier, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:    queue,
		notifier: notifier,
		workers:  defaultWorkerCount,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("notify-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}
	p.done = make([]chan struct{}, p.workers)
	for i := range p.done {
		p.done[i] = make(chan struct{})
	}
	metrics.UpdateNotifyWorkerCount(p.workers)
	return p
}

// Start launches all workers, each pulling from the same dequeue channel.
func (p *Pool) Start(ctx context.Context) {
	events := p.queue.Dequeue(ctx)
	for i := 0; i < p.workers; i++ {
		go p.runWorker(ctx, "notify-worker-"+strconv.Itoa(i), events, p.done[i])
	}
}

func (p *Pool) runWorker(ctx context.Context, name string, events <-chan Event, done chan struct{}) {
	defer close(done)
	log := p.logger.Named(name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			start := time.Now()
			err := p.notifier.Notify(ctx, e)
			metrics.RecordNotifyDispatchLatency(float64(time.Since(start).Milliseconds()))
			if err != nil {
				metrics.RecordNotifyDispatchError()
				log.Error(ctx, "notification dispatch failed",
					logger.String("task_id", e.TaskID),
					logger.String("employee_id", e.EmployeeID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown closes the queue and waits (up to a bound) for all workers to
// drain the events still queued. If ctx ends or the bound passes first,
// the workers are stopped without finishing the queue.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		return fmt.Errorf("notify: closing queue: %w", err)
	}
	defer close(p.shutdown)

	deadline := time.NewTimer(poolShutdownTimeout)
	defer deadline.Stop()
	for _, d := range p.done {
		select {
		case <-d:
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			p.logger.Warn(ctx, "notify pool shutdown timed out")
			return nil
		}
	}
	return nil
}

// NoopNotifier discards every event. Useful as a default when no external
// notification collaborator is wired in yet.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }

var _ Notifier = NoopNotifier{}
