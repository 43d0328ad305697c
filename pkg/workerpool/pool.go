// Package workerpool provides a bounded goroutine pool with backpressure.
//
// The attachment writer runs its blob writes here so the transactional path
// never waits on durable storage. When all workers are busy and the queue is
// at capacity, Submit returns ErrPoolFull immediately and the caller decides
// whether to drop, retry, or block with SubmitWait.
package workerpool

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolFull is returned by Submit when all workers are busy and the task
// queue is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Option configures a Pool.
type Option func(*Pool)

// WithQueueSize overrides the default queue capacity (2× the worker count).
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithPanicHandler is called with the recovered value when a task panics.
func WithPanicHandler(fn func(recovered interface{})) Option {
	return func(p *Pool) { p.onPanic = fn }
}

// Pool is a bounded goroutine pool.
type Pool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	mu        sync.RWMutex // guards closed against concurrent sends
	closed    bool
	queueSize int
	onPanic   func(interface{})
	pending   atomic.Int64
}

// New creates a Pool with the given number of workers. size must be > 0.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{queueSize: size * 2}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan func(), p.queueSize)

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues task without blocking.
//   - Returns ErrPoolFull if the task queue is at capacity.
//   - Returns ErrPoolClosed if Shutdown has been called.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.pending.Add(-1)
		return ErrPoolFull
	}
}

// SubmitWait is like Submit but blocks until a queue slot is available.
// Shutdown waits for blocked callers to be admitted.
func (p *Pool) SubmitWait(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.pending.Add(1)
	p.tasks <- task
	return nil
}

// Pending reports the number of queued or running tasks.
func (p *Pool) Pending() int64 { return p.pending.Load() }

// Shutdown stops accepting new tasks, waits for queued and in-flight tasks
// to complete, and releases the workers. Safe to call multiple times.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
		p.pending.Add(-1)
	}
}

// safeRun executes task, recovering from panics so a bad task doesn't kill
// the worker goroutine.
func (p *Pool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}
