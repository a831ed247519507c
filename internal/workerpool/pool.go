package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/pitools/updaterd/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a bounded goroutine pool with a fixed-size task queue. The
// daemon uses it to run backend-touching work (cache refreshes, check
// runs) off the timer and control goroutines.
type Pool struct {
	queue     chan Task
	wg        sync.WaitGroup
	accepting atomic.Bool
	closeOnce sync.Once
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queue: make(chan Task, queueSize)}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task. Returns false if the pool is draining or the
// queue is full. wg.Add happens before enqueue to avoid racing Drain.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		log.Warn("task queue full, task rejected")
		return false
	}
}

// Drain stops accepting new tasks and waits for queued and in-flight
// tasks to finish, respecting the context deadline.
func (p *Pool) Drain(ctx context.Context) {
	p.accepting.Store(false)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("drain timed out with tasks still running")
	}

	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

func (p *Pool) worker() {
	for task := range p.queue {
		p.runTask(task)
	}
}

// runTask executes a single task with panic recovery. wg.Done is called
// here to match the wg.Add in Submit.
func (p *Pool) runTask(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
