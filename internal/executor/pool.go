// Package executor provides the bounded worker pool that drives media
// processing jobs.
package executor

import (
	"context"
	"log"
	"sync"
)

// Pool is a fixed-size worker pool with a bounded task queue. When the
// queue is full, Submit runs the task on the calling goroutine instead of
// blocking or dropping it (caller-runs saturation policy), so submission
// always makes forward progress at the cost of briefly tying up the
// caller.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.execute(task)
	}
}

func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("executor: task panicked: %v", r)
		}
	}()
	task()
}

// Submit hands a task to the pool. Fire-and-forget: the task is queued if
// there is room, otherwise it executes inline before Submit returns. A
// shut-down pool also runs the task inline rather than losing it.
func (p *Pool) Submit(task func()) {
	p.mu.Lock()
	if !p.closed {
		select {
		case p.tasks <- task:
			p.mu.Unlock()
			return
		default:
		}
	}
	p.mu.Unlock()

	// Queue full or pool closed: caller runs.
	p.execute(task)
}

// Shutdown stops accepting queued work and waits for in-flight tasks,
// bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
