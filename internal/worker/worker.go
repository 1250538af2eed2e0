// Package worker provides the bounded task pool used to fan analysis work
// out across regions without overwhelming the AI collaborator.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is one unit of pool work. Errors are counted, not propagated; a
// failing region never aborts its siblings.
type Task func(ctx context.Context) error

type Pool struct {
	size     int
	tasks    chan Task
	failures atomic.Int64
	wg       sync.WaitGroup
}

func NewPool(size int, bufferSize int) *Pool {
	return &Pool{
		size:  size,
		tasks: make(chan Task, bufferSize),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(ctx); err != nil {
				p.failures.Add(1)
			}
		}
	}
}

func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Stop closes the queue and waits for in-flight tasks to drain.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}

// Failures reports how many tasks returned an error.
func (p *Pool) Failures() int64 {
	return p.failures.Load()
}
