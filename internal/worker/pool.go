package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing a value
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the result of one task. Index is the task's position in the submitted slice.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool bounds how many tasks run at once
type Pool struct {
	workers int
}

// NewPool creates a pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency bound
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes tasks with at most p.Workers() in flight and returns one outcome per
// task, in submission order. A failing task does not stop the others. Tasks not yet
// started when ctx is cancelled report ctx.Err().
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i].Index = i
				if err := ctx.Err(); err != nil {
					outcomes[i].Err = err
					continue
				}
				outcomes[i].Value, outcomes[i].Err = tasks[i](ctx)
			}
		}()
	}

	for i := range tasks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return outcomes
}
