// Package parallel runs independent jobs on a fixed number of workers.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

type (
	// WorkerFunc queues f. It reports false if ctx was cancelled before f
	// could be handed to a worker, in which case f never runs.
	WorkerFunc func(f func()) bool
	WaitFunc   func()
)

type Pool struct {
	wg   sync.WaitGroup
	Do   WorkerFunc
	Wait WaitFunc
}

// Start launches the workers. numWorkers below 1 means GOMAXPROCS. With a
// single worker jobs run inline, in the order they are queued.
func Start(ctx context.Context, numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{
		Do: func(f func()) bool {
			if ctx.Err() != nil {
				return false
			}
			f()
			return true
		},
		Wait: func() {},
	}

	if numWorkers > 1 {
		workChan := make(chan func())

		pool.wg.Add(numWorkers)
		for i := 0; i < numWorkers; i++ {
			go func() {
				defer pool.wg.Done()
				for f := range workChan {
					f()
				}
			}()
		}

		pool.Do = func(f func()) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case workChan <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		closeWork := sync.OnceFunc(func() { close(workChan) })
		pool.Wait = func() {
			closeWork()
			pool.wg.Wait()
		}
	}

	return pool
}
