package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsEverything(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		pool := Start(context.Background(), workers)
		var n atomic.Int64
		for i := 0; i < 100; i++ {
			assert.True(t, pool.Do(func() { n.Add(1) }))
		}
		pool.Wait()
		assert.EqualValues(t, 100, n.Load(), "workers=%d", workers)
	}
}

func TestSingleWorkerKeepsOrder(t *testing.T) {
	pool := Start(context.Background(), 1)
	var order []int
	for i := 0; i < 10; i++ {
		pool.Do(func() { order = append(order, i) })
	}
	pool.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestCancelledPoolRefusesWork(t *testing.T) {
	for _, workers := range []int{1, 3} {
		ctx, cancel := context.WithCancel(context.Background())
		pool := Start(ctx, workers)
		cancel()

		ran := false
		assert.False(t, pool.Do(func() { ran = true }))
		pool.Wait()
		assert.False(t, ran)
	}
}
