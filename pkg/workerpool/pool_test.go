package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleWorkerRunsInSubmissionOrder(t *testing.T) {
	pool := New(1, 16)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 8; i++ {
		i := i
		pool.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	pool.Close()

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestParallelismIsBounded(t *testing.T) {
	const workers = 3
	pool := New(workers, 32)

	var running, peak int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			now := atomic.AddInt64(&running, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Close()

	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(workers))
	require.Positive(t, atomic.LoadInt64(&peak))
}

func TestCloseWaitsForQueuedJobs(t *testing.T) {
	pool := New(2, 64)

	var done int64
	for i := 0; i < 50; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&done, 1)
		})
	}
	pool.Close()

	require.Equal(t, int64(50), atomic.LoadInt64(&done))
}

func TestZeroWorkersClampedToOne(t *testing.T) {
	pool := New(0, 1)

	ran := false
	pool.Submit(func() { ran = true })
	pool.Close()

	require.True(t, ran)
}
