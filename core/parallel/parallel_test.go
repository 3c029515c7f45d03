package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"zero items", 0, 4},
		{"fewer items than workers", 3, 8},
		{"uneven chunks", 101, 4},
		{"default workers", 1000, 0},
		{"single worker", 17, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := make([]int32, tt.items)
			ParallelizeN(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&counts[i], 1)
				}
			})
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var mu sync.Mutex
	var calls int
	ParallelizeWithThreshold(10, 100, 4, func(start, end int) {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)

	calls = 0
	ParallelizeWithThreshold(0, 100, 4, func(start, end int) { calls++ })
	assert.Equal(t, 0, calls)
}

func TestForEach(t *testing.T) {
	out := make([]int, 50)
	ForEach(len(out), 3, func(i int) { out[i] = i * i })
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
	assert.Greater(t, Workers(0), 0)
	assert.Equal(t, Workers(0), Workers(-1))
}
