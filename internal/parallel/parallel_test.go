package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 64

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}

	order := make([]int, 0, 10)
	For(10, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, v := range order {
		if v != i {
			t.Fatalf("sequential fallback out of order: got %v", order)
		}
	}
}

func TestForChunksCoverage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 16

	n := 500
	seen := make([]int32, n)
	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
}
