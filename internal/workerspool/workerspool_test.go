// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package workerspool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/internal/workerspool"
)

func TestParallelForRunsAll(t *testing.T) {
	pool := workerspool.New()
	const n = 100

	var mu sync.Mutex
	seen := make(map[int]int, n)
	pool.ParallelFor(n, func(i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})

	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
}

func TestParallelForZeroTasks(t *testing.T) {
	pool := workerspool.New()
	pool.ParallelFor(0, func(i int) {
		t.Error("no task should run")
	})
}

func TestDisabledPoolRunsInline(t *testing.T) {
	pool := workerspool.New()
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	assert.Equal(t, 0, pool.MaxParallelism())

	// With parallelism disabled every task runs on the calling goroutine,
	// so the indices arrive in order and without synchronization.
	var order []int
	pool.ParallelFor(10, func(i int) {
		order = append(order, i)
	})
	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestUnlimitedPool(t *testing.T) {
	pool := workerspool.New()
	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	assert.True(t, pool.IsEnabled())

	var count atomic.Int32
	pool.ParallelFor(50, func(i int) {
		count.Add(1)
	})
	assert.Equal(t, int32(50), count.Load())
}

func TestNestedParallelFor(t *testing.T) {
	// The outer workers sleep while waiting for the inner loops, freeing
	// their slots, so even a tiny pool must not deadlock.
	pool := workerspool.New()
	pool.SetMaxParallelism(1)

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		pool.ParallelFor(4, func(i int) {
			pool.ParallelFor(4, func(j int) {
				count.Add(1)
			})
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested ParallelFor deadlocked")
	}
	assert.Equal(t, int32(16), count.Load())
}

func TestStartIfAvailable(t *testing.T) {
	pool := workerspool.New()
	pool.SetMaxParallelism(1)

	// A parallelism of one allows two resident goroutines, since workers
	// spend part of their time blocked.
	release := make(chan struct{})
	var running sync.WaitGroup
	for i := 0; i < 2; i++ {
		running.Add(1)
		require.True(t, pool.StartIfAvailable(func() {
			running.Done()
			<-release
		}))
	}
	running.Wait()

	assert.False(t, pool.StartIfAvailable(func() {}), "pool should be saturated")

	// A sleeping worker frees a slot for someone else.
	pool.WorkerIsAsleep()
	ran := make(chan struct{})
	require.True(t, pool.StartIfAvailable(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("borrowed slot never ran")
	}
	pool.WorkerRestarted()

	close(release)
}

func TestWaitToStartBlocksUntilFree(t *testing.T) {
	pool := workerspool.New()
	pool.SetMaxParallelism(1)

	release := make(chan struct{})
	var running sync.WaitGroup
	for i := 0; i < 2; i++ {
		running.Add(1)
		pool.WaitToStart(func() {
			running.Done()
			<-release
		})
	}
	running.Wait()

	started := make(chan struct{})
	go func() {
		pool.WaitToStart(func() { close(started) })
	}()

	select {
	case <-started:
		t.Fatal("task started on a saturated pool")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never started after the pool freed up")
	}
}
