// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds the parallelism of the compiler's search work:
// plan generation for independent parts and the per-starting-part section
// searches are dispatched here rather than spawning unbounded goroutines.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool is a soft limit on concurrently running tasks.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	// The actual number of goroutines can be higher, because of waits.
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever a slot frees up.
	numRunning int
	// numLent counts workers that are asleep waiting on other workers.
	// Each raises the running limit by one until its owner wakes up, so a
	// blocked dispatcher never starves the tasks it is waiting for.
	numLent int
}

// New returns a Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	p := &Pool{}
	p.maxParallelism = runtime.NumCPU()
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// IsEnabled returns whether parallelism is enabled (maxParallelism != 0).
func (p *Pool) IsEnabled() bool {
	return p.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (p *Pool) IsUnlimited() bool {
	return p.maxParallelism < 0
}

// MaxParallelism is the soft target for parallelism. 0 disables parallelism
// and -1 makes it unlimited.
func (p *Pool) MaxParallelism() int {
	return p.maxParallelism
}

// SetMaxParallelism sets the parallelism target. Only change it before any
// tasks are dispatched; changing it mid-run is undefined.
func (p *Pool) SetMaxParallelism(maxParallelism int) {
	p.maxParallelism = maxParallelism
}

// The running limit is higher than the parallelism target because workers
// spend part of their lifetime blocked on channels or on the allocator.
const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
// Call with p.mu held.
func (p *Pool) lockedIsFull() bool {
	if p.maxParallelism == 0 {
		return true
	} else if p.maxParallelism < 0 {
		return false
	}
	return p.numRunning >= goroutineToParallelismRatio*p.maxParallelism+p.numLent
}

// WaitToStart blocks until a worker is available, then runs task on it.
//
// If parallelism is disabled the task runs inline, which can deadlock code
// that relies on concurrency.
func (p *Pool) WaitToStart(task func()) {
	if p.IsUnlimited() {
		go task()
		return
	} else if p.maxParallelism == 0 {
		task()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine runs task and keeps tabs on p.numRunning.
// Call with p.mu held.
func (p *Pool) lockedRunTaskInGoroutine(task func()) {
	p.numRunning++
	go func() {
		task()
		p.mu.Lock()
		p.numRunning--
		p.cond.Signal()
		p.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine if there are
// workers left, and reports whether it did. The caller synchronizes the end
// of the task itself.
func (p *Pool) StartIfAvailable(task func()) bool {
	if p.IsUnlimited() {
		go task()
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedIsFull() {
		return false
	}
	p.lockedRunTaskInGoroutine(task)
	return true
}

// WorkerIsAsleep indicates the calling worker is going to sleep waiting for
// other workers, lending out its slot. It wakes blocked WaitToStart callers
// so one of them can take the slot. Pair with WorkerRestarted.
func (p *Pool) WorkerIsAsleep() {
	p.mu.Lock()
	p.numLent++
	p.cond.Broadcast()
	p.mu.Unlock()
}

// WorkerRestarted reclaims the slot lent by WorkerIsAsleep. Only call after
// WorkerIsAsleep.
func (p *Pool) WorkerRestarted() {
	p.mu.Lock()
	p.numLent--
	p.mu.Unlock()
}

// ParallelFor runs fn(i) for every i in [0, n) on the pool and waits for all
// of them to finish. The calling worker's slot is lent out for the whole
// loop, dispatch included: a dispatcher blocked on a saturated pool holds no
// slot itself, so nested ParallelFor calls cannot deadlock each other.
func (p *Pool) ParallelFor(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	var wg sync.WaitGroup
	wg.Add(n)
	p.WorkerIsAsleep()
	for i := 0; i < n; i++ {
		p.WaitToStart(func() {
			defer wg.Done()
			fn(i)
		})
	}
	wg.Wait()
	p.WorkerRestarted()
}
