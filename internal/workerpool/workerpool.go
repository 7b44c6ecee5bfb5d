/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package workerpool runs short tasks on reusable goroutines.
// Workers are spawned on demand, parked when idle and retired after a period of inactivity.
package workerpool

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/netsync/internal/ticker"
)

const maxShards = 128

// ErrPoolNotRunning is returned when a task is submitted to a pool that is not started or already stopped
var ErrPoolNotRunning = errors.New("worker pool is not running")

// WorkerPool distributes tasks across shards of workers to reduce lock contention.
type WorkerPool struct {
	passivateAfter time.Duration
	numShards      int
	shards         []*shard
	mutex          sync.RWMutex
	started        *atomic.Bool
	stopped        *atomic.Bool
	spawned        *atomic.Int64
	stopCleanup    chan struct{}
	cleanupDone    chan struct{}
}

type worker struct {
	work     chan func()
	lastUsed time.Time
}

type shard struct {
	pool    *WorkerPool
	mu      sync.Mutex
	idle    []*worker
	stopped bool
}

// New creates a new worker pool with the given options.
func New(opts ...Option) *WorkerPool {
	wp := &WorkerPool{
		passivateAfter: time.Second,
		numShards:      1,
		started:        atomic.NewBool(false),
		stopped:        atomic.NewBool(false),
		spawned:        atomic.NewInt64(0),
	}

	for _, opt := range opts {
		opt.Apply(wp)
	}

	if wp.numShards < 1 {
		wp.numShards = 1
	} else if wp.numShards > maxShards {
		wp.numShards = maxShards
	}

	if wp.passivateAfter <= 0 {
		wp.passivateAfter = time.Second
	}

	return wp
}

// SpawnedWorkers returns the number of live worker goroutines.
func (wp *WorkerPool) SpawnedWorkers() int {
	return int(wp.spawned.Load())
}

// Start initializes the shards and begins the cleanup routine.
// It's safe to call Start multiple times.
func (wp *WorkerPool) Start() {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()
	if wp.started.Load() {
		return
	}

	wp.shards = make([]*shard, wp.numShards)
	for i := range wp.shards {
		wp.shards[i] = &shard{pool: wp, idle: make([]*worker, 0, 64)}
	}

	wp.stopCleanup = make(chan struct{})
	wp.cleanupDone = make(chan struct{})
	wp.started.Store(true)
	go wp.cleanup()
}

// Stop prevents new submissions and releases idle workers.
// Tasks already running complete on their worker which then exits.
func (wp *WorkerPool) Stop() {
	wp.mutex.Lock()
	if !wp.started.Load() || wp.stopped.Swap(true) {
		wp.mutex.Unlock()
		return
	}

	for _, s := range wp.shards {
		s.mu.Lock()
		s.stopped = true
		for i, w := range s.idle {
			close(w.work)
			s.idle[i] = nil
		}
		s.idle = s.idle[:0]
		s.mu.Unlock()
	}
	close(wp.stopCleanup)
	wp.mutex.Unlock()
	<-wp.cleanupDone
}

// SubmitWork hands the task to an idle worker or spawns a new one.
func (wp *WorkerPool) SubmitWork(task func()) error {
	wp.mutex.RLock()
	if !wp.started.Load() || wp.stopped.Load() {
		wp.mutex.RUnlock()
		return ErrPoolNotRunning
	}
	s := wp.shards[rand.IntN(wp.numShards)]
	wp.mutex.RUnlock()

	if !s.dispatch(task) {
		return ErrPoolNotRunning
	}
	return nil
}

func (s *shard) dispatch(task func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}

	if n := len(s.idle); n > 0 {
		w := s.idle[n-1]
		s.idle[n-1] = nil
		s.idle = s.idle[:n-1]
		s.mu.Unlock()
		w.work <- task
		return true
	}
	s.mu.Unlock()

	w := &worker{work: make(chan func())}
	s.pool.spawned.Inc()
	go s.run(w)
	w.work <- task
	return true
}

func (s *shard) run(w *worker) {
	defer s.pool.spawned.Dec()
	for task := range w.work {
		task()
		if !s.park(w) {
			return
		}
	}
}

// park returns the worker to the idle list. It returns false when the shard is stopped.
func (s *shard) park(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	w.lastUsed = time.Now()
	s.idle = append(s.idle, w)
	return true
}

// cleanup retires workers idle for longer than passivateAfter.
// The idle list is ordered by lastUsed so expired workers are at its head.
func (wp *WorkerPool) cleanup() {
	defer close(wp.cleanupDone)
	tk := ticker.New(wp.passivateAfter)
	tk.Start()
	defer tk.Stop()

	for {
		select {
		case <-wp.stopCleanup:
			return
		case now := <-tk.Ticks:
			cutoff := now.Add(-wp.passivateAfter)
			for _, s := range wp.shards {
				s.mu.Lock()
				expired := 0
				for expired < len(s.idle) && s.idle[expired].lastUsed.Before(cutoff) {
					close(s.idle[expired].work)
					expired++
				}
				if expired > 0 {
					remaining := copy(s.idle, s.idle[expired:])
					clear(s.idle[remaining:])
					s.idle = s.idle[:remaining]
				}
				s.mu.Unlock()
			}
		}
	}
}
