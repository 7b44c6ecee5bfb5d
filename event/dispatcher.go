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

package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/internal/workerpool"
	"github.com/tochemey/netsync/log"
)

const (
	// DefaultMaxDispatchTime is the default bound of a single sink invocation
	DefaultMaxDispatchTime = time.Second
	// DefaultQueueSize is the default number of events waiting for delivery
	DefaultQueueSize = 4096
)

// Dispatcher routes events to the sink registered for their class.
type Dispatcher struct {
	logger          log.Logger
	maxDispatchTime time.Duration
	queueSize       int64
	metricProvider  *metric.Provider
	metric          *metric.DispatchMetric

	sinksMu sync.RWMutex
	sinks   map[string]Sink

	lifecycleMu sync.Mutex
	state       *atomic.Int32
	queue       *queue.Queue
	pool        *workerpool.WorkerPool
	loopDone    chan struct{}
}

// NewDispatcher creates an inactive Dispatcher
func NewDispatcher(opts ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		logger:          log.DiscardLogger,
		maxDispatchTime: DefaultMaxDispatchTime,
		queueSize:       DefaultQueueSize,
		sinks:           make(map[string]Sink),
		state:           atomic.NewInt32(int32(Inactive)),
	}

	for _, opt := range opts {
		opt.Apply(dispatcher)
	}

	if dispatcher.metricProvider == nil {
		dispatcher.metricProvider = metric.New()
	}
	return dispatcher
}

// AddSink registers the sink of the given class.
// A sink already registered for the class is replaced and the replacement is logged.
func (d *Dispatcher) AddSink(class string, sink Sink) {
	d.sinksMu.Lock()
	previous, ok := d.sinks[class]
	d.sinks[class] = sink
	d.sinksMu.Unlock()
	if ok && previous != nil {
		d.logger.Warnf("event sink of class=(%s) replaced", class)
	}
}

// RemoveSink unregisters the sink of the given class
func (d *Dispatcher) RemoveSink(class string) {
	d.sinksMu.Lock()
	delete(d.sinks, class)
	d.sinksMu.Unlock()
}

// Sink returns the sink registered for the class
func (d *Dispatcher) Sink(class string) (Sink, bool) {
	d.sinksMu.RLock()
	sink, ok := d.sinks[class]
	d.sinksMu.RUnlock()
	return sink, ok
}

// State returns the current lifecycle state
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Post queues the event for delivery. It never waits for a sink.
// Events of a class without sink are dropped at delivery time.
func (d *Dispatcher) Post(event Event) error {
	if event == nil {
		return nil
	}

	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if d.State() != Active {
		return gerrors.ErrDispatcherInactive
	}

	if d.queue.Len() >= d.queueSize {
		d.logger.Warnf("event of class=(%s) rejected: dispatcher queue is full", event.Class())
		return gerrors.ErrDispatcherFull
	}

	if err := d.queue.Put(event); err != nil {
		return fmt.Errorf("failed to queue event: %w", err)
	}
	return nil
}

// Activate starts the dispatch loop. Activating an active dispatcher is a no-op.
func (d *Dispatcher) Activate() error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if d.State() == Active {
		return nil
	}

	if d.metric == nil {
		instruments, err := metric.NewDispatchMetric(d.metricProvider.Meter())
		if err != nil {
			return fmt.Errorf("failed to create dispatcher metrics: %w", err)
		}
		d.metric = instruments
	}

	d.queue = queue.New(d.queueSize)
	d.pool = workerpool.New(workerpool.WithPassivateAfter(time.Minute))
	d.pool.Start()
	d.loopDone = make(chan struct{})
	d.state.Store(int32(Active))

	go d.loop(d.queue, d.loopDone)
	d.logger.Debug("event dispatcher activated")
	return nil
}

// Deactivate stops accepting events and stops the dispatch loop.
// The delivery in progress completes or is interrupted by the dispatch limit.
// Events still queued are dropped.
func (d *Dispatcher) Deactivate() {
	d.lifecycleMu.Lock()
	if d.State() != Active {
		d.lifecycleMu.Unlock()
		return
	}
	d.state.Store(int32(Inactive))
	pending := d.queue.Dispose()
	loopDone := d.loopDone
	pool := d.pool
	d.lifecycleMu.Unlock()

	<-loopDone
	pool.Stop()
	if len(pending) > 0 {
		d.logger.Warnf("event dispatcher deactivated with %d undelivered event(s)", len(pending))
	}
	d.logger.Debug("event dispatcher deactivated")
}

func (d *Dispatcher) loop(q *queue.Queue, done chan struct{}) {
	defer close(done)
	for {
		items, err := q.Get(1)
		if err != nil {
			// the queue is disposed
			return
		}

		for _, item := range items {
			event, ok := item.(Event)
			if !ok {
				continue
			}

			sink, ok := d.Sink(event.Class())
			if !ok {
				continue
			}
			d.dispatch(event, sink)
		}
	}
}

// dispatch runs the sink on a worker and waits at most maxDispatchTime for it.
// On timeout the sink context is cancelled and the loop moves on.
func (d *Dispatcher) dispatch(event Event, sink Sink) {
	class := event.Class()
	ctx, cancel := context.WithTimeout(context.Background(), d.maxDispatchTime)
	defer cancel()

	start := time.Now()
	done := make(chan struct{})
	// written before done is closed
	failed := false
	task := func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				failed = true
				d.metric.Failure(context.Background(), class)
				d.logger.Errorf("event sink of class=(%s) failed: %v", class, r)
			}
		}()
		sink.Process(ctx, event)
	}

	if err := d.pool.SubmitWork(task); err != nil {
		d.logger.Warnf("event of class=(%s) not delivered: %v", class, err)
		return
	}

	select {
	case <-done:
		if failed {
			return
		}
		d.metric.Delivered(context.Background(), class, float64(time.Since(start).Microseconds())/1000)
	case <-ctx.Done():
		d.metric.Timeout(context.Background(), class)
		d.logger.Warnf("event sink of class=(%s) interrupted after %s", class, d.maxDispatchTime)
	}
}
