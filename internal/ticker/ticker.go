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

package ticker

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Ticker delivers ticks on Ticks at the configured interval.
// When a jitter is set every period is extended by a random duration in [0, jitter).
// A tick is dropped when nobody is reading Ticks.
type Ticker struct {
	Ticks    chan time.Time
	interval time.Duration
	jitter   time.Duration
	mutex    sync.Mutex
	ticking  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Ticker. It panics when interval is not positive.
func New(interval time.Duration) *Ticker {
	if interval <= 0 {
		panic("interval must be greater than zero")
	}
	return &Ticker{
		Ticks:    make(chan time.Time),
		interval: interval,
	}
}

// NewJittered creates a Ticker whose periods are extended by up to jitter.
func NewJittered(interval, jitter time.Duration) *Ticker {
	t := New(interval)
	if jitter > 0 {
		t.jitter = jitter
	}
	return t
}

// Start starts the ticker. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.ticking {
		t.stopCh = make(chan struct{})
		t.doneCh = make(chan struct{})
		t.ticking = true
		go t.tickingLoop(t.stopCh, t.doneCh)
	}
}

// Stop stops the ticker and waits for the ticking goroutine to exit.
func (t *Ticker) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.ticking {
		t.ticking = false
		close(t.stopCh)
		<-t.doneCh
	}
}

// Ticking reports whether the ticker is running
func (t *Ticker) Ticking() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.ticking
}

func (t *Ticker) next() time.Duration {
	if t.jitter <= 0 {
		return t.interval
	}
	return t.interval + rand.N(t.jitter)
}

func (t *Ticker) tickingLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(t.next())
	defer timer.Stop()
	for {
		select {
		case tc := <-timer.C:
			select {
			case t.Ticks <- tc:
			default:
			}
			timer.Reset(t.next())
		case <-stopCh:
			return
		}
	}
}
