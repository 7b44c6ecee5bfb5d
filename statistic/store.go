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

package statistic

import (
	"time"

	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/stripe"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
)

type sample struct {
	counter uint64
	at      time.Time
}

// samples keeps the last two samples of a connect point, guarded by its stripe lock
type samples struct {
	latest   *sample
	previous *sample
}

// Store keeps the counter samples of the connect points and computes their Load on read
type Store struct {
	logger       log.Logger
	pollInterval time.Duration
	stripes      int
	locks        *stripe.Locks
	points       *xsync.Map[element.ConnectPoint, *samples]
}

// NewStore creates a statistic Store
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:       log.DiscardLogger,
		pollInterval: DefaultPollInterval,
		points:       xsync.NewMap[element.ConnectPoint, *samples](),
	}
	for _, opt := range opts {
		opt.Apply(s)
	}
	s.locks = stripe.New(s.stripes)
	return s
}

// PollInterval returns the interval the rates are computed over
func (s *Store) PollInterval() time.Duration {
	return s.pollInterval
}

// Record adds a sample of the cumulative byte counter of the connect point.
// A counter lower than the latest sample means the device reset it: the history restarts.
// Samples older than the latest one are ignored.
func (s *Store) Record(cp element.ConnectPoint, counter uint64, at time.Time) {
	lock := s.locks.For(cp.String())
	lock.Lock()
	defer lock.Unlock()

	history, _ := s.points.GetOrSet(cp, func() *samples { return new(samples) })
	current := &sample{counter: counter, at: at}
	switch {
	case history.latest == nil:
		history.latest = current
	case at.Before(history.latest.at):
		s.logger.Debugf("ignoring out of order sample of connect point=(%s)", cp)
	case counter < history.latest.counter:
		s.logger.Infof("counter of connect point=(%s) went backwards, restarting its history", cp)
		history.previous = nil
		history.latest = current
	default:
		history.previous = history.latest
		history.latest = current
	}
}

// Load returns the load of the connect point. It is invalid until two samples were recorded.
func (s *Store) Load(cp element.ConnectPoint) Load {
	lock := s.locks.For(cp.String())
	lock.RLock()
	defer lock.RUnlock()

	history, ok := s.points.Get(cp)
	if !ok || history.latest == nil || history.previous == nil {
		return Load{PollInterval: s.pollInterval}
	}
	return Load{
		Current:      history.latest.counter,
		Previous:     history.previous.counter,
		Time:         history.latest.at,
		Valid:        true,
		PollInterval: s.pollInterval,
	}
}

// Forget drops the samples of every connect point of the device
func (s *Store) Forget(deviceID element.DeviceID) {
	for _, cp := range s.points.Keys() {
		if cp.DeviceID != deviceID {
			continue
		}
		lock := s.locks.For(cp.String())
		lock.Lock()
		s.points.Delete(cp)
		lock.Unlock()
	}
}
