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
	"time"

	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/log"
)

// Option is the interface that applies a Dispatcher option.
type Option interface {
	// Apply sets the Option value of a Dispatcher.
	Apply(dispatcher *Dispatcher)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(dispatcher *Dispatcher)

// Apply applies the Dispatcher's option
func (f OptionFunc) Apply(dispatcher *Dispatcher) {
	f(dispatcher)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(dispatcher *Dispatcher) {
		dispatcher.logger = logger
	})
}

// WithMaxDispatchTime bounds every sink invocation
func WithMaxDispatchTime(d time.Duration) Option {
	return OptionFunc(func(dispatcher *Dispatcher) {
		if d > 0 {
			dispatcher.maxDispatchTime = d
		}
	})
}

// WithQueueSize bounds the number of events waiting for delivery
func WithQueueSize(size int) Option {
	return OptionFunc(func(dispatcher *Dispatcher) {
		if size > 0 {
			dispatcher.queueSize = int64(size)
		}
	})
}

// WithMetricProvider sets the metric provider the dispatcher instruments are created from
func WithMetricProvider(provider *metric.Provider) Option {
	return OptionFunc(func(dispatcher *Dispatcher) {
		dispatcher.metricProvider = provider
	})
}
