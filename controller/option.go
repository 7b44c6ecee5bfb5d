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

package controller

import (
	"time"

	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/log"
)

// Option is the interface that applies a Controller option.
type Option interface {
	// Apply sets the Option value of a Controller.
	Apply(controller *Controller)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(controller *Controller)

// Apply applies the Controller's option
func (f OptionFunc) Apply(controller *Controller) {
	f(controller)
}

// WithLogger sets the logger shared by every component
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(controller *Controller) {
		controller.logger = logger
	})
}

// WithMetricProvider sets the provider the instruments of every component are created from
func WithMetricProvider(provider *metric.Provider) Option {
	return OptionFunc(func(controller *Controller) {
		controller.metricProvider = provider
	})
}

// WithAntiEntropy sets the anti-entropy period and the peers advertised to on every round.
// A zero interval disables the periodic exchange.
func WithAntiEntropy(interval time.Duration, fanOut device.FanOut) Option {
	return OptionFunc(func(controller *Controller) {
		controller.antiEntropyInterval = interval
		controller.fanOut = fanOut
	})
}

// WithDispatcher sets the bound of a single event delivery and the capacity of the event queue
func WithDispatcher(maxDispatchTime time.Duration, queueSize int) Option {
	return OptionFunc(func(controller *Controller) {
		controller.maxDispatchTime = maxDispatchTime
		controller.queueSize = queueSize
	})
}

// WithPollInterval sets the statistics poll interval the port loads are computed with
func WithPollInterval(interval time.Duration) Option {
	return OptionFunc(func(controller *Controller) {
		controller.pollInterval = interval
	})
}

// WithAnnounceInterval sets how often the mastership assignments of the local node are re-announced
func WithAnnounceInterval(interval time.Duration) Option {
	return OptionFunc(func(controller *Controller) {
		controller.announceInterval = interval
	})
}
