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

package mastership

import (
	"time"

	"github.com/tochemey/netsync/log"
)

// Option is the interface that applies a Service option.
type Option interface {
	// Apply sets the Option value of a Service.
	Apply(service *Service)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(service *Service)

// Apply applies the Service's option
func (f OptionFunc) Apply(service *Service) {
	f(service)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(service *Service) {
		service.logger = logger
	})
}

// WithTermRetry sets how many times a term allocation is attempted and the bounds of the backoff between attempts
func WithTermRetry(maxAttempts int, initialDelay, maxDelay time.Duration) Option {
	return OptionFunc(func(service *Service) {
		if maxAttempts > 0 {
			service.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			service.initialDelay = initialDelay
		}
		if maxDelay > 0 {
			service.maxDelay = maxDelay
		}
	})
}

// WithAnnounceInterval sets how often the local node re-broadcasts the assignments it is master of.
// Zero disables the periodic announcement.
func WithAnnounceInterval(interval time.Duration) Option {
	return OptionFunc(func(service *Service) {
		if interval >= 0 {
			service.announceInterval = interval
		}
	})
}
