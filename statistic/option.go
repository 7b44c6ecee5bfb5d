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

	"github.com/tochemey/netsync/log"
)

// Option is the interface that applies a Store option.
type Option interface {
	// Apply sets the Option value of a Store.
	Apply(store *Store)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(store *Store)

// Apply applies the Store's option
func (f OptionFunc) Apply(store *Store) {
	f(store)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(store *Store) {
		store.logger = logger
	})
}

// WithPollInterval sets the interval rates are computed over
func WithPollInterval(interval time.Duration) Option {
	return OptionFunc(func(store *Store) {
		if interval > 0 {
			store.pollInterval = interval
		}
	})
}

// WithStripes sets the number of locks the connect points are spread over
func WithStripes(n int) Option {
	return OptionFunc(func(store *Store) {
		store.stripes = n
	})
}
