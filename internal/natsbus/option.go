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

package natsbus

import (
	"time"

	"github.com/tochemey/netsync/log"
)

// Option is the interface that applies a Communicator option.
type Option interface {
	// Apply sets the Option value of a Communicator.
	Apply(communicator *Communicator)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(communicator *Communicator)

// Apply applies the Communicator's option
func (f OptionFunc) Apply(communicator *Communicator) {
	f(communicator)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(communicator *Communicator) {
		communicator.logger = logger
	})
}

// WithSubjectPrefix sets the prefix of every NATS subject used by the cluster.
// Clusters sharing a NATS server are isolated by their prefix.
func WithSubjectPrefix(prefix string) Option {
	return OptionFunc(func(communicator *Communicator) {
		communicator.prefix = prefix
	})
}

// WithHeartbeatInterval sets how often the presence of the node is announced.
// A member is forgotten after three missed heartbeats.
func WithHeartbeatInterval(interval time.Duration) Option {
	return OptionFunc(func(communicator *Communicator) {
		communicator.heartbeat = interval
	})
}
