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

package config

import (
	"time"

	"github.com/tochemey/netsync/device"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the configuration option
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithNodeID sets the node id
func WithNodeID(id string) Option {
	return OptionFunc(func(config *Config) {
		config.NodeID = id
	})
}

// WithBindAddress sets the address the transport listens on
func WithBindAddress(host string, port int) Option {
	return OptionFunc(func(config *Config) {
		config.BindHost = host
		config.BindPort = port
	})
}

// WithLogLevel sets the log level
func WithLogLevel(level string) Option {
	return OptionFunc(func(config *Config) {
		config.LogLevel = level
	})
}

// WithMemberlist selects the memberlist transport joining the given seeds
func WithMemberlist(seeds ...string) Option {
	return OptionFunc(func(config *Config) {
		config.Transport.Kind = TransportMemberlist
		config.Transport.Seeds = seeds
	})
}

// WithNats selects the nats transport
func WithNats(url string) Option {
	return OptionFunc(func(config *Config) {
		config.Transport.Kind = TransportNats
		config.Transport.NatsURL = url
	})
}

// WithAntiEntropy sets the anti-entropy interval and fan-out
func WithAntiEntropy(interval time.Duration, fanOut device.FanOut) Option {
	return OptionFunc(func(config *Config) {
		config.AntiEntropy.Interval = interval
		config.AntiEntropy.FanOut = fanOut.String()
	})
}

// WithDispatcher sets the dispatch bound and the queue size of the event dispatcher
func WithDispatcher(maxDispatchTime time.Duration, queueSize int) Option {
	return OptionFunc(func(config *Config) {
		config.Dispatcher.MaxDispatchTime = maxDispatchTime
		config.Dispatcher.QueueSize = queueSize
	})
}

// WithPollInterval sets the statistics poll interval
func WithPollInterval(interval time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.PollInterval = interval
	})
}

// WithTermAuthority sets the term authority
func WithTermAuthority(authority TermAuthorityConfig) Option {
	return OptionFunc(func(config *Config) {
		config.TermAuthority = authority
	})
}
