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

// Package static implements a discovery provider returning a fixed list of seed members
package static

import (
	"slices"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/netsync/discovery"
)

// Discovery represents the static discovery provider
type Discovery struct {
	mu          sync.Mutex
	config      *Config
	initialized *atomic.Bool
	registered  *atomic.Bool
}

// enforce compilation error
var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates an instance of Discovery
func NewDiscovery(config *Config) *Discovery {
	return &Discovery{
		config:      config,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
	}
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return "static"
}

// Initialize validates the seed list
func (d *Discovery) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	if err := d.config.Validate(); err != nil {
		return err
	}

	d.initialized.Store(true)
	return nil
}

// Register marks the provider as registered. There is no directory to write to.
func (d *Discovery) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if d.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	d.registered.Store(true)
	return nil
}

// Deregister marks the provider as deregistered
func (d *Discovery) Deregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.registered.Load() {
		return discovery.ErrNotRegistered
	}

	d.registered.Store(false)
	return nil
}

// DiscoverPeers returns the configured seed addresses
func (d *Discovery) DiscoverPeers() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}

	if !d.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	return slices.Clone(d.config.Hosts), nil
}
