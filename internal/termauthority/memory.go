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

// Package termauthority implements the per-device mastership term counters.
//
// Every implementation hands out, for a given device, numbers that strictly
// increase across calls and across the nodes sharing the authority. Gaps are allowed.
package termauthority

import (
	"context"
	"sync"

	"github.com/tochemey/netsync/element"
)

// Memory is a process-local term authority. It suits tests and standalone nodes.
type Memory struct {
	mu    sync.Mutex
	terms map[element.DeviceID]uint64
}

// NewMemory creates a Memory authority
func NewMemory() *Memory {
	return &Memory{terms: make(map[element.DeviceID]uint64)}
}

// NextTerm returns the next term of the device
func (m *Memory) NextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms[deviceID]++
	return m.terms[deviceID], nil
}

// Close implements io.Closer
func (m *Memory) Close() error {
	return nil
}
