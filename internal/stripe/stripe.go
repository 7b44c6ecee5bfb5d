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

// Package stripe provides a fixed set of read/write locks selected by key hash,
// so that keys sharing no stripe never contend.
package stripe

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultStripes is the number of locks of a Locks created with a non positive size
const DefaultStripes = 64

// Locks is a fixed array of RWMutex addressed by key
type Locks struct {
	locks []sync.RWMutex
}

// New creates Locks with n stripes
func New(n int) *Locks {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Locks{locks: make([]sync.RWMutex, n)}
}

// For returns the lock guarding the key
func (l *Locks) For(key string) *sync.RWMutex {
	return &l.locks[xxh3.HashString(key)%uint64(len(l.locks))]
}

// Len returns the number of stripes
func (l *Locks) Len() int {
	return len(l.locks)
}
