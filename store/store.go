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

// Package store provides the substrate shared by the replicated stores:
// the single delegate that consumes the events a store produces.
package store

import (
	"sync"

	gerrors "github.com/tochemey/netsync/errors"
)

// Delegate consumes the events generated by a store.
// Notify must not block; implementations hand events off to an asynchronous dispatcher.
// Delegates are compared by identity so implementations must be comparable, typically pointers.
type Delegate[E any] interface {
	Notify(event E)
}

// Base holds at most one delegate. Concrete stores embed it.
type Base[E any] struct {
	mu       sync.RWMutex
	delegate Delegate[E]
}

// SetDelegate registers the delegate.
// Setting the delegate already registered is a no-op.
// It returns ErrDelegateConflict when a different delegate is registered.
func (b *Base[E]) SetDelegate(delegate Delegate[E]) error {
	if delegate == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.delegate {
	case nil:
		b.delegate = delegate
		return nil
	case delegate:
		return nil
	default:
		return gerrors.ErrDelegateConflict
	}
}

// UnsetDelegate clears the delegate only when it is the registered one
func (b *Base[E]) UnsetDelegate(delegate Delegate[E]) {
	b.mu.Lock()
	if b.delegate != nil && b.delegate == delegate {
		b.delegate = nil
	}
	b.mu.Unlock()
}

// HasDelegate reports whether a delegate is registered
func (b *Base[E]) HasDelegate() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delegate != nil
}

// NotifyDelegate forwards the events to the registered delegate.
// Events are dropped when no delegate is registered.
func (b *Base[E]) NotifyDelegate(events ...E) {
	b.mu.RLock()
	delegate := b.delegate
	b.mu.RUnlock()
	if delegate == nil {
		return
	}
	for _, event := range events {
		delegate.Notify(event)
	}
}
