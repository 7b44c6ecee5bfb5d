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
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tochemey/netsync/log"
)

// Listener observes events of type E
type Listener[E Event] interface {
	OnEvent(ctx context.Context, event E)
}

// ListenerFunc adapts a function to a Listener
type ListenerFunc[E Event] func(ctx context.Context, event E)

// OnEvent implements Listener
func (f ListenerFunc[E]) OnEvent(ctx context.Context, event E) {
	f(ctx, event)
}

// ListenerRegistry is a Sink fanning events out to registered listeners.
// A listener that panics is logged and skipped; the remaining listeners still receive the event.
type ListenerRegistry[E Event] struct {
	logger    log.Logger
	mu        sync.RWMutex
	order     []string
	listeners map[string]Listener[E]
}

var _ Sink = (*ListenerRegistry[Event])(nil)

// NewListenerRegistry creates an empty ListenerRegistry
func NewListenerRegistry[E Event](logger log.Logger) *ListenerRegistry[E] {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &ListenerRegistry[E]{
		logger:    logger,
		listeners: make(map[string]Listener[E]),
	}
}

// AddListener registers the listener and returns the id used to remove it
func (r *ListenerRegistry[E]) AddListener(listener Listener[E]) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.listeners[id] = listener
	r.order = append(r.order, id)
	r.mu.Unlock()
	return id
}

// RemoveListener unregisters the listener with the given id
func (r *ListenerRegistry[E]) RemoveListener(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[id]; !ok {
		return
	}
	delete(r.listeners, id)
	for i, current := range r.order {
		if current == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered listeners
func (r *ListenerRegistry[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Process implements Sink. Listeners are called in registration order.
func (r *ListenerRegistry[E]) Process(ctx context.Context, event Event) {
	typed, ok := event.(E)
	if !ok {
		r.logger.Warnf("listener registry received unexpected event of class=(%s)", event.Class())
		return
	}

	r.mu.RLock()
	listeners := make([]Listener[E], 0, len(r.order))
	for _, id := range r.order {
		listeners = append(listeners, r.listeners[id])
	}
	r.mu.RUnlock()

	for _, listener := range listeners {
		if ctx.Err() != nil {
			return
		}
		r.notify(ctx, listener, typed)
	}
}

func (r *ListenerRegistry[E]) notify(ctx context.Context, listener Listener[E], event E) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("event listener failed on class=(%s): %v", event.Class(), rec)
		}
	}()
	listener.OnEvent(ctx, event)
}
