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

// Package event delivers domain events to the subsystems interested in them.
//
// A Dispatcher owns one sink per event class. Posting never blocks on a sink:
// events are queued and delivered by a dispatch loop, each sink invocation is
// bounded in time, and a failing sink never prevents the delivery of later events.
package event

import (
	"context"
	"time"
)

// Event is a domain event
type Event interface {
	// Class names the family of the event. Sinks are registered per class.
	Class() string
	// Time returns when the event was created
	Time() time.Time
}

// Sink consumes the events of one class.
// The context is cancelled when the invocation exceeds the dispatch limit.
type Sink interface {
	Process(ctx context.Context, event Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(ctx context.Context, event Event)

// Process implements Sink
func (f SinkFunc) Process(ctx context.Context, event Event) {
	f(ctx, event)
}

// Poster accepts events for asynchronous delivery
type Poster interface {
	Post(event Event) error
}

// State is the dispatcher lifecycle state
type State int

const (
	// Inactive dispatchers reject events
	Inactive State = iota
	// Active dispatchers accept and deliver events
	Active
)

// String implements fmt.Stringer
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}
