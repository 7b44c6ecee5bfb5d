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

package host

import (
	"time"

	"github.com/tochemey/netsync/event"
)

// EventClass is the dispatcher class of host events
const EventClass = "host"

// EventType tells what happened to a host
type EventType int

const (
	HostAdded EventType = iota
	HostUpdated
	HostMoved
	HostRemoved
)

// String implements fmt.Stringer
func (t EventType) String() string {
	switch t {
	case HostAdded:
		return "HOST_ADDED"
	case HostUpdated:
		return "HOST_UPDATED"
	case HostMoved:
		return "HOST_MOVED"
	case HostRemoved:
		return "HOST_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event describes a change of the host store. Previous is set for moves.
type Event struct {
	Type     EventType
	Host     Host
	Previous *Host
	at       time.Time
}

var _ event.Event = (*Event)(nil)

func newEvent(typ EventType, host Host, previous *Host) *Event {
	return &Event{Type: typ, Host: host, Previous: previous, at: time.Now()}
}

// Class implements event.Event
func (e *Event) Class() string {
	return EventClass
}

// Time implements event.Event
func (e *Event) Time() time.Time {
	return e.at
}
