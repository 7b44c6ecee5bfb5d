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

package flow

import (
	"time"

	"github.com/tochemey/netsync/event"
)

// EventClass is the dispatcher class of flow rule events
const EventClass = "flow"

// EventType tells what happened to a rule
type EventType int

const (
	RuleAddRequested EventType = iota
	RuleRemoveRequested
	RuleAdded
	RuleUpdated
	RuleRemoved
)

// String implements fmt.Stringer
func (t EventType) String() string {
	switch t {
	case RuleAddRequested:
		return "RULE_ADD_REQUESTED"
	case RuleRemoveRequested:
		return "RULE_REMOVE_REQUESTED"
	case RuleAdded:
		return "RULE_ADDED"
	case RuleUpdated:
		return "RULE_UPDATED"
	case RuleRemoved:
		return "RULE_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event describes a change of the flow store
type Event struct {
	Type  EventType
	Entry FlowEntry
	at    time.Time
}

var _ event.Event = (*Event)(nil)

func newEvent(typ EventType, entry FlowEntry) *Event {
	return &Event{Type: typ, Entry: entry.clone(), at: time.Now()}
}

// Class implements event.Event
func (e *Event) Class() string {
	return EventClass
}

// Time implements event.Event
func (e *Event) Time() time.Time {
	return e.at
}
