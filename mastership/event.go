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

package mastership

import (
	"time"

	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
)

// EventClass is the dispatcher class of mastership events
const EventClass = "mastership"

// EventType tells what changed in a role assignment
type EventType int

const (
	// MasterChanged is raised when the master of a device changes
	MasterChanged EventType = iota
	// BackupsChanged is raised when only the backups of a device change
	BackupsChanged
)

// String implements fmt.Stringer
func (t EventType) String() string {
	if t == MasterChanged {
		return "MASTER_CHANGED"
	}
	return "BACKUPS_CHANGED"
}

// Event describes a change of the role assignment of a device
type Event struct {
	Type     EventType
	DeviceID element.DeviceID
	RoleInfo RoleInfo
	Term     Term
	at       time.Time
}

var _ event.Event = (*Event)(nil)

func newEvent(typ EventType, deviceID element.DeviceID, info RoleInfo, term Term) *Event {
	return &Event{
		Type:     typ,
		DeviceID: deviceID,
		RoleInfo: info,
		Term:     term,
		at:       time.Now(),
	}
}

// Class implements event.Event
func (e *Event) Class() string {
	return EventClass
}

// Time implements event.Event
func (e *Event) Time() time.Time {
	return e.at
}
