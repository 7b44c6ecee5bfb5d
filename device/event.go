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

package device

import (
	"time"

	"github.com/tochemey/netsync/event"
)

// EventClass is the dispatcher class of device events
const EventClass = "device"

// EventType tells what happened to a device or one of its ports
type EventType int

const (
	DeviceAdded EventType = iota
	DeviceUpdated
	DeviceRemoved
	DeviceAvailabilityChanged
	PortAdded
	PortUpdated
	PortRemoved
)

// String implements fmt.Stringer
func (t EventType) String() string {
	switch t {
	case DeviceAdded:
		return "DEVICE_ADDED"
	case DeviceUpdated:
		return "DEVICE_UPDATED"
	case DeviceRemoved:
		return "DEVICE_REMOVED"
	case DeviceAvailabilityChanged:
		return "DEVICE_AVAILABILITY_CHANGED"
	case PortAdded:
		return "PORT_ADDED"
	case PortUpdated:
		return "PORT_UPDATED"
	case PortRemoved:
		return "PORT_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event describes a change of the device store. Port is set for port events only.
type Event struct {
	Type   EventType
	Device Device
	Port   *Port
	at     time.Time
}

var _ event.Event = (*Event)(nil)

func newEvent(typ EventType, device Device, port *Port) *Event {
	return &Event{Type: typ, Device: device, Port: port, at: time.Now()}
}

// Class implements event.Event
func (e *Event) Class() string {
	return EventClass
}

// Time implements event.Event
func (e *Event) Time() time.Time {
	return e.at
}
