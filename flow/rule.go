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

// Package flow keeps the flow rules installed on the devices and their lifecycle state.
package flow

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/tochemey/netsync/element"
)

// FlowID identifies a rule on its device. It is derived from the fields that make two rules equal.
type FlowID uint64

// String implements fmt.Stringer
func (id FlowID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

// FlowRule is a match/action entry of a device table.
// Two rules are equal when they target the same device, table, priority and selector.
type FlowRule struct {
	DeviceID  element.DeviceID
	AppID     string
	TableID   uint32
	Priority  uint32
	Selector  map[string]string
	Treatment []string
	// OutPort is the port the treatment forwards to, zero when the rule does not output
	OutPort   element.PortNumber
	Timeout   time.Duration
	Permanent bool
}

// ID returns the identity of the rule
func (r FlowRule) ID() FlowID {
	var b strings.Builder
	b.WriteString(string(r.DeviceID))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(r.TableID), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(r.Priority), 10))
	for _, key := range slices.Sorted(maps.Keys(r.Selector)) {
		b.WriteByte('|')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(r.Selector[key])
	}
	return FlowID(xxh3.HashString(b.String()))
}

// Equal reports whether both rules designate the same entry of the device
func (r FlowRule) Equal(other FlowRule) bool {
	return r.DeviceID == other.DeviceID &&
		r.TableID == other.TableID &&
		r.Priority == other.Priority &&
		maps.Equal(r.Selector, other.Selector)
}

func (r FlowRule) clone() FlowRule {
	r.Selector = maps.Clone(r.Selector)
	r.Treatment = slices.Clone(r.Treatment)
	return r
}

// EntryState is the lifecycle state of a stored rule
type EntryState int

const (
	// PendingAdd is a rule requested but not yet observed on the device
	PendingAdd EntryState = iota
	// Added is a rule observed on the device
	Added
	// PendingRemove is a rule whose removal was requested but not yet observed
	PendingRemove
	// Removed is a rule the device reported removed
	Removed
)

// String implements fmt.Stringer
func (s EntryState) String() string {
	switch s {
	case PendingAdd:
		return "PENDING_ADD"
	case Added:
		return "ADDED"
	case PendingRemove:
		return "PENDING_REMOVE"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// FlowEntry is a rule with its state and the counters reported by the device
type FlowEntry struct {
	Rule     FlowRule
	State    EntryState
	Bytes    uint64
	Packets  uint64
	Life     time.Duration
	LastSeen time.Time
}

// NewFlowEntry creates the entry of a rule observed on a device
func NewFlowEntry(rule FlowRule, bytes, packets uint64, life time.Duration) FlowEntry {
	return FlowEntry{Rule: rule, State: Added, Bytes: bytes, Packets: packets, Life: life}
}

func (e FlowEntry) clone() FlowEntry {
	e.Rule = e.Rule.clone()
	return e
}
