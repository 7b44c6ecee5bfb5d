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
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/stripe"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/store"
)

// table holds the entries of one device, keyed by rule identity.
// It is guarded by the stripe lock of the device.
type table map[FlowID]*FlowEntry

// Store keeps the flow entries of every device.
// An entry is stored at most once per rule identity: inserting an equal rule replaces
// or confirms the existing entry and never adds a copy.
type Store struct {
	store.Base[*Event]

	logger    log.Logger
	stripes   int
	locks     *stripe.Locks
	tables    *xsync.Map[element.DeviceID, table]
	listeners *event.ListenerRegistry[*Event]
}

// NewStore creates a flow Store
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: log.DiscardLogger,
		tables: xsync.NewMap[element.DeviceID, table](),
	}
	for _, opt := range opts {
		opt.Apply(s)
	}
	s.locks = stripe.New(s.stripes)
	s.listeners = event.NewListenerRegistry[*Event](s.logger)
	return s
}

// Sink returns the event sink fanning flow events out to the listeners
func (s *Store) Sink() event.Sink {
	return s.listeners
}

// AddListener registers a listener of flow events and returns its id
func (s *Store) AddListener(listener event.Listener[*Event]) string {
	return s.listeners.AddListener(listener)
}

// RemoveListener unregisters the listener with the given id
func (s *Store) RemoveListener(id string) {
	s.listeners.RemoveListener(id)
}

// StoreFlowRule records the rule as pending addition.
// Storing a rule equal to a stored one is a no-op and returns nil.
func (s *Store) StoreFlowRule(rule FlowRule) *Event {
	lock := s.lockFor(rule.DeviceID)
	lock.Lock()
	entries := s.tableOf(rule.DeviceID)
	id := rule.ID()
	if _, ok := entries[id]; ok {
		lock.Unlock()
		s.logger.Debugf("flow rule=(%s) already stored on device=(%s)", id, rule.DeviceID)
		return nil
	}
	entry := &FlowEntry{Rule: rule.clone(), State: PendingAdd}
	entries[id] = entry
	ev := newEvent(RuleAddRequested, *entry)
	lock.Unlock()

	s.NotifyDelegate(ev)
	return ev
}

// DeleteFlowRule marks the stored rule as pending removal.
// The entry is dropped once the device reports the removal through RemoveFlowRule.
func (s *Store) DeleteFlowRule(rule FlowRule) *Event {
	lock := s.lockFor(rule.DeviceID)
	lock.Lock()
	entry, ok := s.lookup(rule)
	if !ok || entry.State == PendingRemove {
		lock.Unlock()
		return nil
	}
	entry.State = PendingRemove
	ev := newEvent(RuleRemoveRequested, *entry)
	lock.Unlock()

	s.NotifyDelegate(ev)
	return ev
}

// AddOrUpdateFlowRule reconciles an entry observed on the device.
// It returns a RULE_ADDED event when the entry is new or confirms a pending addition,
// and a RULE_UPDATED event when it replaces the counters of a stored entry.
func (s *Store) AddOrUpdateFlowRule(observed FlowEntry) *Event {
	deviceID := observed.Rule.DeviceID
	lock := s.lockFor(deviceID)
	lock.Lock()

	var ev *Event
	if stored, ok := s.lookup(observed.Rule); ok {
		stored.Bytes = observed.Bytes
		stored.Packets = observed.Packets
		stored.Life = observed.Life
		stored.LastSeen = time.Now()
		if stored.State == PendingAdd {
			stored.State = Added
			ev = newEvent(RuleAdded, *stored)
		} else {
			ev = newEvent(RuleUpdated, *stored)
		}
	} else {
		entry := observed.clone()
		entry.State = Added
		entry.LastSeen = time.Now()
		s.tableOf(deviceID)[entry.Rule.ID()] = &entry
		ev = newEvent(RuleAdded, entry)
	}
	lock.Unlock()

	s.NotifyDelegate(ev)
	return ev
}

// RemoveFlowRule drops the entry the device reported removed.
// It returns nil, and emits nothing, when no equal entry is stored.
func (s *Store) RemoveFlowRule(removed FlowEntry) *Event {
	deviceID := removed.Rule.DeviceID
	lock := s.lockFor(deviceID)
	lock.Lock()
	entries, ok := s.tables.Get(deviceID)
	if !ok {
		lock.Unlock()
		return nil
	}
	id := removed.Rule.ID()
	stored, ok := entries[id]
	if !ok {
		lock.Unlock()
		return nil
	}
	delete(entries, id)
	entry := *stored
	entry.State = Removed
	entry.Bytes, entry.Packets, entry.Life = removed.Bytes, removed.Packets, removed.Life
	ev := newEvent(RuleRemoved, entry)
	lock.Unlock()

	s.NotifyDelegate(ev)
	return ev
}

// PurgeFlowRules drops every entry of the device without emitting events and returns how many were dropped
func (s *Store) PurgeFlowRules(deviceID element.DeviceID) int {
	lock := s.lockFor(deviceID)
	lock.Lock()
	defer lock.Unlock()
	entries, ok := s.tables.Get(deviceID)
	if !ok {
		return 0
	}
	s.tables.Delete(deviceID)
	return len(entries)
}

// FlowEntry returns the stored entry equal to the rule
func (s *Store) FlowEntry(rule FlowRule) (FlowEntry, bool) {
	lock := s.lockFor(rule.DeviceID)
	lock.RLock()
	defer lock.RUnlock()
	entry, ok := s.lookup(rule)
	if !ok {
		return FlowEntry{}, false
	}
	return entry.clone(), true
}

// FlowEntries returns the entries of the device ordered by rule identity
func (s *Store) FlowEntries(deviceID element.DeviceID) []FlowEntry {
	lock := s.lockFor(deviceID)
	lock.RLock()
	entries, ok := s.tables.Get(deviceID)
	if !ok {
		lock.RUnlock()
		return nil
	}
	out := make([]FlowEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.clone())
	}
	lock.RUnlock()

	slices.SortFunc(out, func(a, b FlowEntry) int { return cmp.Compare(a.Rule.ID(), b.Rule.ID()) })
	return out
}

// FlowRuleCount returns the number of entries of every device
func (s *Store) FlowRuleCount() int {
	count := 0
	for _, deviceID := range s.tables.Keys() {
		count += len(s.FlowEntries(deviceID))
	}
	return count
}

func (s *Store) lockFor(deviceID element.DeviceID) *sync.RWMutex {
	return s.locks.For(string(deviceID))
}

// tableOf returns the table of the device, creating it. The device lock must be held.
func (s *Store) tableOf(deviceID element.DeviceID) table {
	entries, _ := s.tables.GetOrSet(deviceID, func() table { return make(table) })
	return entries
}

// lookup returns the stored entry equal to the rule. The device lock must be held.
func (s *Store) lookup(rule FlowRule) (*FlowEntry, bool) {
	entries, ok := s.tables.Get(rule.DeviceID)
	if !ok {
		return nil, false
	}
	entry, ok := entries[rule.ID()]
	return entry, ok
}
