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
	"context"

	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/mastership"
)

// handlers of the updates replicated by the masters. Every message goes through the
// same apply-if-newer path as the local mutations.

func (s *Store) handleDeviceUpdate(ctx context.Context, msg *cluster.Message) {
	update, err := decodeDeviceUpdate(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping device update from node=(%s): %v", msg.Sender, err)
		return
	}

	rec := s.record(update.deviceID)
	rec.mu.Lock()
	events, _ := s.createOrUpdateDeviceLocked(ctx, rec, update.providerID, update.deviceID, update.desc)
	rec.mu.Unlock()
	s.NotifyDelegate(events...)
}

func (s *Store) handlePortsUpdate(ctx context.Context, msg *cluster.Message) {
	update, err := decodePortsUpdate(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping ports update from node=(%s): %v", msg.Sender, err)
		return
	}

	rec, ok := s.records.Get(update.deviceID)
	if !ok {
		s.logger.Debugf("dropping ports of unknown device=(%s)", update.deviceID)
		return
	}
	rec.mu.Lock()
	events := s.updatePortsLocked(ctx, rec, update.providerID, update.deviceID, update.ports, update.stamp)
	rec.mu.Unlock()
	s.NotifyDelegate(events...)
}

func (s *Store) handlePortStatusUpdate(ctx context.Context, msg *cluster.Message) {
	update, err := decodePortStatusUpdate(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping port status update from node=(%s): %v", msg.Sender, err)
		return
	}

	rec, ok := s.records.Get(update.deviceID)
	if !ok {
		s.logger.Debugf("dropping port status of unknown device=(%s)", update.deviceID)
		return
	}
	rec.mu.Lock()
	ev := s.updatePortStatusLocked(ctx, rec, update.providerID, update.deviceID, update.desc)
	rec.mu.Unlock()
	s.NotifyDelegate(compact(ev)...)
}

func (s *Store) handleDeviceOffline(_ context.Context, msg *cluster.Message) {
	marker, err := decodeDeviceStamp(codec.KindDeviceOffline, msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping offline marker from node=(%s): %v", msg.Sender, err)
		return
	}

	rec, ok := s.records.Get(marker.deviceID)
	if !ok {
		return
	}
	rec.mu.Lock()
	ev, _ := s.markOfflineLocked(rec, marker.deviceID, marker.stamp)
	rec.mu.Unlock()
	s.NotifyDelegate(compact(ev)...)
}

func (s *Store) handleDeviceRemoved(_ context.Context, msg *cluster.Message) {
	removal, err := decodeDeviceStamp(codec.KindDeviceRemoved, msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping device removal from node=(%s): %v", msg.Sender, err)
		return
	}

	rec, ok := s.records.Get(removal.deviceID)
	if !ok {
		return
	}
	rec.mu.Lock()
	ev := s.removeDeviceLocked(rec, removal.deviceID, removal.stamp)
	rec.mu.Unlock()
	s.NotifyDelegate(compact(ev)...)
}

func (s *Store) handleRemoveRequest(ctx context.Context, msg *cluster.Message) {
	deviceID, err := decodeRemoveRequest(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping remove request from node=(%s): %v", msg.Sender, err)
		return
	}

	// the request may have raced a hand over; the requester retries against the new master
	if master, ok := s.mastership.MasterFor(deviceID); !ok || master != s.localID() {
		s.logger.Debugf("ignoring remove request of device=(%s) from node=(%s): not the master", deviceID, msg.Sender)
		return
	}
	if _, err := s.RemoveDevice(ctx, deviceID); err != nil {
		s.logger.Warnf("failed to remove device=(%s) on request of node=(%s): %v", deviceID, msg.Sender, err)
	}
}

var _ Mastership = (*mastership.Service)(nil)
var _ Clock = (*mastership.ClockService)(nil)
