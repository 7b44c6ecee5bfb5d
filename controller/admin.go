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

package controller

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/tochemey/netsync/cluster"
	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/flow"
	"github.com/tochemey/netsync/mastership"
	"github.com/tochemey/netsync/statistic"
)

// SyncStatus is the replication state of one device as seen by the local node
type SyncStatus struct {
	DeviceID  element.DeviceID
	Role      mastership.Role
	Master    cluster.NodeID
	Term      uint64
	HasMaster bool
	Known     bool
	Available bool
	// LastAdvertisement is when each peer last advertised its device digest
	LastAdvertisement map[cluster.NodeID]time.Time
}

// Mastership returns the role assignment and the current term of the device.
// The boolean is false when the device has no master.
func (c *Controller) Mastership(deviceID element.DeviceID) (mastership.RoleInfo, mastership.Term, bool) {
	term, ok := c.mastership.CurrentTerm(deviceID)
	return c.mastership.NodesFor(deviceID), term, ok
}

// SetRole assigns the role of the node for the device
func (c *Controller) SetRole(ctx context.Context, node cluster.NodeID, deviceID element.DeviceID, role mastership.Role) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	return c.mastership.SetRole(ctx, node, deviceID, role)
}

// Relinquish gives up every role of the local node for the device
func (c *Controller) Relinquish(ctx context.Context, deviceID element.DeviceID) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	return c.mastership.Relinquish(ctx, deviceID)
}

// ApplyFlowRules records the rules as pending and hands them to the adapter of their device
func (c *Controller) ApplyFlowRules(_ context.Context, rules ...flow.FlowRule) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	for _, rule := range rules {
		c.flows.StoreFlowRule(rule)
	}
	return nil
}

// RemoveFlowRules marks the rules pending removal and hands them to the adapter of their device
func (c *Controller) RemoveFlowRules(_ context.Context, rules ...flow.FlowRule) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	for _, rule := range rules {
		c.flows.DeleteFlowRule(rule)
	}
	return nil
}

// FlowEntries returns the flow entries of the device
func (c *Controller) FlowEntries(deviceID element.DeviceID) []flow.FlowEntry {
	return c.flows.FlowEntries(deviceID)
}

// Load returns the load of the connect point
func (c *Controller) Load(cp element.ConnectPoint) statistic.Load {
	return c.statistics.Load(cp)
}

// ProbeHost asks the adapter that reported the host to check it is still there
func (c *Controller) ProbeHost(ctx context.Context, hostID element.HostID) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	h, ok := c.hosts.Host(hostID)
	if !ok {
		return gerrors.ErrHostNotFound
	}
	provider, ok := c.hostProviders.Get(h.ProviderID.Scheme)
	if !ok {
		return gerrors.ErrProviderNotFound
	}
	return provider.TriggerProbe(ctx, h)
}

// RunAntiEntropy runs one anti-entropy round of the device and the host stores right away
func (c *Controller) RunAntiEntropy(ctx context.Context) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	return multierr.Combine(c.devices.RunAntiEntropy(ctx), c.hosts.RunAntiEntropy(ctx))
}

// SyncStatus reports the replication state of the device
func (c *Controller) SyncStatus(deviceID element.DeviceID) SyncStatus {
	status := SyncStatus{
		DeviceID:          deviceID,
		Role:              c.mastership.LocalRole(deviceID),
		LastAdvertisement: make(map[cluster.NodeID]time.Time),
	}

	if term, ok := c.mastership.CurrentTerm(deviceID); ok {
		status.HasMaster = true
		status.Master = term.Master
		status.Term = term.Number
	}

	if _, ok := c.devices.Device(deviceID); ok {
		status.Known = true
		status.Available = c.devices.IsAvailable(deviceID)
	}

	for _, peer := range cluster.Peers(c.transport) {
		if at, ok := c.devices.LastAdvertisement(peer.ID); ok {
			status.LastAdvertisement[peer.ID] = at
		}
	}
	return status
}
