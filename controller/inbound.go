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
	"fmt"
	"time"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/flow"
	"github.com/tochemey/netsync/host"
	"github.com/tochemey/netsync/mastership"
)

// DeviceConnected is called by an adapter when it established a session with the device.
// The local node requests the mastership of the device and, once master, records the description.
// A node ending up standby leaves the description to the master.
func (c *Controller) DeviceConnected(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, desc device.Description) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}

	role, err := c.mastership.RequestRole(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to request the role of device=(%s): %w", deviceID, err)
	}

	if role != mastership.RoleMaster {
		c.logger.Debugf("node=(%s) is %s of device=(%s)", c.LocalNode().ID, role, deviceID)
		return nil
	}

	_, err = c.devices.CreateOrUpdateDevice(ctx, providerID, deviceID, desc)
	return err
}

// DeviceDisconnected is called by an adapter when its session with the device ended.
// The master marks the device offline and relinquishes its role. Ancillary providers never
// take a device offline.
func (c *Controller) DeviceDisconnected(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}

	if providerID.Ancillary {
		return nil
	}

	if c.mastership.LocalRole(deviceID) != mastership.RoleMaster {
		c.logger.Debugf("ignoring disconnection of device=(%s): node=(%s) is not its master", deviceID, c.LocalNode().ID)
		return nil
	}

	if _, err := c.devices.MarkOffline(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to mark device=(%s) offline: %w", deviceID, err)
	}
	return c.mastership.Relinquish(ctx, deviceID)
}

// PortsUpdated records the complete port list the provider reported for the device
func (c *Controller) PortsUpdated(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, ports []device.PortDescription) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	_, err := c.devices.UpdatePorts(ctx, providerID, deviceID, ports)
	return err
}

// PortStatusChanged records the change of a single port
func (c *Controller) PortStatusChanged(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, port device.PortDescription) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	_, err := c.devices.UpdatePortStatus(ctx, providerID, deviceID, port)
	return err
}

// HostDetected records the host the provider observed
func (c *Controller) HostDetected(ctx context.Context, providerID element.ProviderID, desc host.Description) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	_, err := c.hosts.HostDetected(ctx, providerID, desc)
	return err
}

// HostVanished removes the host the provider no longer observes
func (c *Controller) HostVanished(ctx context.Context, hostID element.HostID) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	_, err := c.hosts.HostVanished(ctx, hostID)
	return err
}

// FlowRuleObserved reconciles an entry the device reported installed
func (c *Controller) FlowRuleObserved(_ context.Context, entry flow.FlowEntry) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	c.flows.AddOrUpdateFlowRule(entry)
	return nil
}

// FlowRuleRemoved drops an entry the device reported removed
func (c *Controller) FlowRuleRemoved(_ context.Context, entry flow.FlowEntry) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}
	c.flows.RemoveFlowRule(entry)
	return nil
}

// FlowStatsObserved reconciles the complete table the device reported.
//
// Every reported entry is added or updated, and the byte counters of the entries are
// summed per output port into the port load samples. Stored entries missing from the
// report are reconciled too: pending removals are confirmed and installed rules the
// device lost are applied again.
func (c *Controller) FlowStatsObserved(ctx context.Context, deviceID element.DeviceID, entries []flow.FlowEntry) error {
	if err := c.ensureStarted(); err != nil {
		return err
	}

	observed := goset.NewThreadUnsafeSet[flow.FlowID]()
	counters := make(map[element.PortNumber]uint64)
	for _, entry := range entries {
		if entry.Rule.DeviceID != deviceID {
			c.logger.Warnf("skipping entry of device=(%s) reported with the table of device=(%s)", entry.Rule.DeviceID, deviceID)
			continue
		}
		observed.Add(entry.Rule.ID())
		c.flows.AddOrUpdateFlowRule(entry)
		if entry.Rule.OutPort != 0 {
			counters[entry.Rule.OutPort] += entry.Bytes
		}
	}

	now := time.Now()
	for port, counter := range counters {
		c.statistics.Record(element.ConnectPoint{DeviceID: deviceID, Port: port}, counter, now)
	}

	var lost []flow.FlowRule
	for _, stored := range c.flows.FlowEntries(deviceID) {
		if observed.Contains(stored.Rule.ID()) {
			continue
		}
		switch stored.State {
		case flow.PendingRemove:
			c.flows.RemoveFlowRule(stored)
		case flow.Added:
			lost = append(lost, stored.Rule)
		default:
		}
	}

	if len(lost) == 0 {
		return nil
	}

	provider, err := c.flowProviderOf(deviceID)
	if err != nil {
		return fmt.Errorf("failed to re-apply %d flow rule(s) of device=(%s): %w", len(lost), deviceID, err)
	}
	c.logger.Infof("re-applying %d flow rule(s) missing from device=(%s)", len(lost), deviceID)
	return provider.ApplyFlowRule(ctx, lost...)
}
