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

	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/flow"
	"github.com/tochemey/netsync/mastership"
)

// onDeviceEvent drops the node-local state of removed devices
func (c *Controller) onDeviceEvent(_ context.Context, ev *device.Event) {
	if ev.Type != device.DeviceRemoved {
		return
	}
	deviceID := ev.Device.ID
	purged := c.flows.PurgeFlowRules(deviceID)
	c.statistics.Forget(deviceID)
	c.logger.Debugf("device=(%s) removed: dropped %d flow entries", deviceID, purged)
}

// onFlowEvent hands the requested flow changes to the adapter driving the device.
// Only the master of the device talks to it.
func (c *Controller) onFlowEvent(ctx context.Context, ev *flow.Event) {
	if ev.Type != flow.RuleAddRequested && ev.Type != flow.RuleRemoveRequested {
		return
	}

	rule := ev.Entry.Rule
	if c.mastership.LocalRole(rule.DeviceID) != mastership.RoleMaster {
		c.logger.Debugf("not applying %s of rule=(%s): node=(%s) is not the master of device=(%s)",
			ev.Type, rule.ID(), c.LocalNode().ID, rule.DeviceID)
		return
	}

	provider, err := c.flowProviderOf(rule.DeviceID)
	if err != nil {
		c.logger.Warnf("cannot program rule=(%s) on device=(%s): %v", rule.ID(), rule.DeviceID, err)
		return
	}

	if ev.Type == flow.RuleAddRequested {
		err = provider.ApplyFlowRule(ctx, rule)
	} else {
		err = provider.RemoveFlowRule(ctx, rule)
	}
	if err != nil {
		c.logger.Errorf("provider=(%s) failed to program rule=(%s) on device=(%s): %v", provider.ID(), rule.ID(), rule.DeviceID, err)
	}
}
