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

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/flow"
	"github.com/tochemey/netsync/host"
)

// Provider is a protocol adapter. Adapters are looked up by the scheme of their id,
// which is the scheme of the provider ids they report elements with.
type Provider interface {
	ID() element.ProviderID
}

// HostProvider is an adapter able to probe hosts
type HostProvider interface {
	Provider
	// TriggerProbe asks the adapter to check the host is still attached at its location.
	// The result comes back through HostDetected or HostVanished.
	TriggerProbe(ctx context.Context, host host.Host) error
}

// FlowRuleProvider is an adapter programming the tables of the devices
type FlowRuleProvider interface {
	Provider
	// ApplyFlowRule installs the rules. The device reports them back through FlowRuleObserved.
	ApplyFlowRule(ctx context.Context, rules ...flow.FlowRule) error
	// RemoveFlowRule uninstalls the rules. The device reports them back through FlowRuleRemoved.
	RemoveFlowRule(ctx context.Context, rules ...flow.FlowRule) error
}

// RegisterHostProvider registers the adapter, replacing the one registered for the same scheme
func (c *Controller) RegisterHostProvider(provider HostProvider) {
	c.hostProviders.Set(provider.ID().Scheme, provider)
}

// UnregisterHostProvider removes the adapter
func (c *Controller) UnregisterHostProvider(provider HostProvider) {
	c.hostProviders.Delete(provider.ID().Scheme)
}

// RegisterFlowRuleProvider registers the adapter, replacing the one registered for the same scheme
func (c *Controller) RegisterFlowRuleProvider(provider FlowRuleProvider) {
	c.flowProviders.Set(provider.ID().Scheme, provider)
}

// UnregisterFlowRuleProvider removes the adapter
func (c *Controller) UnregisterFlowRuleProvider(provider FlowRuleProvider) {
	c.flowProviders.Delete(provider.ID().Scheme)
}

// flowProviderOf returns the adapter driving the device
func (c *Controller) flowProviderOf(deviceID element.DeviceID) (FlowRuleProvider, error) {
	dev, ok := c.devices.Device(deviceID)
	if !ok {
		return nil, gerrors.ErrDeviceNotFound
	}
	provider, ok := c.flowProviders.Get(dev.ProviderID.Scheme)
	if !ok {
		return nil, gerrors.ErrProviderNotFound
	}
	return provider, nil
}
