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

// Package device is the replicated store of the devices and ports of the network.
//
// Every provider describing a device contributes its own fragment, versioned by the
// timestamp the master stamped it with. The store composes the fragments into the
// Device and Port views, replicates the changes made by the master, and repairs
// divergent replicas with a periodic anti-entropy exchange of fragment digests.
package device

import (
	"maps"

	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/timestamp"
)

// Description is what a provider reports about a device
type Description struct {
	Type             string
	Manufacturer     string
	HwVersion        string
	SwVersion        string
	SerialNumber     string
	ChassisID        string
	DefaultAvailable bool
	Annotations      map[string]string
}

// Equal compares every attribute of the descriptions
func (d Description) Equal(other Description) bool {
	return d.Type == other.Type &&
		d.Manufacturer == other.Manufacturer &&
		d.HwVersion == other.HwVersion &&
		d.SwVersion == other.SwVersion &&
		d.SerialNumber == other.SerialNumber &&
		d.ChassisID == other.ChassisID &&
		d.DefaultAvailable == other.DefaultAvailable &&
		maps.Equal(d.Annotations, other.Annotations)
}

// PortDescription is what a provider reports about a port
type PortDescription struct {
	Number      element.PortNumber
	Enabled     bool
	Removed     bool
	Type        string
	Speed       uint64
	Annotations map[string]string
}

// Equal compares every attribute of the descriptions
func (p PortDescription) Equal(other PortDescription) bool {
	return p.Number == other.Number &&
		p.Enabled == other.Enabled &&
		p.Removed == other.Removed &&
		p.Type == other.Type &&
		p.Speed == other.Speed &&
		maps.Equal(p.Annotations, other.Annotations)
}

// Device is the view of a device composed from the descriptions of its providers
type Device struct {
	ID           element.DeviceID
	ProviderID   element.ProviderID
	Type         string
	Manufacturer string
	HwVersion    string
	SwVersion    string
	SerialNumber string
	ChassisID    string
	Annotations  map[string]string
}

// Port is the view of a port composed from the descriptions of its providers
type Port struct {
	DeviceID    element.DeviceID
	Number      element.PortNumber
	Enabled     bool
	Type        string
	Speed       uint64
	Annotations map[string]string
}

// Timestamped pairs a value with the timestamp it was stamped with
type Timestamped[T any] struct {
	Value     T
	Timestamp timestamp.Timestamp
}

// providerDescriptions holds the fragments one provider contributed about a device
type providerDescriptions struct {
	device Timestamped[Description]
	ports  map[element.PortNumber]Timestamped[PortDescription]
}

func newProviderDescriptions(desc Timestamped[Description]) *providerDescriptions {
	return &providerDescriptions{
		device: desc,
		ports:  make(map[element.PortNumber]Timestamped[PortDescription]),
	}
}

// latest returns the newest timestamp among the fragments of the provider
func (p *providerDescriptions) latest() timestamp.Timestamp {
	newest := p.device.Timestamp
	for _, port := range p.ports {
		if cmp, err := timestamp.Compare(port.Timestamp, newest); err == nil && cmp > 0 {
			newest = port.Timestamp
		}
	}
	return newest
}

func (d Device) propertiesDiffer(other Device) bool {
	return d.HwVersion != other.HwVersion ||
		d.SwVersion != other.SwVersion ||
		d.ProviderID != other.ProviderID ||
		d.ChassisID != other.ChassisID
}

func (p Port) differs(other Port) bool {
	return p.Enabled != other.Enabled ||
		p.Type != other.Type ||
		p.Speed != other.Speed ||
		!maps.Equal(p.Annotations, other.Annotations)
}
