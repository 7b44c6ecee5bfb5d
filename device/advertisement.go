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
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/timestamp"
)

// Advertisement is the digest a node sends its peers on every anti-entropy round.
// It maps every fragment held by the sender to its timestamp and never carries content.
type Advertisement struct {
	Sender  cluster.NodeID
	Devices map[element.DeviceFragmentID]timestamp.Timestamp
	Ports   map[element.PortFragmentID]timestamp.Timestamp
	Offline map[element.DeviceID]timestamp.Timestamp
}

func newAdvertisement(sender cluster.NodeID) *Advertisement {
	return &Advertisement{
		Sender:  sender,
		Devices: make(map[element.DeviceFragmentID]timestamp.Timestamp),
		Ports:   make(map[element.PortFragmentID]timestamp.Timestamp),
		Offline: make(map[element.DeviceID]timestamp.Timestamp),
	}
}

// Size returns the number of entries of the digest
func (a *Advertisement) Size() int {
	return len(a.Devices) + len(a.Ports) + len(a.Offline)
}

// advertise adds the fragments of the record to the advertisement. The record lock must be held.
func (a *Advertisement) advertise(deviceID element.DeviceID, rec *record) {
	for providerID, descs := range rec.providers {
		a.Devices[element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerID}] = descs.device.Timestamp
		for number, port := range descs.ports {
			a.Ports[element.PortFragmentID{DeviceID: deviceID, ProviderID: providerID, PortNumber: number}] = port.Timestamp
		}
	}
	if rec.offline != nil {
		a.Offline[deviceID] = rec.offline
	}
}
