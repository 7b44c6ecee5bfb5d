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

// Package host is the replicated store of the end stations attached to the network.
//
// A host is only ever reported by the node that observed it, so its descriptions are
// stamped with wall clock timestamps and replicated by broadcast.
package host

import (
	"maps"
	"slices"

	"github.com/tochemey/netsync/element"
)

// Description is what a provider reports about a host
type Description struct {
	MAC         string
	VLAN        uint16
	Location    element.ConnectPoint
	IPs         []string
	Annotations map[string]string
}

// ID returns the id of the described host
func (d Description) ID() element.HostID {
	return element.HostID{MAC: d.MAC, VLAN: d.VLAN}
}

// Host is an end station attached to the network
type Host struct {
	ID          element.HostID
	ProviderID  element.ProviderID
	Location    element.ConnectPoint
	IPs         []string
	Annotations map[string]string
}

func (h Host) clone() Host {
	h.IPs = slices.Clone(h.IPs)
	h.Annotations = maps.Clone(h.Annotations)
	return h
}

// description rebuilds the description the host was recorded from
func (h Host) description() Description {
	return Description{
		MAC:         h.ID.MAC,
		VLAN:        h.ID.VLAN,
		Location:    h.Location,
		IPs:         slices.Clone(h.IPs),
		Annotations: maps.Clone(h.Annotations),
	}
}

func (h Host) sameContent(other Host) bool {
	return h.ProviderID == other.ProviderID &&
		h.Location == other.Location &&
		slices.Equal(h.IPs, other.IPs) &&
		maps.Equal(h.Annotations, other.Annotations)
}

func newHost(providerID element.ProviderID, desc Description) Host {
	ips := slices.Clone(desc.IPs)
	slices.Sort(ips)
	return Host{
		ID:          desc.ID(),
		ProviderID:  providerID,
		Location:    desc.Location,
		IPs:         slices.Compact(ips),
		Annotations: maps.Clone(desc.Annotations),
	}
}
