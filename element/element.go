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

// Package element holds the identifiers of network elements and of the
// fragments of replicated state describing them.
// Every type is a comparable value usable as a map key.
package element

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceID identifies a network element, for instance "of:0000000000000001"
type DeviceID string

// String implements fmt.Stringer
func (id DeviceID) String() string {
	return string(id)
}

// PortNumber identifies a port within a device
type PortNumber uint64

// String implements fmt.Stringer
func (p PortNumber) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// ProviderID identifies the adapter that supplied a description.
// An ancillary provider only contributes annotations and never drives the device.
type ProviderID struct {
	Scheme    string
	ID        string
	Ancillary bool
}

// NewProviderID creates a primary provider id
func NewProviderID(scheme, id string) ProviderID {
	return ProviderID{Scheme: scheme, ID: id}
}

// NewAncillaryProviderID creates an ancillary provider id
func NewAncillaryProviderID(scheme, id string) ProviderID {
	return ProviderID{Scheme: scheme, ID: id, Ancillary: true}
}

// String implements fmt.Stringer
func (p ProviderID) String() string {
	s := p.Scheme + ":" + p.ID
	if p.Ancillary {
		s += "(ancillary)"
	}
	return s
}

// ConnectPoint is a port of a device
type ConnectPoint struct {
	DeviceID DeviceID
	Port     PortNumber
}

// String implements fmt.Stringer
func (c ConnectPoint) String() string {
	return string(c.DeviceID) + "/" + c.Port.String()
}

// ParseConnectPoint parses the "device/port" form returned by ConnectPoint.String
func ParseConnectPoint(s string) (ConnectPoint, error) {
	idx := strings.LastIndex(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return ConnectPoint{}, fmt.Errorf("invalid connect point %q", s)
	}
	port, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return ConnectPoint{}, fmt.Errorf("invalid connect point %q: %w", s, err)
	}
	return ConnectPoint{DeviceID: DeviceID(s[:idx]), Port: PortNumber(port)}, nil
}

// HostID identifies an end station by MAC address and VLAN
type HostID struct {
	MAC  string
	VLAN uint16
}

// String implements fmt.Stringer
func (h HostID) String() string {
	return strings.ToLower(h.MAC) + "/" + strconv.FormatUint(uint64(h.VLAN), 10)
}
