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

package element

import "fmt"

// DeviceFragmentID scopes the description of a device supplied by one provider
type DeviceFragmentID struct {
	DeviceID   DeviceID
	ProviderID ProviderID
}

// String implements fmt.Stringer
func (f DeviceFragmentID) String() string {
	return fmt.Sprintf("%s@%s", f.DeviceID, f.ProviderID)
}

// PortFragmentID scopes the description of a port supplied by one provider
type PortFragmentID struct {
	DeviceID   DeviceID
	ProviderID ProviderID
	PortNumber PortNumber
}

// String implements fmt.Stringer
func (f PortFragmentID) String() string {
	return fmt.Sprintf("%s/%s@%s", f.DeviceID, f.PortNumber, f.ProviderID)
}

// DeviceFragment returns the id of the device fragment the port fragment belongs to
func (f PortFragmentID) DeviceFragment() DeviceFragmentID {
	return DeviceFragmentID{DeviceID: f.DeviceID, ProviderID: f.ProviderID}
}
