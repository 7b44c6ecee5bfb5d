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

package mastership

import (
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/timestamp"
)

// ClockService stamps the updates the local node makes to the devices it is master of.
// Stamps are ordered by term, then by a sequence shared by every device of the process.
type ClockService struct {
	service  *Service
	sequence *atomic.Uint64
}

// NewClockService creates a ClockService backed by the mastership Service
func NewClockService(service *Service) *ClockService {
	return &ClockService{
		service:  service,
		sequence: atomic.NewUint64(0),
	}
}

// Timestamp returns a new timestamp for the device.
// It fails with ErrNotMaster when the local node does not hold the current term of the device.
func (c *ClockService) Timestamp(deviceID element.DeviceID) (timestamp.MastershipBased, error) {
	term, ok := c.service.CurrentTerm(deviceID)
	if !ok || term.Master != c.service.localID() {
		return timestamp.MastershipBased{}, gerrors.ErrNotMaster
	}
	return timestamp.NewMastershipBased(term.Number, c.sequence.Inc()), nil
}

// IsAvailable reports whether the local node can stamp updates of the device
func (c *ClockService) IsAvailable(deviceID element.DeviceID) bool {
	term, ok := c.service.CurrentTerm(deviceID)
	return ok && term.Master == c.service.localID()
}
