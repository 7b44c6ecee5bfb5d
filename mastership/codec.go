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
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/codec"
)

// assignment is the replicated state of one device
type assignment struct {
	deviceID element.DeviceID
	term     Term
	info     RoleInfo
	revision uint64
}

func (a *assignment) clone() *assignment {
	return &assignment{
		deviceID: a.deviceID,
		term:     a.term,
		info:     a.info.clone(),
		revision: a.revision,
	}
}

func (a *assignment) sameVersion(other *assignment) bool {
	return a.term.Number == other.term.Number && a.revision == other.revision
}

// newerThan orders assignments by term number, then by revision within a term
func (a *assignment) newerThan(other *assignment) bool {
	if other == nil {
		return true
	}
	if a.term.Number != other.term.Number {
		return a.term.Number > other.term.Number
	}
	return a.revision > other.revision
}

// update message
//
//	{1: device, 2: term master, 3: term number, 4: revision, 5: master, 6: backups (repeated)}
func encodeAssignment(a *assignment) ([]byte, error) {
	body := codec.NewWriter().
		Text(1, string(a.deviceID)).
		Text(2, string(a.term.Master)).
		Uint64(3, a.term.Number).
		Uint64(4, a.revision).
		Text(5, string(a.info.Master))
	for _, backup := range a.info.Backups {
		body.Text(6, string(backup))
	}
	return codec.Marshal(codec.KindMastershipUpdate, body)
}

func decodeAssignment(payload []byte) (*assignment, error) {
	reader, err := codec.Expect(payload, codec.KindMastershipUpdate)
	if err != nil {
		return nil, err
	}

	a := new(assignment)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			a.deviceID = element.DeviceID(reader.Text())
		case 2:
			a.term.Master = cluster.NodeID(reader.Text())
		case 3:
			a.term.Number = reader.Uint64()
		case 4:
			a.revision = reader.Uint64()
		case 5:
			a.info.Master = cluster.NodeID(reader.Text())
		case 6:
			a.info.Backups = append(a.info.Backups, cluster.NodeID(reader.Text()))
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// role request, sent to the master of a device which owns the changes of its backups
//
//	{1: device, 2: node, 3: role}
func encodeRoleRequest(deviceID element.DeviceID, node cluster.NodeID, role Role) ([]byte, error) {
	body := codec.NewWriter().Text(1, string(deviceID)).Text(2, string(node)).Uint64(3, uint64(role))
	return codec.Marshal(codec.KindStandbyRequest, body)
}

func decodeRoleRequest(payload []byte) (element.DeviceID, cluster.NodeID, Role, error) {
	reader, err := codec.Expect(payload, codec.KindStandbyRequest)
	if err != nil {
		return "", "", RoleNone, err
	}

	var (
		deviceID element.DeviceID
		node     cluster.NodeID
		role     Role
	)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			deviceID = element.DeviceID(reader.Text())
		case 2:
			node = cluster.NodeID(reader.Text())
		case 3:
			role = Role(reader.Uint64())
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return "", "", RoleNone, err
	}
	return deviceID, node, role, nil
}
