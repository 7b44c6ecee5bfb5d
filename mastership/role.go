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

// Package mastership assigns the write ownership of every device to exactly one controller node.
//
// Each device has a master and an ordered list of backups. Every hand over of the
// master role mints a new term whose number comes from a TermAllocator, so term
// numbers of a device strictly increase over its lifetime. Role assignments are
// replicated to the other nodes and applied only when their version is newer.
package mastership

import (
	"context"
	"slices"

	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
)

// Role is the role of a node for a device
type Role int

const (
	// RoleNone means the node has no role for the device
	RoleNone Role = iota
	// RoleMaster means the node is the sole writer of the device
	RoleMaster
	// RoleStandby means the node is a backup of the master
	RoleStandby
)

// String implements fmt.Stringer
func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "MASTER"
	case RoleStandby:
		return "STANDBY"
	default:
		return "NONE"
	}
}

// Term is one contiguous tenure of mastership of a device by a node
type Term struct {
	Master cluster.NodeID
	Number uint64
}

// RoleInfo is the current role assignment of a device
type RoleInfo struct {
	Master  cluster.NodeID
	Backups []cluster.NodeID
}

// Equal compares the master and the backups in order
func (r RoleInfo) Equal(other RoleInfo) bool {
	return r.Master == other.Master && slices.Equal(r.Backups, other.Backups)
}

// RoleOf returns the role the node holds in the assignment
func (r RoleInfo) RoleOf(node cluster.NodeID) Role {
	switch {
	case node == "":
		return RoleNone
	case r.Master == node:
		return RoleMaster
	case slices.Contains(r.Backups, node):
		return RoleStandby
	default:
		return RoleNone
	}
}

// Nodes returns the master followed by the backups
func (r RoleInfo) Nodes() []cluster.NodeID {
	nodes := make([]cluster.NodeID, 0, len(r.Backups)+1)
	if r.Master != "" {
		nodes = append(nodes, r.Master)
	}
	return append(nodes, r.Backups...)
}

func (r RoleInfo) clone() RoleInfo {
	return RoleInfo{Master: r.Master, Backups: slices.Clone(r.Backups)}
}

// TermAllocator hands out the term numbers of the devices.
// Numbers returned for a device strictly increase and may have gaps.
type TermAllocator interface {
	NextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error)
}
