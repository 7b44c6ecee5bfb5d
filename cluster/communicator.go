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

// Package cluster defines the identity of controller replicas and the
// transport contract replicated stores use to exchange messages.
package cluster

import "context"

// Subjects namespace the message kinds exchanged between replicas.
const (
	SubjectMastershipUpdate    = "mastership-update"
	SubjectMastershipStandby   = "mastership-standby-request"
	SubjectAdvertisement       = "device-advertisement"
	SubjectDeviceUpdate        = "device-update"
	SubjectPortUpdate          = "port-update"
	SubjectPortStatusUpdate    = "port-status-update"
	SubjectDeviceOffline       = "device-offline"
	SubjectDeviceRemoved       = "device-removed"
	SubjectDeviceRemoveRequest = "device-remove-request"
	SubjectFragmentRequest     = "fragment-request"
	SubjectFragmentResponse    = "fragment-response"
	SubjectHostUpdate          = "host-update"
	SubjectHostRemoved         = "host-removed"
	SubjectHostAdvertisement   = "host-advertisement"
)

// Message is an opaque payload addressed by subject
type Message struct {
	Sender  NodeID
	Subject string
	Payload []byte
}

// Handler processes an inbound message. Handlers run on a worker and must not block for long.
type Handler func(ctx context.Context, msg *Message)

// Membership exposes the current cluster view
type Membership interface {
	// LocalNode returns the node this process runs as
	LocalNode() ControllerNode
	// Nodes returns every known member including the local node
	Nodes() []ControllerNode
}

// Communicator moves messages between replicas
type Communicator interface {
	Membership
	// Unicast sends the message to a single member
	Unicast(ctx context.Context, to NodeID, msg *Message) error
	// Broadcast sends the message to every member except the local node
	Broadcast(ctx context.Context, msg *Message) error
	// Subscribe registers the handler for the subject, replacing any previous one
	Subscribe(subject string, handler Handler)
	// Unsubscribe removes the handler of the subject
	Unsubscribe(subject string)
}

// Peers returns the members of the cluster other than the local node
func Peers(m Membership) []ControllerNode {
	local := m.LocalNode().ID
	nodes := m.Nodes()
	peers := make([]ControllerNode, 0, len(nodes))
	for _, node := range nodes {
		if node.ID != local {
			peers = append(peers, node)
		}
	}
	return peers
}
