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

// Package inmem implements a cluster.Communicator connecting replicas living in the same process.
// It backs single node deployments and the multi node tests of the replicated stores.
package inmem

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/internal/workerpool"
	"github.com/tochemey/netsync/internal/xsync"
)

// Hub routes messages between the Communicators that joined it
type Hub struct {
	mu      sync.RWMutex
	members map[cluster.NodeID]*Communicator
	order   []cluster.NodeID
}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{members: make(map[cluster.NodeID]*Communicator)}
}

// Join creates the Communicator of the given node.
// Joining twice with the same id returns the existing Communicator.
func (h *Hub) Join(node cluster.ControllerNode) *Communicator {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.members[node.ID]; ok {
		return existing
	}

	communicator := &Communicator{
		hub:       h,
		node:      node,
		handlers:  xsync.NewMap[string, cluster.Handler](),
		pool:      workerpool.New(),
		started:   atomic.NewBool(false),
		reachable: atomic.NewBool(true),
	}
	h.members[node.ID] = communicator
	h.order = append(h.order, node.ID)
	return communicator
}

// Leave removes the node from the Hub
func (h *Hub) Leave(id cluster.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, id)
	h.order = slices.DeleteFunc(h.order, func(current cluster.NodeID) bool { return current == id })
}

func (h *Hub) nodes() []cluster.ControllerNode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	nodes := make([]cluster.ControllerNode, 0, len(h.order))
	for _, id := range h.order {
		nodes = append(nodes, h.members[id].node)
	}
	return nodes
}

func (h *Hub) member(id cluster.NodeID) (*Communicator, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	member, ok := h.members[id]
	return member, ok
}

// Communicator is the in-process cluster.Communicator of one node.
// Inbound messages are handled on a worker pool, so delivery order is not preserved.
type Communicator struct {
	hub       *Hub
	node      cluster.ControllerNode
	handlers  *xsync.Map[string, cluster.Handler]
	pool      *workerpool.WorkerPool
	started   *atomic.Bool
	reachable *atomic.Bool
}

var _ cluster.Communicator = (*Communicator)(nil)

// Start begins the delivery of inbound messages
func (c *Communicator) Start(context.Context) error {
	if c.started.Load() {
		return nil
	}
	c.pool.Start()
	c.started.Store(true)
	return nil
}

// Stop ends the delivery of inbound messages. The node stays a member of the Hub.
func (c *Communicator) Stop(context.Context) error {
	if !c.started.Swap(false) {
		return nil
	}
	c.pool.Stop()
	return nil
}

// SetReachable simulates a network partition: messages to and from an unreachable node are dropped
func (c *Communicator) SetReachable(reachable bool) {
	c.reachable.Store(reachable)
}

// LocalNode implements cluster.Membership
func (c *Communicator) LocalNode() cluster.ControllerNode {
	return c.node
}

// Nodes implements cluster.Membership
func (c *Communicator) Nodes() []cluster.ControllerNode {
	return c.hub.nodes()
}

// Unicast implements cluster.Communicator
func (c *Communicator) Unicast(ctx context.Context, to cluster.NodeID, msg *cluster.Message) error {
	if !c.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target, ok := c.hub.member(to)
	if !ok || !c.reachable.Load() || !target.reachable.Load() {
		return gerrors.ErrNodeNotFound
	}
	target.deliver(msg)
	return nil
}

// Broadcast implements cluster.Communicator.
// Members that are not reachable are skipped.
func (c *Communicator) Broadcast(ctx context.Context, msg *cluster.Message) error {
	if !c.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.reachable.Load() {
		return nil
	}
	for _, node := range cluster.Peers(c) {
		target, ok := c.hub.member(node.ID)
		if !ok || !target.reachable.Load() {
			continue
		}
		target.deliver(msg)
	}
	return nil
}

// Subscribe implements cluster.Communicator
func (c *Communicator) Subscribe(subject string, handler cluster.Handler) {
	c.handlers.Set(subject, handler)
}

// Unsubscribe implements cluster.Communicator
func (c *Communicator) Unsubscribe(subject string) {
	c.handlers.Delete(subject)
}

func (c *Communicator) deliver(msg *cluster.Message) {
	// a stopped member silently loses messages like a crashed process would
	if !c.started.Load() {
		return
	}
	handler, ok := c.handlers.Get(msg.Subject)
	if !ok {
		return
	}
	clone := &cluster.Message{
		Sender:  msg.Sender,
		Subject: msg.Subject,
		Payload: slices.Clone(msg.Payload),
	}
	// the pool only rejects work once stopped, which counts as a lost message
	_ = c.pool.SubmitWork(func() {
		handler(context.Background(), clone)
	})
}
