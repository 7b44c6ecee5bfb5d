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

// Package natsbus implements a cluster.Communicator over a NATS server.
//
// Each node listens on its own unicast subject and on the shared broadcast subject.
// Membership is derived from presence heartbeats published on the presence subject.
package natsbus

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/internal/errorschain"
	"github.com/tochemey/netsync/internal/ticker"
	"github.com/tochemey/netsync/internal/workerpool"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
)

const (
	defaultPrefix    = "netsync"
	defaultHeartbeat = time.Second
	missedHeartbeats = 3

	headerSender  = "Netsync-Sender"
	headerSubject = "Netsync-Subject"
	headerHost    = "Netsync-Host"
	headerPort    = "Netsync-Port"
	headerLeave   = "Netsync-Leave"
)

type member struct {
	node cluster.ControllerNode
	seen time.Time
}

// Communicator is the NATS backed cluster.Communicator
type Communicator struct {
	url       string
	prefix    string
	heartbeat time.Duration
	node      cluster.ControllerNode
	logger    log.Logger

	connection    *nats.Conn
	subscriptions []*nats.Subscription
	handlers      *xsync.Map[string, cluster.Handler]
	members       *xsync.Map[cluster.NodeID, member]
	pool          *workerpool.WorkerPool
	ticker        *ticker.Ticker
	stopCh        chan struct{}
	doneCh        chan struct{}
	started       *atomic.Bool
}

var _ cluster.Communicator = (*Communicator)(nil)

// NewCommunicator creates a Communicator connecting to the NATS server at url
func NewCommunicator(node cluster.ControllerNode, url string, opts ...Option) *Communicator {
	c := &Communicator{
		url:       url,
		prefix:    defaultPrefix,
		heartbeat: defaultHeartbeat,
		node:      node,
		logger:    log.DiscardLogger,
		handlers:  xsync.NewMap[string, cluster.Handler](),
		members:   xsync.NewMap[cluster.NodeID, member](),
		pool:      workerpool.New(),
		started:   atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(c)
	}
	return c
}

// Start connects to NATS, subscribes the node subjects and starts the heartbeats
func (c *Communicator) Start(context.Context) error {
	if c.started.Load() {
		return nil
	}

	c.logger.Infof("starting NATS communicator of node=(%s) on %s...", c.node.ID, c.url)

	opts := nats.GetDefaultOptions()
	opts.Url = c.url
	opts.Name = string(c.node.ID)
	opts.ReconnectWait = 2 * time.Second
	opts.MaxReconnect = -1

	// five attempts starting at 100ms and capped at the reconnect wait
	var connection *nats.Conn
	retrier := retry.NewRetrier(5, 100*time.Millisecond, opts.ReconnectWait)
	if err := retrier.Run(func() error {
		var err error
		connection, err = opts.Connect()
		return err
	}); err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", c.url, err)
	}
	c.connection = connection
	c.pool.Start()

	c.subscriptions = c.subscriptions[:0]
	for _, subject := range []string{c.unicastSubject(c.node.ID), c.broadcastSubject()} {
		subscription, err := connection.Subscribe(subject, c.onMessage)
		if err != nil {
			connection.Close()
			c.pool.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		c.subscriptions = append(c.subscriptions, subscription)
	}

	presence, err := connection.Subscribe(c.presenceSubject(), c.onPresence)
	if err != nil {
		connection.Close()
		c.pool.Stop()
		return fmt.Errorf("failed to subscribe to %s: %w", c.presenceSubject(), err)
	}
	c.subscriptions = append(c.subscriptions, presence)

	if err := connection.Flush(); err != nil {
		connection.Close()
		c.pool.Stop()
		return err
	}

	c.started.Store(true)
	c.announce(false)

	c.ticker = ticker.New(c.heartbeat)
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.ticker.Start()
	go c.heartbeatLoop()

	c.logger.Infof("NATS communicator of node=(%s) started", c.node.ID)
	return nil
}

// Stop announces the departure of the node and closes the connection
func (c *Communicator) Stop(context.Context) error {
	if !c.started.Swap(false) {
		return nil
	}

	close(c.stopCh)
	<-c.doneCh
	c.ticker.Stop()

	c.announce(true)

	chain := errorschain.New(errorschain.ReturnAll())
	for _, subscription := range c.subscriptions {
		if subscription.IsValid() {
			chain = chain.AddError(subscription.Unsubscribe())
		}
	}
	err := chain.AddErrorFn(c.connection.Drain).Error()

	c.pool.Stop()
	c.members.Reset()
	c.logger.Infof("NATS communicator of node=(%s) stopped", c.node.ID)
	return err
}

// LocalNode implements cluster.Membership
func (c *Communicator) LocalNode() cluster.ControllerNode {
	return c.node
}

// Nodes implements cluster.Membership. Members are ordered by id.
func (c *Communicator) Nodes() []cluster.ControllerNode {
	nodes := []cluster.ControllerNode{c.node}
	deadline := time.Now().Add(-missedHeartbeats * c.heartbeat)
	for _, m := range c.members.Values() {
		if m.seen.After(deadline) {
			nodes = append(nodes, m.node)
		}
	}
	slices.SortFunc(nodes, func(a, b cluster.ControllerNode) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return nodes
}

// Unicast implements cluster.Communicator
func (c *Communicator) Unicast(ctx context.Context, to cluster.NodeID, msg *cluster.Message) error {
	if !c.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.isMember(to) {
		return gerrors.ErrNodeNotFound
	}
	return c.publish(c.unicastSubject(to), msg)
}

// Broadcast implements cluster.Communicator
func (c *Communicator) Broadcast(ctx context.Context, msg *cluster.Message) error {
	if !c.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(c.broadcastSubject(), msg)
}

// Subscribe implements cluster.Communicator
func (c *Communicator) Subscribe(subject string, handler cluster.Handler) {
	c.handlers.Set(subject, handler)
}

// Unsubscribe implements cluster.Communicator
func (c *Communicator) Unsubscribe(subject string) {
	c.handlers.Delete(subject)
}

func (c *Communicator) publish(subject string, msg *cluster.Message) error {
	out := nats.NewMsg(subject)
	out.Header.Set(headerSender, string(msg.Sender))
	out.Header.Set(headerSubject, msg.Subject)
	out.Data = msg.Payload
	if err := c.connection.PublishMsg(out); err != nil {
		return fmt.Errorf("failed to publish %s message: %w", msg.Subject, err)
	}
	return nil
}

func (c *Communicator) onMessage(in *nats.Msg) {
	sender := cluster.NodeID(in.Header.Get(headerSender))
	if sender == c.node.ID {
		return
	}

	msg := &cluster.Message{
		Sender:  sender,
		Subject: in.Header.Get(headerSubject),
		Payload: in.Data,
	}

	handler, ok := c.handlers.Get(msg.Subject)
	if !ok {
		c.logger.Debugf("no handler for subject=(%s) from node=(%s)", msg.Subject, msg.Sender)
		return
	}

	if err := c.pool.SubmitWork(func() { handler(context.Background(), msg) }); err != nil {
		c.logger.Warnf("dropping %s message from node=(%s): %v", msg.Subject, msg.Sender, err)
	}
}

func (c *Communicator) onPresence(in *nats.Msg) {
	id := cluster.NodeID(in.Header.Get(headerSender))
	if id == "" || id == c.node.ID {
		return
	}

	if in.Header.Get(headerLeave) != "" {
		c.members.Delete(id)
		c.logger.Infof("node=(%s) left the cluster", id)
		return
	}

	port, err := strconv.Atoi(in.Header.Get(headerPort))
	if err != nil {
		c.logger.Warnf("dropping presence of node=(%s): invalid port: %v", id, err)
		return
	}

	node := cluster.ControllerNode{ID: id, Host: in.Header.Get(headerHost), Port: port}
	_, known := c.members.Get(id)
	c.members.Set(id, member{node: node, seen: time.Now()})
	if !known {
		c.logger.Infof("node=(%s) joined the cluster", node)
		// answer right away so the newcomer does not wait a full heartbeat
		c.announce(false)
	}
}

func (c *Communicator) heartbeatLoop() {
	defer close(c.doneCh)
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ticker.Ticks:
			c.announce(false)
		}
	}
}

func (c *Communicator) announce(leave bool) {
	out := nats.NewMsg(c.presenceSubject())
	out.Header.Set(headerSender, string(c.node.ID))
	out.Header.Set(headerHost, c.node.Host)
	out.Header.Set(headerPort, strconv.Itoa(c.node.Port))
	if leave {
		out.Header.Set(headerLeave, "true")
	}
	if err := c.connection.PublishMsg(out); err != nil {
		c.logger.Warnf("failed to announce node=(%s): %v", c.node.ID, err)
	}
}

func (c *Communicator) isMember(id cluster.NodeID) bool {
	for _, node := range c.Nodes() {
		if node.ID == id {
			return true
		}
	}
	return false
}

func (c *Communicator) unicastSubject(id cluster.NodeID) string {
	return c.prefix + ".node." + string(id)
}

func (c *Communicator) broadcastSubject() string {
	return c.prefix + ".broadcast"
}

func (c *Communicator) presenceSubject() string {
	return c.prefix + ".presence"
}
