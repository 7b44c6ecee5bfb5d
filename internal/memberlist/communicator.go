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

// Package memberlist implements a cluster.Communicator on top of hashicorp memberlist.
// Membership comes from the gossip protocol and messages travel over the reliable
// stream of memberlist, one encoded cluster.Message per send.
package memberlist

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/hashicorp/go-sockaddr"
	"github.com/hashicorp/memberlist"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/discovery"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/internal/errorschain"
	"github.com/tochemey/netsync/internal/workerpool"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
)

const (
	defaultJoinAttempts      = 5
	defaultJoinRetryInterval = time.Second
	defaultJoinTimeout       = 10 * time.Second
	defaultLeaveTimeout      = 2 * time.Second
	anyAddress               = "0.0.0.0"
)

// Communicator is the memberlist backed cluster.Communicator
type Communicator struct {
	mu       sync.RWMutex
	node     cluster.ControllerNode
	mlist    *memberlist.Memberlist
	handlers *xsync.Map[string, cluster.Handler]
	pool     *workerpool.WorkerPool
	provider discovery.Provider
	logger   log.Logger
	started  *atomic.Bool

	joinAttempts      int
	joinRetryInterval time.Duration
	joinTimeout       time.Duration
	leaveTimeout      time.Duration
}

var _ cluster.Communicator = (*Communicator)(nil)

// NewCommunicator creates a Communicator for the given node.
// The node Host is the bind address; an empty host or 0.0.0.0 advertises the private IP of the machine.
func NewCommunicator(node cluster.ControllerNode, opts ...Option) *Communicator {
	c := &Communicator{
		node:              node,
		handlers:          xsync.NewMap[string, cluster.Handler](),
		pool:              workerpool.New(),
		logger:            log.DiscardLogger,
		started:           atomic.NewBool(false),
		joinAttempts:      defaultJoinAttempts,
		joinRetryInterval: defaultJoinRetryInterval,
		joinTimeout:       defaultJoinTimeout,
		leaveTimeout:      defaultLeaveTimeout,
	}
	for _, opt := range opts {
		opt.Apply(c)
	}
	return c
}

// Start creates the memberlist and joins the seed members returned by the discovery provider
func (c *Communicator) Start(ctx context.Context) error {
	if c.started.Load() {
		return nil
	}

	c.logger.Infof("starting memberlist communicator of node=(%s)...", c.node.ID)

	advertise, err := advertiseAddr(c.node.Host)
	if err != nil {
		return err
	}

	config := memberlist.DefaultLANConfig()
	config.Name = string(c.node.ID)
	config.BindAddr = c.node.Host
	if config.BindAddr == "" {
		config.BindAddr = anyAddress
	}
	config.BindPort = c.node.Port
	config.AdvertiseAddr = advertise
	config.AdvertisePort = c.node.Port
	config.LogOutput = newLogWriter(c.logger)
	config.Delegate = &delegate{communicator: c}
	config.Events = &eventDelegate{logger: c.logger}

	c.pool.Start()

	mlist, err := memberlist.Create(config)
	if err != nil {
		c.pool.Stop()
		return fmt.Errorf("failed to create the members list: %w", err)
	}

	c.mu.Lock()
	c.mlist = mlist
	local := mlist.LocalNode()
	c.node = cluster.ControllerNode{ID: c.node.ID, Host: local.Addr.String(), Port: int(local.Port)}
	c.mu.Unlock()

	if err := c.join(ctx); err != nil {
		_ = mlist.Shutdown()
		c.pool.Stop()
		return err
	}

	c.started.Store(true)
	c.logger.Infof("memberlist communicator of node=(%s) started", c.node)
	return nil
}

// Stop leaves the cluster and releases the members list
func (c *Communicator) Stop(context.Context) error {
	if !c.started.Swap(false) {
		return nil
	}

	c.mu.RLock()
	mlist := c.mlist
	c.mu.RUnlock()

	chain := errorschain.New(errorschain.ReturnAll())
	if c.provider != nil {
		chain = chain.AddErrorFn(func() error {
			if err := c.provider.Deregister(); err != nil && !errors.Is(err, discovery.ErrNotRegistered) {
				return err
			}
			return nil
		})
	}
	err := chain.
		AddErrorFn(func() error { return mlist.Leave(c.leaveTimeout) }).
		AddErrorFn(mlist.Shutdown).
		Error()

	c.pool.Stop()
	c.logger.Infof("memberlist communicator of node=(%s) stopped", c.node.ID)
	return err
}

// LocalNode implements cluster.Membership
func (c *Communicator) LocalNode() cluster.ControllerNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.node
}

// Nodes implements cluster.Membership
func (c *Communicator) Nodes() []cluster.ControllerNode {
	c.mu.RLock()
	mlist, local := c.mlist, c.node
	c.mu.RUnlock()

	if mlist == nil || !c.started.Load() {
		return []cluster.ControllerNode{local}
	}

	members := mlist.Members()
	nodes := make([]cluster.ControllerNode, 0, len(members))
	for _, member := range members {
		nodes = append(nodes, toControllerNode(member))
	}
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

	member, ok := c.member(to)
	if !ok {
		return gerrors.ErrNodeNotFound
	}

	if err := c.mlist.SendReliable(member, codec.EncodeMessage(msg)); err != nil {
		return fmt.Errorf("failed to send %s message to node=(%s): %w", msg.Subject, to, err)
	}
	return nil
}

// Broadcast implements cluster.Communicator.
// Every peer is sent to even when some sends fail; the first failure is returned.
func (c *Communicator) Broadcast(ctx context.Context, msg *cluster.Message) error {
	if !c.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := codec.EncodeMessage(msg)
	local := c.LocalNode().ID

	eg := new(errgroup.Group)
	for _, member := range c.mlist.Members() {
		if member.Name == string(local) {
			continue
		}
		eg.Go(func() error {
			if err := c.mlist.SendReliable(member, encoded); err != nil {
				return fmt.Errorf("failed to send %s message to node=(%s): %w", msg.Subject, member.Name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Subscribe implements cluster.Communicator
func (c *Communicator) Subscribe(subject string, handler cluster.Handler) {
	c.handlers.Set(subject, handler)
}

// Unsubscribe implements cluster.Communicator
func (c *Communicator) Unsubscribe(subject string) {
	c.handlers.Delete(subject)
}

func (c *Communicator) member(id cluster.NodeID) (*memberlist.Node, bool) {
	for _, member := range c.mlist.Members() {
		if member.Name == string(id) {
			return member, true
		}
	}
	return nil, false
}

// join discovers the seed members and joins them
func (c *Communicator) join(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}

	if err := errorschain.
		New(errorschain.ReturnFirst()).
		AddErrorFn(c.provider.Initialize).
		AddErrorFn(c.provider.Register).
		Error(); err != nil {
		return fmt.Errorf("failed to start the %s discovery provider: %w", c.provider.ID(), err)
	}

	joinCtx, cancel := context.WithTimeout(ctx, c.joinTimeout)
	defer cancel()

	var peers []string
	retrier := retry.NewRetrier(c.joinAttempts, c.joinRetryInterval, c.joinRetryInterval)
	if err := retrier.RunContext(joinCtx, func(context.Context) error {
		discovered, err := c.provider.DiscoverPeers()
		if err != nil {
			return err
		}
		peers = c.withoutSelf(discovered)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to discover the cluster members: %w", err)
	}

	if len(peers) == 0 {
		c.logger.Infof("node=(%s) found no seed member, starting a new cluster", c.node.ID)
		return nil
	}

	joinRetrier := retry.NewRetrier(c.joinAttempts, c.joinRetryInterval, c.joinRetryInterval)
	if err := joinRetrier.RunContext(joinCtx, func(context.Context) error {
		_, err := c.mlist.Join(peers)
		return err
	}); err != nil {
		return fmt.Errorf("failed to join the cluster: %w", err)
	}
	return nil
}

func (c *Communicator) withoutSelf(addresses []string) []string {
	self := c.node.Address()
	peers := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if address != self {
			peers = append(peers, address)
		}
	}
	return peers
}

func (c *Communicator) deliver(buf []byte) {
	msg, err := codec.DecodeMessage(buf)
	if err != nil {
		c.logger.Warnf("dropping undecodable cluster message: %v", err)
		return
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

func toControllerNode(member *memberlist.Node) cluster.ControllerNode {
	return cluster.ControllerNode{
		ID:   cluster.NodeID(member.Name),
		Host: member.Addr.String(),
		Port: int(member.Port),
	}
}

// advertiseAddr returns the address advertised to the other members
func advertiseAddr(host string) (string, error) {
	if host != "" && host != anyAddress {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String(), nil
		}
		addrs, err := net.LookupHost(host)
		if err != nil {
			return "", fmt.Errorf("failed to resolve bind host=(%s): %w", host, err)
		}
		if len(addrs) == 0 {
			return "", fmt.Errorf("bind host=(%s) has no address", host)
		}
		return addrs[0], nil
	}

	ip, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("failed to get interface addresses: %w", err)
	}
	if ip == "" {
		ip, err = sockaddr.GetPublicIP()
		if err != nil {
			return "", fmt.Errorf("failed to get interface addresses: %w", err)
		}
	}
	if ip == "" {
		return "", errors.New("no private IP address found, and explicit IP not provided")
	}
	return ip, nil
}
