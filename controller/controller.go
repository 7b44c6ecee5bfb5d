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

// Package controller assembles the replicated stores of one controller replica.
//
// A Controller owns the cluster transport, the mastership service, the device and host
// stores that replicate through it, the node-local flow and statistic stores, and the
// event dispatcher every store posts its events to. Protocol adapters report what they
// observe through the inbound methods and execute the commands of the registered
// providers; administrative front ends use the query and mastership methods.
package controller

import (
	"context"
	"io"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/flow"
	"github.com/tochemey/netsync/host"
	"github.com/tochemey/netsync/internal/errorschain"
	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/mastership"
	"github.com/tochemey/netsync/statistic"
	"github.com/tochemey/netsync/store"
)

const (
	defaultAntiEntropyInterval = 5 * time.Second
	defaultAnnounceInterval    = 5 * time.Second
)

// Transport is a cluster.Communicator with a lifecycle
type Transport interface {
	cluster.Communicator
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Controller is one replica of the cluster
type Controller struct {
	transport      Transport
	allocator      mastership.TermAllocator
	logger         log.Logger
	metricProvider *metric.Provider

	antiEntropyInterval time.Duration
	fanOut              device.FanOut
	maxDispatchTime     time.Duration
	queueSize           int
	pollInterval        time.Duration
	announceInterval    time.Duration

	dispatcher *event.Dispatcher
	mastership *mastership.Service
	clock      *mastership.ClockService
	devices    *device.Store
	hosts      *host.Store
	flows      *flow.Store
	statistics *statistic.Store

	hostProviders *xsync.Map[string, HostProvider]
	flowProviders *xsync.Map[string, FlowRuleProvider]

	started *atomic.Bool
}

// New creates a Controller communicating over the transport and minting
// mastership terms from the allocator. Nothing runs until Start.
func New(transport Transport, allocator mastership.TermAllocator, opts ...Option) *Controller {
	c := &Controller{
		transport:           transport,
		allocator:           allocator,
		logger:              log.DiscardLogger,
		antiEntropyInterval: defaultAntiEntropyInterval,
		fanOut:              device.RandomPeer,
		maxDispatchTime:     event.DefaultMaxDispatchTime,
		queueSize:           event.DefaultQueueSize,
		pollInterval:        statistic.DefaultPollInterval,
		announceInterval:    defaultAnnounceInterval,
		hostProviders:       xsync.NewMap[string, HostProvider](),
		flowProviders:       xsync.NewMap[string, FlowRuleProvider](),
		started:             atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(c)
	}

	if c.metricProvider == nil {
		c.metricProvider = metric.New()
	}

	c.dispatcher = event.NewDispatcher(
		event.WithLogger(c.logger),
		event.WithMaxDispatchTime(c.maxDispatchTime),
		event.WithQueueSize(c.queueSize),
		event.WithMetricProvider(c.metricProvider))

	c.mastership = mastership.NewService(transport, allocator,
		mastership.WithLogger(c.logger),
		mastership.WithAnnounceInterval(c.announceInterval))
	c.clock = mastership.NewClockService(c.mastership)

	c.devices = device.NewStore(transport, c.mastership, c.clock,
		device.WithLogger(c.logger),
		device.WithAntiEntropyInterval(c.antiEntropyInterval),
		device.WithFanOut(c.fanOut),
		device.WithMetricProvider(c.metricProvider))

	c.hosts = host.NewStore(transport,
		host.WithLogger(c.logger),
		host.WithAntiEntropyInterval(c.antiEntropyInterval),
		host.WithFanOut(c.fanOut),
		host.WithMetricProvider(c.metricProvider))

	c.flows = flow.NewStore(flow.WithLogger(c.logger))

	c.statistics = statistic.NewStore(
		statistic.WithLogger(c.logger),
		statistic.WithPollInterval(c.pollInterval))

	c.wire()
	return c
}

// wire connects every store to the dispatcher and registers the internal reactions
func (c *Controller) wire() {
	// a fresh store has no delegate, so SetDelegate cannot conflict here
	_ = c.mastership.SetDelegate(store.NewPostingDelegate[*mastership.Event](c.dispatcher, c.logger))
	_ = c.devices.SetDelegate(store.NewPostingDelegate[*device.Event](c.dispatcher, c.logger))
	_ = c.hosts.SetDelegate(store.NewPostingDelegate[*host.Event](c.dispatcher, c.logger))
	_ = c.flows.SetDelegate(store.NewPostingDelegate[*flow.Event](c.dispatcher, c.logger))

	c.dispatcher.AddSink(mastership.EventClass, c.mastership.Sink())
	c.dispatcher.AddSink(device.EventClass, c.devices.Sink())
	c.dispatcher.AddSink(host.EventClass, c.hosts.Sink())
	c.dispatcher.AddSink(flow.EventClass, c.flows.Sink())

	c.devices.AddListener(event.ListenerFunc[*device.Event](c.onDeviceEvent))
	c.flows.AddListener(event.ListenerFunc[*flow.Event](c.onFlowEvent))
}

// Start starts the transport, the dispatcher and the replicated stores in that order
func (c *Controller) Start(ctx context.Context) error {
	if c.started.Load() {
		return nil
	}

	local := c.transport.LocalNode()
	c.logger.Infof("starting controller node=(%s)...", local.ID)

	if err := errorschain.
		New(errorschain.ReturnFirst()).
		AddErrorFn(func() error { return c.transport.Start(ctx) }).
		AddErrorFn(c.dispatcher.Activate).
		AddErrorFn(func() error { return c.mastership.Start(ctx) }).
		AddErrorFn(func() error { return c.devices.Start(ctx) }).
		AddErrorFn(func() error { return c.hosts.Start(ctx) }).
		Error(); err != nil {
		c.logger.Errorf("failed to start controller node=(%s): %v", local.ID, err)
		// release whatever did start
		_ = c.stop(ctx)
		return err
	}

	c.started.Store(true)
	c.logger.Infof("controller node=(%s) started", c.transport.LocalNode().ID)
	return nil
}

// Stop stops the components in the reverse order of Start and closes the term allocator when it is closable
func (c *Controller) Stop(ctx context.Context) error {
	if !c.started.Swap(false) {
		return nil
	}
	c.logger.Infof("stopping controller node=(%s)...", c.transport.LocalNode().ID)
	if err := c.stop(ctx); err != nil {
		c.logger.Errorf("controller node=(%s) stopped with errors: %v", c.transport.LocalNode().ID, err)
		return err
	}
	c.logger.Infof("controller node=(%s) stopped", c.transport.LocalNode().ID)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	chain := errorschain.
		New(errorschain.ReturnAll()).
		AddErrorFn(func() error { return c.hosts.Stop(ctx) }).
		AddErrorFn(func() error { return c.devices.Stop(ctx) }).
		AddErrorFn(func() error { return c.mastership.Stop(ctx) }).
		AddErrorFn(func() error {
			c.dispatcher.Deactivate()
			return nil
		}).
		AddErrorFn(func() error { return c.transport.Stop(ctx) })

	if closer, ok := c.allocator.(io.Closer); ok {
		chain = chain.AddErrorFn(closer.Close)
	}
	return chain.Error()
}

// LocalNode returns the node this controller runs as
func (c *Controller) LocalNode() cluster.ControllerNode {
	return c.transport.LocalNode()
}

// Devices returns the device store
func (c *Controller) Devices() *device.Store {
	return c.devices
}

// Hosts returns the host store
func (c *Controller) Hosts() *host.Store {
	return c.hosts
}

// Flows returns the flow store
func (c *Controller) Flows() *flow.Store {
	return c.flows
}

// MastershipService returns the mastership service
func (c *Controller) MastershipService() *mastership.Service {
	return c.mastership
}

func (c *Controller) ensureStarted() error {
	if !c.started.Load() {
		return gerrors.ErrEngineNotStarted
	}
	return nil
}
