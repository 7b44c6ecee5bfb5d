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

package main

import (
	"context"
	"fmt"

	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/config"
	"github.com/tochemey/netsync/controller"
	"github.com/tochemey/netsync/discovery/static"
	"github.com/tochemey/netsync/internal/inmem"
	"github.com/tochemey/netsync/internal/memberlist"
	"github.com/tochemey/netsync/internal/natsbus"
	"github.com/tochemey/netsync/internal/termauthority"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/mastership"
)

// loadConfig reads the configuration file, or returns the defaults when no file is given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// buildTransport creates the cluster transport the configuration selects
func buildTransport(cfg *config.Config, logger log.Logger) (controller.Transport, error) {
	node := cluster.ControllerNode{
		ID:   cluster.NodeID(cfg.NodeID),
		Host: cfg.BindHost,
		Port: cfg.BindPort,
	}

	switch cfg.Transport.Kind {
	case config.TransportLocal:
		return inmem.NewHub().Join(node), nil
	case config.TransportMemberlist:
		opts := []memberlist.Option{memberlist.WithLogger(logger)}
		if len(cfg.Transport.Seeds) > 0 {
			provider := static.NewDiscovery(&static.Config{Hosts: cfg.Transport.Seeds})
			opts = append(opts, memberlist.WithDiscovery(provider))
		}
		return memberlist.NewCommunicator(node, opts...), nil
	case config.TransportNats:
		return natsbus.NewCommunicator(node, cfg.Transport.NatsURL,
			natsbus.WithLogger(logger),
			natsbus.WithSubjectPrefix(cfg.Transport.SubjectPrefix)), nil
	default:
		return nil, fmt.Errorf("unsupported transport=(%s)", cfg.Transport.Kind)
	}
}

// buildAllocator creates the term authority the configuration selects
func buildAllocator(ctx context.Context, cfg *config.Config) (mastership.TermAllocator, error) {
	authority := cfg.TermAuthority
	switch authority.Kind {
	case config.TermAuthorityMemory:
		return termauthority.NewMemory(), nil
	case config.TermAuthorityBolt:
		return termauthority.NewBolt(authority.Path)
	case config.TermAuthorityEtcd:
		return termauthority.NewEtcd(&termauthority.EtcdConfig{
			Endpoints:   authority.Endpoints,
			Namespace:   authority.Namespace,
			DialTimeout: authority.Timeout,
			Timeout:     authority.Timeout,
			Username:    authority.Username,
			Password:    authority.Password,
		})
	case config.TermAuthorityRedis:
		return termauthority.NewRedis(ctx, &termauthority.RedisConfig{
			Address:   authority.Address,
			Username:  authority.Username,
			Password:  authority.Password,
			KeyPrefix: authority.Namespace,
			Timeout:   authority.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported term authority=(%s)", authority.Kind)
	}
}

// buildController assembles the controller the configuration describes
func buildController(ctx context.Context, cfg *config.Config, logger log.Logger) (*controller.Controller, error) {
	transport, err := buildTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	allocator, err := buildAllocator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create the %s term authority: %w", cfg.TermAuthority.Kind, err)
	}

	return controller.New(transport, allocator,
		controller.WithLogger(logger),
		controller.WithAntiEntropy(cfg.AntiEntropy.Interval, cfg.FanOut()),
		controller.WithDispatcher(cfg.Dispatcher.MaxDispatchTime, cfg.Dispatcher.QueueSize),
		controller.WithPollInterval(cfg.PollInterval),
		controller.WithAnnounceInterval(cfg.AnnounceInterval)), nil
}
