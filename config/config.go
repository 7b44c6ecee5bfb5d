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

// Package config holds the configuration of a netsync daemon.
//
// A configuration is read from a YAML document with Load, starts from the values of
// Default, and is checked with Validate before a controller is built from it.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tochemey/netsync/device"
	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/validation"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/statistic"
)

// transports
const (
	TransportMemberlist = "memberlist"
	TransportNats       = "nats"
	// TransportLocal runs a single node cluster in process
	TransportLocal = "local"
)

// term authorities
const (
	TermAuthorityMemory = "memory"
	TermAuthorityBolt   = "bolt"
	TermAuthorityEtcd   = "etcd"
	TermAuthorityRedis  = "redis"
)

// Config is the configuration of a netsync daemon
type Config struct {
	// NodeID identifies the node in the cluster. A random id is generated when empty.
	NodeID string `yaml:"node_id"`
	// BindHost is the address the transport listens on. An empty host lets the
	// transport pick the private address of the machine.
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`
	// LogLevel is one of debug, info, warn, error
	LogLevel    string            `yaml:"log_level"`
	Transport   TransportConfig   `yaml:"transport"`
	AntiEntropy AntiEntropyConfig `yaml:"anti_entropy"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	// AnnounceInterval is how often the local mastership assignments are re-announced
	AnnounceInterval time.Duration       `yaml:"announce_interval"`
	PollInterval     time.Duration       `yaml:"poll_interval"`
	TermAuthority    TermAuthorityConfig `yaml:"term_authority"`
}

// TransportConfig selects the cluster transport
type TransportConfig struct {
	Kind string `yaml:"kind"`
	// Seeds are the host:port of the memberlist nodes to join
	Seeds []string `yaml:"seeds"`
	// NatsURL is the server the nats transport connects to
	NatsURL string `yaml:"nats_url"`
	// SubjectPrefix namespaces the nats subjects of the cluster
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AntiEntropyConfig tunes the periodic reconciliation of the device stores
type AntiEntropyConfig struct {
	// Interval of the rounds. Zero disables them.
	Interval time.Duration `yaml:"interval"`
	// FanOut is random or all
	FanOut string `yaml:"fan_out"`
}

// DispatcherConfig tunes the event dispatcher
type DispatcherConfig struct {
	MaxDispatchTime time.Duration `yaml:"max_dispatch_time"`
	QueueSize       int           `yaml:"queue_size"`
}

// TermAuthorityConfig selects where the mastership terms are allocated
type TermAuthorityConfig struct {
	Kind string `yaml:"kind"`
	// Path of the bolt database
	Path string `yaml:"path"`
	// Endpoints of the etcd cluster
	Endpoints []string `yaml:"endpoints"`
	// Address of the redis server
	Address   string        `yaml:"address"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the configuration of a single node cluster
func Default() *Config {
	return &Config{
		NodeID:   uuid.NewString(),
		BindPort: 7946,
		LogLevel: "info",
		Transport: TransportConfig{
			Kind:          TransportLocal,
			SubjectPrefix: "netsync",
		},
		AntiEntropy: AntiEntropyConfig{
			Interval: 5 * time.Second,
			FanOut:   device.RandomPeer.String(),
		},
		Dispatcher: DispatcherConfig{
			MaxDispatchTime: event.DefaultMaxDispatchTime,
			QueueSize:       event.DefaultQueueSize,
		},
		AnnounceInterval: 5 * time.Second,
		PollInterval:     statistic.DefaultPollInterval,
		TermAuthority: TermAuthorityConfig{
			Kind:      TermAuthorityMemory,
			Namespace: "netsync",
			Timeout:   5 * time.Second,
		},
	}
}

// New returns the default configuration with the options applied
func New(opts ...Option) *Config {
	config := Default()
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

// Load reads the YAML document at path over the default configuration and validates the result
func Load(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file=(%s): %w", path, err)
	}
	return Parse(bytes)
}

// Parse reads the YAML document over the default configuration and validates the result
func Parse(bytes []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(bytes, config); err != nil {
		return nil, errors.Join(gerrors.ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every setting and returns all the violations at once
func (c *Config) Validate() error {
	_, fanOutOK := device.ParseFanOut(c.AntiEntropy.FanOut)
	_, levelErr := log.ParseLevel(c.LogLevel)

	chain := validation.New(validation.AllErrors()).
		AddAssertion(c.NodeID != "", "node_id is required").
		AddAssertion(c.BindPort >= 0 && c.BindPort <= 65535, "bind_port is out of range").
		AddAssertion(levelErr == nil, fmt.Sprintf("log_level=(%s) is invalid", c.LogLevel)).
		AddAssertion(c.AntiEntropy.Interval >= 0, "anti_entropy.interval must not be negative").
		AddAssertion(fanOutOK, fmt.Sprintf("anti_entropy.fan_out=(%s) is invalid", c.AntiEntropy.FanOut)).
		AddAssertion(c.Dispatcher.MaxDispatchTime > 0, "dispatcher.max_dispatch_time must be positive").
		AddAssertion(c.Dispatcher.QueueSize > 0, "dispatcher.queue_size must be positive").
		AddAssertion(c.AnnounceInterval > 0, "announce_interval must be positive").
		AddAssertion(c.PollInterval > 0, "poll_interval must be positive")

	switch c.Transport.Kind {
	case TransportLocal:
	case TransportMemberlist:
		for _, seed := range c.Transport.Seeds {
			chain.AddValidator(validation.NewHostPortValidator(seed))
		}
	case TransportNats:
		chain.AddAssertion(c.Transport.NatsURL != "", "transport.nats_url is required").
			AddAssertion(c.Transport.SubjectPrefix != "", "transport.subject_prefix is required")
	default:
		chain.AddAssertion(false, fmt.Sprintf("transport.kind=(%s) is invalid", c.Transport.Kind))
	}

	authority := c.TermAuthority
	switch authority.Kind {
	case TermAuthorityMemory:
	case TermAuthorityBolt:
		chain.AddAssertion(authority.Path != "", "term_authority.path is required")
	case TermAuthorityEtcd:
		chain.AddAssertion(len(authority.Endpoints) > 0, "term_authority.endpoints is required")
		for _, endpoint := range authority.Endpoints {
			chain.AddValidator(validation.NewHostPortValidator(endpoint))
		}
	case TermAuthorityRedis:
		chain.AddValidator(validation.NewHostPortValidator(authority.Address))
	default:
		chain.AddAssertion(false, fmt.Sprintf("term_authority.kind=(%s) is invalid", authority.Kind))
	}

	if err := chain.Validate(); err != nil {
		return errors.Join(gerrors.ErrInvalidConfig, err)
	}
	return nil
}

// BindAddress returns the host:port the transport binds to
func (c *Config) BindAddress() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.BindPort))
}

// Level returns the parsed log level, info when it does not parse
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// FanOut returns the parsed anti-entropy fan-out, random when it does not parse
func (c *Config) FanOut() device.FanOut {
	fanOut, ok := device.ParseFanOut(c.AntiEntropy.FanOut)
	if !ok {
		return device.RandomPeer
	}
	return fanOut
}
