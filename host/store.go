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

package host

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/errorschain"
	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/internal/ticker"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/store"
	"github.com/tochemey/netsync/timestamp"
)

const (
	storeName = "host"

	defaultAntiEntropyDelay = 5 * time.Second
)

// record is the state of one host. A removed host keeps its removal stamp so that older
// updates received afterwards are not applied.
type record struct {
	mu      sync.Mutex
	host    *Host
	stamp   timestamp.Timestamp
	removal timestamp.Timestamp
}

// Store is the replicated host store
type Store struct {
	store.Base[*Event]

	communicator   cluster.Communicator
	logger         log.Logger
	listeners      *event.ListenerRegistry[*Event]
	metricProvider *metric.Provider
	storeMetric    *metric.StoreMetric
	entropyMetric  *metric.AntiEntropyMetric

	records *xsync.Map[element.HostID, *record]
	started *atomic.Bool

	interval time.Duration
	fanOut   device.FanOut

	ticker *ticker.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStore creates a host Store
func NewStore(communicator cluster.Communicator, opts ...Option) *Store {
	s := &Store{
		communicator: communicator,
		logger:       log.DiscardLogger,
		records:      xsync.NewMap[element.HostID, *record](),
		started:      atomic.NewBool(false),
		interval:     defaultAntiEntropyDelay,
		fanOut:       device.RandomPeer,
	}
	for _, opt := range opts {
		opt.Apply(s)
	}
	if s.metricProvider == nil {
		s.metricProvider = metric.New()
	}
	s.listeners = event.NewListenerRegistry[*Event](s.logger)
	return s
}

// Start subscribes to the host replication messages and starts the anti-entropy rounds
func (s *Store) Start(context.Context) error {
	if s.started.Load() {
		return nil
	}

	meter := s.metricProvider.Meter()
	chain := errorschain.New(errorschain.ReturnFirst()).
		AddErrorFn(func() (err error) {
			s.storeMetric, err = metric.NewStoreMetric(meter, storeName)
			return err
		}).
		AddErrorFn(func() (err error) {
			s.entropyMetric, err = metric.NewAntiEntropyMetric(meter)
			return err
		})
	if err := chain.Error(); err != nil {
		return err
	}

	s.communicator.Subscribe(cluster.SubjectHostUpdate, s.handleHostUpdate)
	s.communicator.Subscribe(cluster.SubjectHostRemoved, s.handleHostRemoved)
	s.communicator.Subscribe(cluster.SubjectHostAdvertisement, s.handleHostAdvertisement)

	if s.interval > 0 {
		s.ticker = ticker.NewJittered(s.interval, s.interval/4)
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		s.ticker.Start()
		go s.antiEntropyLoop(s.stopCh, s.doneCh)
	}

	s.started.Store(true)
	return nil
}

// Stop unsubscribes from the host replication messages and stops the anti-entropy rounds
func (s *Store) Stop(context.Context) error {
	if !s.started.Swap(false) {
		return nil
	}
	s.communicator.Unsubscribe(cluster.SubjectHostUpdate)
	s.communicator.Unsubscribe(cluster.SubjectHostRemoved)
	s.communicator.Unsubscribe(cluster.SubjectHostAdvertisement)

	if s.ticker != nil {
		close(s.stopCh)
		<-s.doneCh
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

// Sink returns the event sink fanning host events out to the listeners
func (s *Store) Sink() event.Sink {
	return s.listeners
}

// AddListener registers a listener of host events and returns its id
func (s *Store) AddListener(listener event.Listener[*Event]) string {
	return s.listeners.AddListener(listener)
}

// RemoveListener unregisters the listener with the given id
func (s *Store) RemoveListener(id string) {
	s.listeners.RemoveListener(id)
}

// HostDetected records the host reported by the provider and replicates it
func (s *Store) HostDetected(ctx context.Context, providerID element.ProviderID, desc Description) (*Event, error) {
	stamp := timestamp.NewWallClock()
	ev := s.apply(ctx, providerID, desc, stamp)
	if ev == nil {
		return nil, nil
	}

	s.NotifyDelegate(ev)
	payload, err := encodeHostUpdate(&hostUpdate{providerID: providerID, desc: desc, stamp: stamp})
	s.broadcast(ctx, cluster.SubjectHostUpdate, payload, err)
	return ev, nil
}

// HostVanished removes the host and replicates the removal
func (s *Store) HostVanished(ctx context.Context, hostID element.HostID) (*Event, error) {
	if _, ok := s.Host(hostID); !ok {
		return nil, gerrors.ErrHostNotFound
	}

	stamp := timestamp.NewWallClock()
	ev := s.remove(hostID, stamp)
	if ev == nil {
		return nil, nil
	}

	s.NotifyDelegate(ev)
	payload, err := encodeHostRemoval(&hostRemoval{hostID: hostID, stamp: stamp})
	s.broadcast(ctx, cluster.SubjectHostRemoved, payload, err)
	return ev, nil
}

// Host returns the host with the given id
func (s *Store) Host(hostID element.HostID) (Host, bool) {
	rec, ok := s.records.Get(hostID)
	if !ok {
		return Host{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.host == nil {
		return Host{}, false
	}
	return rec.host.clone(), true
}

// Hosts returns the hosts ordered by id
func (s *Store) Hosts() []Host {
	hosts := make([]Host, 0)
	for _, rec := range s.records.Values() {
		rec.mu.Lock()
		if rec.host != nil {
			hosts = append(hosts, rec.host.clone())
		}
		rec.mu.Unlock()
	}
	slices.SortFunc(hosts, func(a, b Host) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return hosts
}

// HostsAt returns the hosts attached to the connect point
func (s *Store) HostsAt(cp element.ConnectPoint) []Host {
	return slices.DeleteFunc(s.Hosts(), func(h Host) bool { return h.Location != cp })
}

// HostCount returns the number of hosts
func (s *Store) HostCount() int {
	return len(s.Hosts())
}

func (s *Store) apply(ctx context.Context, providerID element.ProviderID, desc Description, stamp timestamp.Timestamp) *Event {
	hostID := desc.ID()
	rec, _ := s.records.GetOrSet(hostID, func() *record { return new(record) })
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.removal != nil && !newer(stamp, rec.removal) {
		s.logger.Debugf("ignoring outdated update of removed host=(%s)", hostID)
		return nil
	}

	candidate := newHost(providerID, desc)
	if rec.host != nil {
		cmp, err := timestamp.Compare(stamp, rec.stamp)
		switch {
		case err != nil:
			s.logger.Warnf("dropping update of host=(%s): %v", hostID, err)
			return nil
		case cmp < 0:
			s.logger.Debugf("dropping stale update of host=(%s)", hostID)
			if s.storeMetric != nil {
				s.storeMetric.StaleUpdate(ctx)
			}
			return nil
		case cmp == 0:
			if !rec.host.sameContent(candidate) {
				s.logger.Warnf("anomaly: host=(%s) received different content with the same timestamp %s", hostID, stamp)
				if s.storeMetric != nil {
					s.storeMetric.Anomaly(ctx)
				}
			}
			return nil
		}
	}

	previous := rec.host
	rec.host = &candidate
	rec.stamp = stamp
	rec.removal = nil
	if s.storeMetric != nil {
		s.storeMetric.Applied(ctx)
	}

	switch {
	case previous == nil:
		return newEvent(HostAdded, candidate.clone(), nil)
	case previous.Location != candidate.Location:
		moved := previous.clone()
		return newEvent(HostMoved, candidate.clone(), &moved)
	case !previous.sameContent(candidate):
		return newEvent(HostUpdated, candidate.clone(), nil)
	default:
		return nil
	}
}

func (s *Store) remove(hostID element.HostID, stamp timestamp.Timestamp) *Event {
	rec, _ := s.records.GetOrSet(hostID, func() *record { return new(record) })
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.host == nil || !newer(stamp, rec.stamp) {
		if rec.removal == nil || newer(stamp, rec.removal) {
			rec.removal = stamp
		}
		return nil
	}

	previous := rec.host
	rec.host = nil
	rec.removal = stamp
	return newEvent(HostRemoved, previous.clone(), nil)
}

func (s *Store) handleHostUpdate(ctx context.Context, msg *cluster.Message) {
	update, err := decodeHostUpdate(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping host update from node=(%s): %v", msg.Sender, err)
		return
	}
	if ev := s.apply(ctx, update.providerID, update.desc, update.stamp); ev != nil {
		s.NotifyDelegate(ev)
	}
}

func (s *Store) handleHostRemoved(_ context.Context, msg *cluster.Message) {
	removal, err := decodeHostRemoval(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping host removal from node=(%s): %v", msg.Sender, err)
		return
	}
	if ev := s.remove(removal.hostID, removal.stamp); ev != nil {
		s.NotifyDelegate(ev)
	}
}

func (s *Store) broadcast(ctx context.Context, subject string, payload []byte, err error) {
	if err != nil {
		s.logger.Errorf("failed to encode %s message: %v", subject, err)
		return
	}
	msg := &cluster.Message{Sender: s.communicator.LocalNode().ID, Subject: subject, Payload: payload}
	if err := s.communicator.Broadcast(ctx, msg); err != nil {
		s.logger.Warnf("failed to broadcast %s message: %v", subject, err)
	}
}

func newer(a, b timestamp.Timestamp) bool {
	cmp, err := timestamp.Compare(a, b)
	return err == nil && cmp > 0
}
