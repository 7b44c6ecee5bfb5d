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

package device

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/internal/errorschain"
	"github.com/tochemey/netsync/internal/metric"
	"github.com/tochemey/netsync/internal/ticker"
	"github.com/tochemey/netsync/internal/xsync"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/mastership"
	"github.com/tochemey/netsync/store"
	"github.com/tochemey/netsync/timestamp"
)

const (
	storeName               = "device"
	defaultAntiEntropyDelay = 5 * time.Second
)

// Mastership tells which node may write a device
type Mastership interface {
	MasterFor(deviceID element.DeviceID) (cluster.NodeID, bool)
	RequestRole(ctx context.Context, deviceID element.DeviceID) (mastership.Role, error)
	Relinquish(ctx context.Context, deviceID element.DeviceID) error
}

// Clock stamps the updates of the devices the local node is master of
type Clock interface {
	Timestamp(deviceID element.DeviceID) (timestamp.MastershipBased, error)
}

// record is the state of one device. Its mutex serializes every mutation of the device.
type record struct {
	mu        sync.Mutex
	providers map[element.ProviderID]*providerDescriptions
	device    *Device
	ports     map[element.PortNumber]Port
	offline   timestamp.Timestamp
	removal   timestamp.Timestamp
}

func newRecord() *record {
	return &record{
		providers: make(map[element.ProviderID]*providerDescriptions),
		ports:     make(map[element.PortNumber]Port),
	}
}

// Store is the replicated device store.
//
// Local mutations are accepted on the master of the device only; they are stamped by the
// Clock, applied, and broadcast to the peers. Every update, local or received, goes through
// the same gate: it is applied only when its timestamp is newer than the stored one.
type Store struct {
	store.Base[*Event]

	communicator   cluster.Communicator
	mastership     Mastership
	clock          Clock
	logger         log.Logger
	listeners      *event.ListenerRegistry[*Event]
	metricProvider *metric.Provider
	storeMetric    *metric.StoreMetric
	entropyMetric  *metric.AntiEntropyMetric

	records           *xsync.Map[element.DeviceID, *record]
	available         goset.Set[element.DeviceID]
	lastAdvertisement *xsync.Map[cluster.NodeID, time.Time]

	interval time.Duration
	fanOut   FanOut

	started *atomic.Bool
	ticker  *ticker.Ticker
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStore creates a device Store
func NewStore(communicator cluster.Communicator, mastership Mastership, clock Clock, opts ...Option) *Store {
	s := &Store{
		communicator:      communicator,
		mastership:        mastership,
		clock:             clock,
		logger:            log.DiscardLogger,
		records:           xsync.NewMap[element.DeviceID, *record](),
		available:         goset.NewSet[element.DeviceID](),
		lastAdvertisement: xsync.NewMap[cluster.NodeID, time.Time](),
		interval:          defaultAntiEntropyDelay,
		fanOut:            RandomPeer,
		started:           atomic.NewBool(false),
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

// Start subscribes to the replication messages and starts the anti-entropy rounds
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

	s.communicator.Subscribe(cluster.SubjectDeviceUpdate, s.handleDeviceUpdate)
	s.communicator.Subscribe(cluster.SubjectPortUpdate, s.handlePortsUpdate)
	s.communicator.Subscribe(cluster.SubjectPortStatusUpdate, s.handlePortStatusUpdate)
	s.communicator.Subscribe(cluster.SubjectDeviceOffline, s.handleDeviceOffline)
	s.communicator.Subscribe(cluster.SubjectDeviceRemoved, s.handleDeviceRemoved)
	s.communicator.Subscribe(cluster.SubjectDeviceRemoveRequest, s.handleRemoveRequest)
	s.communicator.Subscribe(cluster.SubjectAdvertisement, s.handleAdvertisement)
	s.communicator.Subscribe(cluster.SubjectFragmentRequest, s.handleFragmentRequest)
	s.communicator.Subscribe(cluster.SubjectFragmentResponse, s.handleFragmentResponse)

	if s.interval > 0 {
		// rounds are jittered by up to a quarter of the interval
		s.ticker = ticker.NewJittered(s.interval, s.interval/4)
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		s.ticker.Start()
		go s.antiEntropyLoop(s.stopCh, s.doneCh)
	}

	s.started.Store(true)
	s.logger.Infof("device store started on node=(%s)", s.localID())
	return nil
}

// Stop unsubscribes from the replication messages and stops the anti-entropy rounds
func (s *Store) Stop(context.Context) error {
	if !s.started.Swap(false) {
		return nil
	}

	for _, subject := range []string{
		cluster.SubjectDeviceUpdate,
		cluster.SubjectPortUpdate,
		cluster.SubjectPortStatusUpdate,
		cluster.SubjectDeviceOffline,
		cluster.SubjectDeviceRemoved,
		cluster.SubjectDeviceRemoveRequest,
		cluster.SubjectAdvertisement,
		cluster.SubjectFragmentRequest,
		cluster.SubjectFragmentResponse,
	} {
		s.communicator.Unsubscribe(subject)
	}

	if s.ticker != nil {
		close(s.stopCh)
		<-s.doneCh
		s.ticker.Stop()
		s.ticker = nil
	}

	s.logger.Infof("device store stopped on node=(%s)", s.localID())
	return nil
}

// Sink returns the event sink fanning device events out to the listeners
func (s *Store) Sink() event.Sink {
	return s.listeners
}

// AddListener registers a listener of device events and returns its id
func (s *Store) AddListener(listener event.Listener[*Event]) string {
	return s.listeners.AddListener(listener)
}

// RemoveListener unregisters the listener with the given id
func (s *Store) RemoveListener(id string) {
	s.listeners.RemoveListener(id)
}

// CreateOrUpdateDevice records the description of the device given by the provider.
// It fails with ErrNotMaster when the local node is not the master of the device.
func (s *Store) CreateOrUpdateDevice(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, desc Description) ([]*Event, error) {
	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		return nil, err
	}

	rec := s.record(deviceID)
	rec.mu.Lock()
	events, applied := s.createOrUpdateDeviceLocked(ctx, rec, providerID, deviceID, Timestamped[Description]{Value: desc, Timestamp: stamp})
	var merged Timestamped[Description]
	if applied {
		merged = rec.providers[providerID].device
	}
	rec.mu.Unlock()

	s.NotifyDelegate(events...)
	if applied {
		s.logger.Debugf("notifying peers of the update of device=(%s) from provider=(%s)", deviceID, providerID)
		payload, err := encodeDeviceUpdate(&deviceUpdate{providerID: providerID, deviceID: deviceID, desc: merged})
		s.broadcast(ctx, cluster.SubjectDeviceUpdate, payload, err)
	}
	return events, nil
}

// MarkOffline marks the device as unavailable
func (s *Store) MarkOffline(ctx context.Context, deviceID element.DeviceID) ([]*Event, error) {
	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		return nil, err
	}

	rec := s.record(deviceID)
	rec.mu.Lock()
	ev, applied := s.markOfflineLocked(rec, deviceID, stamp)
	rec.mu.Unlock()

	events := compact(ev)
	s.NotifyDelegate(events...)
	if applied {
		payload, err := encodeDeviceStamp(codec.KindDeviceOffline, &deviceStamp{deviceID: deviceID, stamp: stamp})
		s.broadcast(ctx, cluster.SubjectDeviceOffline, payload, err)
	}
	return events, nil
}

// MarkOnline marks the device as available. It returns whether the availability changed.
func (s *Store) MarkOnline(_ context.Context, deviceID element.DeviceID) (bool, error) {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return false, gerrors.ErrDeviceNotFound
	}

	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		return false, err
	}

	rec.mu.Lock()
	if rec.device == nil {
		rec.mu.Unlock()
		return false, gerrors.ErrDeviceNotFound
	}
	changed := s.markOnlineLocked(rec, deviceID, stamp)
	device := rec.device.clone()
	rec.mu.Unlock()

	if changed {
		s.NotifyDelegate(newEvent(DeviceAvailabilityChanged, device, nil))
	}
	return changed, nil
}

// UpdatePorts records the complete list of ports of the device given by the provider.
// Ports of the provider missing from the list are removed.
func (s *Store) UpdatePorts(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, ports []PortDescription) ([]*Event, error) {
	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		s.logger.Infof("timestamp not available for device=(%s), discarding %d ports", deviceID, len(ports))
		return nil, err
	}

	rec, ok := s.records.Get(deviceID)
	if !ok {
		s.logger.Debugf("discarding %d ports of unknown device=(%s)", len(ports), deviceID)
		return nil, nil
	}

	rec.mu.Lock()
	events := s.updatePortsLocked(ctx, rec, providerID, deviceID, ports, stamp)
	merged := make([]PortDescription, 0, len(ports))
	if descs, ok := rec.providers[providerID]; ok {
		for _, port := range ports {
			if current, ok := descs.ports[port.Number]; ok {
				merged = append(merged, current.Value)
			}
		}
	}
	rec.mu.Unlock()

	s.NotifyDelegate(events...)
	if len(events) > 0 {
		payload, err := encodePortsUpdate(&portsUpdate{providerID: providerID, deviceID: deviceID, ports: merged, stamp: stamp})
		s.broadcast(ctx, cluster.SubjectPortUpdate, payload, err)
	}
	return events, nil
}

// UpdatePortStatus records the description of one port of the device given by the provider
func (s *Store) UpdatePortStatus(ctx context.Context, providerID element.ProviderID, deviceID element.DeviceID, port PortDescription) ([]*Event, error) {
	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		s.logger.Infof("timestamp not available for device=(%s), discarding port=(%s)", deviceID, port.Number)
		return nil, err
	}

	rec, ok := s.records.Get(deviceID)
	if !ok {
		return nil, gerrors.ErrDeviceNotFound
	}

	rec.mu.Lock()
	ev := s.updatePortStatusLocked(ctx, rec, providerID, deviceID, Timestamped[PortDescription]{Value: port, Timestamp: stamp})
	var merged Timestamped[PortDescription]
	if descs, ok := rec.providers[providerID]; ok {
		merged = descs.ports[port.Number]
	}
	rec.mu.Unlock()

	events := compact(ev)
	s.NotifyDelegate(events...)
	if ev != nil {
		payload, err := encodePortStatusUpdate(&portStatusUpdate{providerID: providerID, deviceID: deviceID, desc: merged})
		s.broadcast(ctx, cluster.SubjectPortStatusUpdate, payload, err)
	}
	return events, nil
}

// RemoveDevice removes the device from the cluster.
//
// A node that is not the master forwards the request to the master; the removal is then
// observed through the events. When the device has no master the local node takes the
// role for the time of the removal.
func (s *Store) RemoveDevice(ctx context.Context, deviceID element.DeviceID) ([]*Event, error) {
	local := s.localID()
	master, ok := s.mastership.MasterFor(deviceID)

	relinquish := false
	if !ok {
		s.logger.Debugf("temporarily requesting role of device=(%s) to remove it", deviceID)
		role, err := s.mastership.RequestRole(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		if role == mastership.RoleMaster {
			master = local
			relinquish = true
		} else if master, ok = s.mastership.MasterFor(deviceID); !ok {
			return nil, gerrors.ErrNoMaster
		}
	}

	if master != local {
		s.logger.Debugf("node=(%s) has control of device=(%s), forwarding remove request", master, deviceID)
		payload, err := encodeRemoveRequest(deviceID)
		if err != nil {
			return nil, err
		}
		msg := &cluster.Message{Sender: local, Subject: cluster.SubjectDeviceRemoveRequest, Payload: payload}
		return nil, s.communicator.Unicast(ctx, master, msg)
	}

	stamp, err := s.clock.Timestamp(deviceID)
	if err != nil {
		return nil, err
	}

	rec := s.record(deviceID)
	rec.mu.Lock()
	ev := s.removeDeviceLocked(rec, deviceID, stamp)
	rec.mu.Unlock()

	events := compact(ev)
	s.NotifyDelegate(events...)
	if ev != nil {
		payload, err := encodeDeviceStamp(codec.KindDeviceRemoved, &deviceStamp{deviceID: deviceID, stamp: stamp})
		s.broadcast(ctx, cluster.SubjectDeviceRemoved, payload, err)
	}

	if relinquish {
		s.logger.Debugf("relinquishing the temporary role of device=(%s)", deviceID)
		if err := s.mastership.Relinquish(ctx, deviceID); err != nil {
			s.logger.Warnf("failed to relinquish device=(%s): %v", deviceID, err)
		}
	}
	return events, nil
}

// DeviceCount returns the number of devices
func (s *Store) DeviceCount() int {
	return len(s.Devices())
}

// Devices returns the devices ordered by id
func (s *Store) Devices() []Device {
	devices := make([]Device, 0)
	for _, rec := range s.records.Values() {
		rec.mu.Lock()
		if rec.device != nil {
			devices = append(devices, rec.device.clone())
		}
		rec.mu.Unlock()
	}
	slices.SortFunc(devices, func(a, b Device) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return devices
}

// AvailableDevices returns the available devices ordered by id
func (s *Store) AvailableDevices() []Device {
	return slices.DeleteFunc(s.Devices(), func(d Device) bool { return !s.available.Contains(d.ID) })
}

// Device returns the device with the given id
func (s *Store) Device(deviceID element.DeviceID) (Device, bool) {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return Device{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.device == nil {
		return Device{}, false
	}
	return rec.device.clone(), true
}

// IsAvailable reports whether the device is available
func (s *Store) IsAvailable(deviceID element.DeviceID) bool {
	return s.available.Contains(deviceID)
}

// Ports returns the ports of the device ordered by number
func (s *Store) Ports(deviceID element.DeviceID) []Port {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return nil
	}
	rec.mu.Lock()
	ports := make([]Port, 0, len(rec.ports))
	for _, port := range rec.ports {
		ports = append(ports, port.clone())
	}
	rec.mu.Unlock()
	slices.SortFunc(ports, func(a, b Port) int { return cmp.Compare(a.Number, b.Number) })
	return ports
}

// Port returns one port of the device
func (s *Store) Port(deviceID element.DeviceID, number element.PortNumber) (Port, bool) {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return Port{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	port, ok := rec.ports[number]
	if !ok {
		return Port{}, false
	}
	return port.clone(), true
}

// DeviceDescription returns the fragment the provider contributed about the device
func (s *Store) DeviceDescription(providerID element.ProviderID, deviceID element.DeviceID) (Timestamped[Description], bool) {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return Timestamped[Description]{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	descs, ok := rec.providers[providerID]
	if !ok {
		return Timestamped[Description]{}, false
	}
	return descs.device, true
}

// PortDescription returns the fragment the provider contributed about the port
func (s *Store) PortDescription(providerID element.ProviderID, deviceID element.DeviceID, number element.PortNumber) (Timestamped[PortDescription], bool) {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return Timestamped[PortDescription]{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	descs, ok := rec.providers[providerID]
	if !ok {
		return Timestamped[PortDescription]{}, false
	}
	port, ok := descs.ports[number]
	return port, ok
}

// LastAdvertisement returns when the last advertisement of the peer was received
func (s *Store) LastAdvertisement(peer cluster.NodeID) (time.Time, bool) {
	return s.lastAdvertisement.Get(peer)
}

func (s *Store) createOrUpdateDeviceLocked(ctx context.Context, rec *record, providerID element.ProviderID, deviceID element.DeviceID, desc Timestamped[Description]) ([]*Event, bool) {
	if s.isRemoved(rec, desc.Timestamp) {
		s.logger.Debugf("ignoring outdated update of removed device=(%s)", deviceID)
		return nil, false
	}

	fragmentID := element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerID}
	if descs, ok := rec.providers[providerID]; ok {
		if !s.supersedes(ctx, fragmentID.String(), desc.Timestamp, descs.device.Timestamp, func() bool {
			return descs.device.Value.Equal(desc.Value)
		}) {
			return nil, false
		}
		descs.device = desc
	} else {
		rec.providers[providerID] = newProviderDescriptions(desc)
	}
	s.applied(ctx)

	composed := composeDevice(deviceID, rec.providers)
	previous := rec.device
	rec.device = &composed

	if previous == nil {
		if !providerID.Ancillary && desc.Value.DefaultAvailable {
			s.markOnlineLocked(rec, deviceID, desc.Timestamp)
		}
		return []*Event{newEvent(DeviceAdded, composed.clone(), nil)}, true
	}

	var events []*Event
	annotationsChanged := !maps.Equal(previous.Annotations, composed.Annotations)
	if (providerID.Ancillary && annotationsChanged) ||
		(!providerID.Ancillary && (previous.propertiesDiffer(composed) || annotationsChanged)) {
		events = append(events, newEvent(DeviceUpdated, composed.clone(), nil))
	}

	if !providerID.Ancillary && desc.Value.DefaultAvailable {
		wasOnline := s.available.Contains(deviceID)
		if s.markOnlineLocked(rec, deviceID, desc.Timestamp) && !wasOnline {
			events = append(events, newEvent(DeviceAvailabilityChanged, composed.clone(), nil))
		}
	}
	return events, true
}

// markOfflineLocked accepts the marker when it is newer than every fragment of the primary provider
func (s *Store) markOfflineLocked(rec *record, deviceID element.DeviceID, stamp timestamp.Timestamp) (*Event, bool) {
	primary := primaryDescriptions(rec.providers)
	if primary == nil {
		return nil, false
	}
	if cmp, err := timestamp.Compare(stamp, primary.latest()); err != nil || cmp <= 0 {
		return nil, false
	}

	rec.offline = stamp
	if rec.device == nil || !s.available.Contains(deviceID) {
		return nil, true
	}
	s.available.Remove(deviceID)
	return newEvent(DeviceAvailabilityChanged, rec.device.clone(), nil), true
}

// markOnlineLocked accepts the change when it is newer than the offline marker
func (s *Store) markOnlineLocked(rec *record, deviceID element.DeviceID, stamp timestamp.Timestamp) bool {
	if rec.offline != nil {
		if cmp, err := timestamp.Compare(rec.offline, stamp); err != nil || cmp >= 0 {
			return false
		}
	}
	rec.offline = nil
	return s.available.Add(deviceID)
}

func (s *Store) updatePortsLocked(ctx context.Context, rec *record, providerID element.ProviderID, deviceID element.DeviceID, ports []PortDescription, stamp timestamp.Timestamp) []*Event {
	if rec.device == nil {
		s.logger.Debugf("device=(%s) is no longer valid", deviceID)
		return nil
	}
	if s.isRemoved(rec, stamp) {
		s.logger.Debugf("ignoring outdated ports of removed device=(%s)", deviceID)
		return nil
	}
	descs, ok := rec.providers[providerID]
	if !ok {
		s.logger.Debugf("device=(%s) has no description from provider=(%s)", deviceID, providerID)
		return nil
	}

	var events []*Event
	processed := goset.NewThreadUnsafeSet[element.PortNumber]()
	for _, port := range ports {
		processed.Add(port.Number)
		fragmentID := element.PortFragmentID{DeviceID: deviceID, ProviderID: providerID, PortNumber: port.Number}
		if current, ok := descs.ports[port.Number]; ok && !s.supersedes(ctx, fragmentID.String(), stamp, current.Timestamp, func() bool {
			return current.Value.Equal(port)
		}) {
			continue
		}
		descs.ports[port.Number] = Timestamped[PortDescription]{Value: port, Timestamp: stamp}
		s.applied(ctx)
		events = append(events, compact(s.refreshPortLocked(rec, deviceID, port.Number))...)
	}

	// ports of the provider missing from the list are marked removed with the same stamp
	for number, current := range descs.ports {
		if processed.Contains(number) || current.Value.Removed {
			continue
		}
		if cmp, err := timestamp.Compare(stamp, current.Timestamp); err != nil || cmp <= 0 {
			continue
		}
		descs.ports[number] = Timestamped[PortDescription]{Value: PortDescription{Number: number, Removed: true}, Timestamp: stamp}
		events = append(events, compact(s.refreshPortLocked(rec, deviceID, number))...)
	}
	return events
}

func (s *Store) updatePortStatusLocked(ctx context.Context, rec *record, providerID element.ProviderID, deviceID element.DeviceID, desc Timestamped[PortDescription]) *Event {
	if rec.device == nil {
		s.logger.Debugf("device=(%s) is no longer valid", deviceID)
		return nil
	}
	if s.isRemoved(rec, desc.Timestamp) {
		s.logger.Debugf("ignoring outdated port status of removed device=(%s)", deviceID)
		return nil
	}
	descs, ok := rec.providers[providerID]
	if !ok {
		s.logger.Debugf("device=(%s) has no description from provider=(%s)", deviceID, providerID)
		return nil
	}

	number := desc.Value.Number
	fragmentID := element.PortFragmentID{DeviceID: deviceID, ProviderID: providerID, PortNumber: number}
	if current, ok := descs.ports[number]; ok && !s.supersedes(ctx, fragmentID.String(), desc.Timestamp, current.Timestamp, func() bool {
		return current.Value.Equal(desc.Value)
	}) {
		return nil
	}
	descs.ports[number] = desc
	s.applied(ctx)
	return s.refreshPortLocked(rec, deviceID, number)
}

// refreshPortLocked recomposes the port and returns the event describing the change, if any
func (s *Store) refreshPortLocked(rec *record, deviceID element.DeviceID, number element.PortNumber) *Event {
	previous, existed := rec.ports[number]
	composed, alive := composePort(deviceID, number, rec.providers)
	switch {
	case !alive && !existed:
		return nil
	case !alive:
		delete(rec.ports, number)
		s.logger.Infof("deleted port=(%s/%s)", deviceID, number)
		return newEvent(PortRemoved, rec.device.clone(), &previous)
	case !existed:
		rec.ports[number] = composed
		port := composed.clone()
		return newEvent(PortAdded, rec.device.clone(), &port)
	case previous.differs(composed):
		rec.ports[number] = composed
		port := composed.clone()
		return newEvent(PortUpdated, rec.device.clone(), &port)
	default:
		return nil
	}
}

// removeDeviceLocked accepts the removal when it is newer than every fragment of the primary provider
func (s *Store) removeDeviceLocked(rec *record, deviceID element.DeviceID, stamp timestamp.Timestamp) *Event {
	primary := primaryDescriptions(rec.providers)
	if primary == nil {
		return nil
	}
	if cmp, err := timestamp.Compare(stamp, primary.latest()); err != nil || cmp <= 0 {
		return nil
	}

	rec.removal = stamp
	s.markOfflineLocked(rec, deviceID, stamp)
	previous := rec.device
	rec.device = nil
	rec.ports = make(map[element.PortNumber]Port)
	rec.providers = make(map[element.ProviderID]*providerDescriptions)
	s.available.Remove(deviceID)

	if previous == nil {
		return nil
	}
	return newEvent(DeviceRemoved, previous.clone(), nil)
}

// isRemoved reports whether a removal at least as recent as the stamp was applied
func (s *Store) isRemoved(rec *record, stamp timestamp.Timestamp) bool {
	if rec.removal == nil {
		return false
	}
	cmp, err := timestamp.Compare(rec.removal, stamp)
	return err != nil || cmp >= 0
}

// supersedes is the single gate every update goes through: the candidate replaces the
// current fragment only when its timestamp is newer.
// Equal timestamps carrying different content are reported as an anomaly and never applied.
func (s *Store) supersedes(ctx context.Context, fragment string, candidate, current timestamp.Timestamp, sameContent func() bool) bool {
	if current == nil {
		return true
	}

	cmp, err := timestamp.Compare(candidate, current)
	switch {
	case err != nil:
		s.logger.Warnf("dropping update of fragment=(%s): %v", fragment, err)
		return false
	case cmp > 0:
		return true
	case cmp < 0:
		s.logger.Debugf("dropping stale update of fragment=(%s): %s is older than %s", fragment, candidate, current)
		if s.storeMetric != nil {
			s.storeMetric.StaleUpdate(ctx)
		}
		return false
	default:
		if !sameContent() {
			s.logger.Warnf("anomaly: fragment=(%s) received different content with the same timestamp %s", fragment, candidate)
			if s.storeMetric != nil {
				s.storeMetric.Anomaly(ctx)
			}
		}
		return false
	}
}

func (s *Store) applied(ctx context.Context) {
	if s.storeMetric != nil {
		s.storeMetric.Applied(ctx)
	}
}

func (s *Store) broadcast(ctx context.Context, subject string, payload []byte, err error) {
	if err != nil {
		s.logger.Errorf("failed to encode %s message: %v", subject, err)
		return
	}
	msg := &cluster.Message{Sender: s.localID(), Subject: subject, Payload: payload}
	if err := s.communicator.Broadcast(ctx, msg); err != nil {
		s.logger.Warnf("failed to broadcast %s message: %v", subject, err)
	}
}

func (s *Store) record(deviceID element.DeviceID) *record {
	rec, _ := s.records.GetOrSet(deviceID, newRecord)
	return rec
}

func (s *Store) localID() cluster.NodeID {
	return s.communicator.LocalNode().ID
}

// composeDevice merges the descriptions of every provider into one Device.
// The primary provider supplies the attributes; the annotations of the others are merged in.
func composeDevice(deviceID element.DeviceID, providers map[element.ProviderID]*providerDescriptions) Device {
	primaryID := pickPrimary(providers)
	base := providers[primaryID].device.Value

	annotations := maps.Clone(base.Annotations)
	if annotations == nil {
		annotations = make(map[string]string)
	}
	for _, providerID := range sortedProviders(providers) {
		if providerID == primaryID {
			continue
		}
		maps.Copy(annotations, providers[providerID].device.Value.Annotations)
	}

	return Device{
		ID:           deviceID,
		ProviderID:   primaryID,
		Type:         base.Type,
		Manufacturer: base.Manufacturer,
		HwVersion:    base.HwVersion,
		SwVersion:    base.SwVersion,
		SerialNumber: base.SerialNumber,
		ChassisID:    base.ChassisID,
		Annotations:  annotations,
	}
}

// composePort merges the port descriptions of every provider.
// It returns false when no provider describes the port as present.
func composePort(deviceID element.DeviceID, number element.PortNumber, providers map[element.ProviderID]*providerDescriptions) (Port, bool) {
	if len(providers) == 0 {
		return Port{}, false
	}

	port := Port{DeviceID: deviceID, Number: number, Annotations: make(map[string]string)}
	alive := false

	primaryID := pickPrimary(providers)
	if primary, ok := providers[primaryID].ports[number]; ok && !primary.Value.Removed {
		alive = true
		port.Enabled = primary.Value.Enabled
		port.Type = primary.Value.Type
		port.Speed = primary.Value.Speed
		maps.Copy(port.Annotations, primary.Value.Annotations)
	}

	for _, providerID := range sortedProviders(providers) {
		if providerID == primaryID {
			continue
		}
		other, ok := providers[providerID].ports[number]
		if !ok || other.Value.Removed {
			continue
		}
		if !alive {
			port.Type = other.Value.Type
			port.Speed = other.Value.Speed
		}
		alive = true
		maps.Copy(port.Annotations, other.Value.Annotations)
	}
	return port, alive
}

// pickPrimary returns the first provider that is not ancillary, or the first ancillary one
func pickPrimary(providers map[element.ProviderID]*providerDescriptions) element.ProviderID {
	ordered := sortedProviders(providers)
	for _, providerID := range ordered {
		if !providerID.Ancillary {
			return providerID
		}
	}
	return ordered[0]
}

func primaryDescriptions(providers map[element.ProviderID]*providerDescriptions) *providerDescriptions {
	if len(providers) == 0 {
		return nil
	}
	return providers[pickPrimary(providers)]
}

func sortedProviders(providers map[element.ProviderID]*providerDescriptions) []element.ProviderID {
	ids := slices.Collect(maps.Keys(providers))
	slices.SortFunc(ids, func(a, b element.ProviderID) int { return strings.Compare(a.String(), b.String()) })
	return ids
}

func compact(events ...*Event) []*Event {
	return slices.DeleteFunc(events, func(e *Event) bool { return e == nil })
}

func (d Device) clone() Device {
	d.Annotations = maps.Clone(d.Annotations)
	return d
}

func (p Port) clone() Port {
	p.Annotations = maps.Clone(p.Annotations)
	return p
}
