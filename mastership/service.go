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

package mastership

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/ticker"
	"github.com/tochemey/netsync/log"
	"github.com/tochemey/netsync/store"
)

const (
	defaultMaxAttempts      = 5
	defaultInitialDelay     = 100 * time.Millisecond
	defaultMaxDelay         = 2 * time.Second
	defaultAnnounceInterval = 5 * time.Second

	// a local mutation is recomputed when a concurrent update changed the assignment meanwhile
	maxMutationAttempts = 8
)

var errConcurrentUpdate = errors.New("mastership: assignment changed concurrently")

// Service tracks the role assignment of every device and replicates the changes made locally.
//
// Events are handed to the store delegate; register the Sink of the Service on the
// dispatcher the delegate posts to so that listeners receive them.
type Service struct {
	store.Base[*Event]

	communicator cluster.Communicator
	allocator    TermAllocator
	logger       log.Logger
	listeners    *event.ListenerRegistry[*Event]

	mu          sync.RWMutex
	assignments map[element.DeviceID]*assignment

	maxAttempts      int
	initialDelay     time.Duration
	maxDelay         time.Duration
	announceInterval time.Duration

	started   *atomic.Bool
	announcer *ticker.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewService creates a Service
func NewService(communicator cluster.Communicator, allocator TermAllocator, opts ...Option) *Service {
	service := &Service{
		communicator:     communicator,
		allocator:        allocator,
		logger:           log.DiscardLogger,
		assignments:      make(map[element.DeviceID]*assignment),
		maxAttempts:      defaultMaxAttempts,
		initialDelay:     defaultInitialDelay,
		maxDelay:         defaultMaxDelay,
		announceInterval: defaultAnnounceInterval,
		started:          atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(service)
	}

	service.listeners = event.NewListenerRegistry[*Event](service.logger)
	return service
}

// Start subscribes to the mastership messages and starts the periodic announcement
func (s *Service) Start(context.Context) error {
	if s.started.Load() {
		return nil
	}

	s.communicator.Subscribe(cluster.SubjectMastershipUpdate, s.handleUpdate)
	s.communicator.Subscribe(cluster.SubjectMastershipStandby, s.handleRoleRequest)

	if s.announceInterval > 0 {
		s.announcer = ticker.New(s.announceInterval)
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		s.announcer.Start()
		go s.announceLoop(s.stopCh, s.doneCh)
	}

	s.started.Store(true)
	s.logger.Infof("mastership service started on node=(%s)", s.localID())
	return nil
}

// Stop unsubscribes from the mastership messages and stops the periodic announcement
func (s *Service) Stop(context.Context) error {
	if !s.started.Swap(false) {
		return nil
	}

	s.communicator.Unsubscribe(cluster.SubjectMastershipUpdate)
	s.communicator.Unsubscribe(cluster.SubjectMastershipStandby)

	if s.announcer != nil {
		close(s.stopCh)
		<-s.doneCh
		s.announcer.Stop()
		s.announcer = nil
	}

	s.logger.Infof("mastership service stopped on node=(%s)", s.localID())
	return nil
}

// Sink returns the event sink fanning mastership events out to the listeners
func (s *Service) Sink() event.Sink {
	return s.listeners
}

// AddListener registers a listener of mastership events and returns its id
func (s *Service) AddListener(listener event.Listener[*Event]) string {
	return s.listeners.AddListener(listener)
}

// RemoveListener unregisters the listener with the given id
func (s *Service) RemoveListener(id string) {
	s.listeners.RemoveListener(id)
}

// MasterFor returns the master of the device
func (s *Service) MasterFor(deviceID element.DeviceID) (cluster.NodeID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.assignments[deviceID]
	if !ok || current.info.Master == "" {
		return "", false
	}
	return current.info.Master, true
}

// CurrentTerm returns the term of the current master of the device
func (s *Service) CurrentTerm(deviceID element.DeviceID) (Term, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.assignments[deviceID]
	if !ok || current.info.Master == "" {
		return Term{}, false
	}
	return current.term, true
}

// NodesFor returns the role assignment of the device
func (s *Service) NodesFor(deviceID element.DeviceID) RoleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.assignments[deviceID]
	if !ok {
		return RoleInfo{}
	}
	return current.info.clone()
}

// LocalRole returns the role of the local node for the device
func (s *Service) LocalRole(deviceID element.DeviceID) Role {
	return s.NodesFor(deviceID).RoleOf(s.localID())
}

// DevicesOf returns the devices the node is master of
func (s *Service) DevicesOf(node cluster.NodeID) []element.DeviceID {
	s.mu.RLock()
	devices := make([]element.DeviceID, 0)
	for deviceID, current := range s.assignments {
		if current.info.Master == node {
			devices = append(devices, deviceID)
		}
	}
	s.mu.RUnlock()
	slices.Sort(devices)
	return devices
}

// RequestRole asks for the role of the local node for the device.
//
// The local node becomes master when the device has no live master. Otherwise it asks
// the master to be added to the backups and returns RoleStandby; the assignment is then
// observed through the listeners.
func (s *Service) RequestRole(ctx context.Context, deviceID element.DeviceID) (Role, error) {
	local := s.localID()
	result, err := s.mutate(ctx, deviceID, func(current *assignment) (*assignment, bool) {
		if current.info.Master == local {
			return nil, false
		}
		if current.info.Master != "" && s.isMember(current.info.Master) {
			return nil, false
		}

		next := current.clone()
		next.info = RoleInfo{Master: local, Backups: without(current.info.Backups, local)}
		return next, true
	})
	if err != nil {
		return RoleNone, err
	}

	switch result.info.RoleOf(local) {
	case RoleMaster:
		return RoleMaster, nil
	case RoleStandby:
		return RoleStandby, nil
	default:
	}

	if err := s.forward(ctx, result.info.Master, deviceID, local, RoleStandby); err != nil {
		return RoleNone, err
	}
	return RoleStandby, nil
}

// SetRole assigns the role to the node for the device.
//
// Every change of master mints a new term. Changes of the backups alone are owned by the
// master of the device and are forwarded to it when the local node is not the master.
func (s *Service) SetRole(ctx context.Context, node cluster.NodeID, deviceID element.DeviceID, role Role) error {
	if node == "" {
		return gerrors.ErrNodeNotFound
	}

	if role == RoleMaster {
		_, err := s.mutate(ctx, deviceID, func(current *assignment) (*assignment, bool) {
			if current.info.Master == node {
				return nil, false
			}
			backups := without(current.info.Backups, node)
			if current.info.Master != "" {
				backups = append([]cluster.NodeID{current.info.Master}, backups...)
			}
			next := current.clone()
			next.info = RoleInfo{Master: node, Backups: backups}
			return next, true
		})
		return err
	}

	local := s.localID()
	var forwardTo cluster.NodeID
	_, err := s.mutate(ctx, deviceID, func(current *assignment) (*assignment, bool) {
		forwardTo = ""
		next := current.clone()

		if current.info.Master == node {
			successors := without(current.info.Backups, node)
			var backups []cluster.NodeID
			if role == RoleStandby {
				backups = []cluster.NodeID{node}
			}

			if len(successors) > 0 {
				next.info = RoleInfo{Master: successors[0], Backups: append(backups, successors[1:]...)}
				return next, true
			}
			next.info = RoleInfo{Backups: backups}
		} else {
			wanted := role == RoleStandby
			if wanted == slices.Contains(current.info.Backups, node) {
				return nil, false
			}
			if wanted {
				next.info.Backups = append(next.info.Backups, node)
			} else {
				next.info.Backups = without(next.info.Backups, node)
			}
		}

		if current.info.Master != "" && current.info.Master != local {
			forwardTo = current.info.Master
			return nil, false
		}
		return next, false
	})
	if err != nil {
		return err
	}

	if forwardTo != "" {
		return s.forward(ctx, forwardTo, deviceID, node, role)
	}
	return nil
}

// Relinquish gives up every role of the local node for the device.
// When the local node is master the first backup takes over with a new term.
func (s *Service) Relinquish(ctx context.Context, deviceID element.DeviceID) error {
	return s.SetRole(ctx, s.localID(), deviceID, RoleNone)
}

// mutate applies the assignment computed by plan from the current one.
// plan returns nil when nothing changes, and whether the change needs a new term.
// It returns the assignment in place after the call.
func (s *Service) mutate(ctx context.Context, deviceID element.DeviceID, plan func(current *assignment) (*assignment, bool)) (*assignment, error) {
	for range maxMutationAttempts {
		s.mu.RLock()
		snapshot, known := s.assignments[deviceID]
		s.mu.RUnlock()

		current := &assignment{deviceID: deviceID}
		if known {
			current = snapshot.clone()
		}

		next, mint := plan(current.clone())
		if next == nil {
			return current, nil
		}

		if mint {
			number, err := s.nextTerm(ctx, deviceID)
			if err != nil {
				s.logger.Warnf("device=(%s) keeps its last known role: %v", deviceID, err)
				return nil, err
			}
			next.term = Term{Master: next.info.Master, Number: number}
			next.revision = 0
		} else {
			next.term = Term{Master: next.info.Master, Number: current.term.Number}
			next.revision = current.revision + 1
		}

		s.mu.Lock()
		latest, exists := s.assignments[deviceID]
		if exists != known || (exists && !latest.sameVersion(current)) || !next.newerThan(latest) {
			s.mu.Unlock()
			continue
		}
		s.assignments[deviceID] = next
		s.mu.Unlock()

		s.publish(latest, next)
		s.broadcast(ctx, next)
		return next.clone(), nil
	}
	return nil, fmt.Errorf("device=(%s): %w", deviceID, errConcurrentUpdate)
}

// nextTerm allocates a term number, retrying with backoff
func (s *Service) nextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error) {
	var number uint64
	retrier := retry.NewRetrier(s.maxAttempts, s.initialDelay, s.maxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		var err error
		number, err = s.allocator.NextTerm(ctx, deviceID)
		return err
	})
	if err != nil {
		if errors.Is(err, gerrors.ErrTermAuthorityUnreachable) {
			return 0, err
		}
		return 0, gerrors.NewErrTermAuthorityUnreachable(err)
	}
	return number, nil
}

// apply installs a replicated assignment when it is newer than the local one
func (s *Service) apply(ctx context.Context, received *assignment) {
	s.mu.Lock()
	current := s.assignments[received.deviceID]
	if !received.newerThan(current) {
		s.mu.Unlock()
		if current != nil && received.sameVersion(current) && !received.info.Equal(current.info) {
			s.logger.Warnf("device=(%s) received a different assignment with the same version term=(%d) revision=(%d)",
				received.deviceID, received.term.Number, received.revision)
		}
		return
	}
	s.assignments[received.deviceID] = received
	s.mu.Unlock()

	s.publish(current, received)

	// a master replaced behind its back stays a backup of the device
	local := s.localID()
	if current != nil &&
		current.info.Master == local &&
		received.info.Master != "" &&
		received.info.RoleOf(local) == RoleNone {
		if err := s.forward(ctx, received.info.Master, received.deviceID, local, RoleStandby); err != nil {
			s.logger.Warnf("failed to request standby role of device=(%s): %v", received.deviceID, err)
		}
	}
}

func (s *Service) publish(previous, next *assignment) {
	var typ EventType
	switch {
	case previous == nil && next.info.Master == "" && len(next.info.Backups) == 0:
		return
	case previous == nil:
		typ = BackupsChanged
		if next.info.Master != "" {
			typ = MasterChanged
		}
	case previous.info.Master != next.info.Master:
		typ = MasterChanged
	case !slices.Equal(previous.info.Backups, next.info.Backups):
		typ = BackupsChanged
	default:
		return
	}
	s.NotifyDelegate(newEvent(typ, next.deviceID, next.info.clone(), next.term))
}

func (s *Service) broadcast(ctx context.Context, a *assignment) {
	payload, err := encodeAssignment(a)
	if err != nil {
		s.logger.Errorf("failed to encode the assignment of device=(%s): %v", a.deviceID, err)
		return
	}

	msg := &cluster.Message{Sender: s.localID(), Subject: cluster.SubjectMastershipUpdate, Payload: payload}
	if err := s.communicator.Broadcast(ctx, msg); err != nil {
		s.logger.Warnf("failed to replicate the assignment of device=(%s): %v", a.deviceID, err)
	}
}

func (s *Service) forward(ctx context.Context, master cluster.NodeID, deviceID element.DeviceID, node cluster.NodeID, role Role) error {
	payload, err := encodeRoleRequest(deviceID, node, role)
	if err != nil {
		return err
	}
	msg := &cluster.Message{Sender: s.localID(), Subject: cluster.SubjectMastershipStandby, Payload: payload}
	if err := s.communicator.Unicast(ctx, master, msg); err != nil {
		return fmt.Errorf("failed to reach master=(%s) of device=(%s): %w", master, deviceID, err)
	}
	return nil
}

func (s *Service) handleUpdate(ctx context.Context, msg *cluster.Message) {
	received, err := decodeAssignment(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping mastership update from node=(%s): %v", msg.Sender, err)
		return
	}
	s.apply(ctx, received)
}

func (s *Service) handleRoleRequest(ctx context.Context, msg *cluster.Message) {
	deviceID, node, role, err := decodeRoleRequest(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping role request from node=(%s): %v", msg.Sender, err)
		return
	}

	// only the master owns the backups; a request that raced a hand over is dropped
	if s.LocalRole(deviceID) != RoleMaster || role == RoleMaster {
		s.logger.Debugf("ignoring role=(%s) request of node=(%s) for device=(%s)", role, node, deviceID)
		return
	}

	if err := s.SetRole(ctx, node, deviceID, role); err != nil {
		s.logger.Warnf("failed to assign role=(%s) to node=(%s) for device=(%s): %v", role, node, deviceID, err)
	}
}

func (s *Service) announceLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case <-s.announcer.Ticks:
			s.announce(context.Background())
		}
	}
}

// announce re-broadcasts the assignments mastered locally so that late joiners learn them
func (s *Service) announce(ctx context.Context) {
	local := s.localID()
	s.mu.RLock()
	owned := make([]*assignment, 0)
	for _, current := range s.assignments {
		if current.info.Master == local {
			owned = append(owned, current)
		}
	}
	s.mu.RUnlock()

	for _, current := range owned {
		s.broadcast(ctx, current)
	}
}

func (s *Service) isMember(node cluster.NodeID) bool {
	for _, member := range s.communicator.Nodes() {
		if member.ID == node {
			return true
		}
	}
	return false
}

func (s *Service) localID() cluster.NodeID {
	return s.communicator.LocalNode().ID
}

func without(nodes []cluster.NodeID, node cluster.NodeID) []cluster.NodeID {
	out := make([]cluster.NodeID, 0, len(nodes))
	for _, current := range nodes {
		if current != node {
			out = append(out, current)
		}
	}
	return out
}
