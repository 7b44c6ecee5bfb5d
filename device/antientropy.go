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
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/timestamp"
)

// outbound is a message waiting to be sent once every record lock is released
type outbound struct {
	subject string
	payload []byte
}

func (s *Store) antiEntropyLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-stopCh
		cancel()
	}()

	for {
		select {
		case <-stopCh:
			return
		case <-s.ticker.Ticks:
			if err := s.RunAntiEntropy(ctx); err != nil {
				// the next tick starts a fresh round
				s.logger.Debugf("anti-entropy round abandoned: %v", err)
			}
		}
	}
}

// RunAntiEntropy runs one anti-entropy round: the digest of the local fragments is sent to
// the peers picked by the fan-out policy. Any transport failure abandons the round.
func (s *Store) RunAntiEntropy(ctx context.Context) error {
	peers := cluster.Peers(s.communicator)
	if len(peers) == 0 {
		return nil
	}
	if s.fanOut == RandomPeer {
		peers = []cluster.ControllerNode{peers[rand.IntN(len(peers))]}
	}

	ad := s.buildAdvertisement()
	payload, err := encodeAdvertisement(ad)
	if err != nil {
		s.abandoned(ctx, "serialization")
		return fmt.Errorf("failed to encode advertisement: %w", err)
	}

	if s.entropyMetric != nil {
		s.entropyMetric.Round(ctx)
	}

	msg := &cluster.Message{Sender: ad.Sender, Subject: cluster.SubjectAdvertisement, Payload: payload}
	eg, egCtx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		eg.Go(func() error {
			if err := s.communicator.Unicast(egCtx, peer.ID, msg); err != nil {
				return fmt.Errorf("failed to send advertisement to node=(%s): %w", peer.ID, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		s.abandoned(ctx, "transport")
		return err
	}
	s.logger.Debugf("advertised %d fragments to %d peer(s)", ad.Size(), len(peers))
	return nil
}

func (s *Store) buildAdvertisement() *Advertisement {
	ad := newAdvertisement(s.localID())
	s.records.Range(func(deviceID element.DeviceID, rec *record) {
		rec.mu.Lock()
		ad.advertise(deviceID, rec)
		rec.mu.Unlock()
	})
	return ad
}

// handleAdvertisement diffs the digest of the peer against the local fragments.
// Fragments the local node holds a newer version of are pushed to the peer, the ones it
// misses or holds an older version of are pulled from it.
func (s *Store) handleAdvertisement(ctx context.Context, msg *cluster.Message) {
	ad, err := decodeAdvertisement(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping advertisement from node=(%s): %v", msg.Sender, err)
		return
	}
	peer := ad.Sender
	if peer == "" {
		peer = msg.Sender
	}
	s.lastAdvertisement.Set(peer, time.Now())

	var (
		pushes   []outbound
		events   []*Event
		pullDevs = goset.NewThreadUnsafeSet[element.DeviceFragmentID]()
		pullPort = goset.NewThreadUnsafeSet[element.PortFragmentID]()
	)

	// what the peer advertises, grouped per device so that every record is locked once
	advertised := goset.NewThreadUnsafeSet[element.DeviceID]()
	for id := range ad.Devices {
		advertised.Add(id.DeviceID)
	}
	for id := range ad.Ports {
		advertised.Add(id.DeviceID)
	}
	for id := range ad.Offline {
		advertised.Add(id)
	}

	// pass over the local records: push newer fragments, apply newer offline markers
	s.records.Range(func(deviceID element.DeviceID, rec *record) {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		for providerID, descs := range rec.providers {
			fragmentID := element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerID}
			if remote, ok := ad.Devices[fragmentID]; !ok || newer(descs.device.Timestamp, remote) {
				pushes = append(pushes, s.devicePush(providerID, deviceID, descs.device))
			}
			for number, port := range descs.ports {
				portID := element.PortFragmentID{DeviceID: deviceID, ProviderID: providerID, PortNumber: number}
				if remote, ok := ad.Ports[portID]; !ok || newer(port.Timestamp, remote) {
					pushes = append(pushes, s.portPush(providerID, deviceID, port))
				}
			}
		}

		remoteOffline, hasRemote := ad.Offline[deviceID]
		switch {
		case hasRemote && (rec.offline == nil || newer(remoteOffline, rec.offline)):
			ev, _ := s.markOfflineLocked(rec, deviceID, remoteOffline)
			events = append(events, compact(ev)...)
		case rec.offline != nil && (!hasRemote || newer(rec.offline, remoteOffline)):
			pushes = append(pushes, s.stampPush(codec.KindDeviceOffline, cluster.SubjectDeviceOffline, deviceID, rec.offline))
		}

		if rec.removal != nil && advertised.Contains(deviceID) && s.removalSupersedes(rec.removal, deviceID, ad) {
			pushes = append(pushes, s.stampPush(codec.KindDeviceRemoved, cluster.SubjectDeviceRemoved, deviceID, rec.removal))
		}
	})

	// pass over the peer digest: pull what is missing or older locally
	for fragmentID, remote := range ad.Devices {
		if s.shouldPull(fragmentID.DeviceID, remote, func(rec *record) timestamp.Timestamp {
			if descs, ok := rec.providers[fragmentID.ProviderID]; ok {
				return descs.device.Timestamp
			}
			return nil
		}) {
			pullDevs.Add(fragmentID)
		}
	}
	for portID, remote := range ad.Ports {
		if s.shouldPull(portID.DeviceID, remote, func(rec *record) timestamp.Timestamp {
			if descs, ok := rec.providers[portID.ProviderID]; ok {
				if port, ok := descs.ports[portID.PortNumber]; ok {
					return port.Timestamp
				}
			}
			return nil
		}) {
			pullPort.Add(portID)
		}
	}

	s.NotifyDelegate(events...)

	for _, push := range pushes {
		if push.payload == nil {
			continue
		}
		if err := s.communicator.Unicast(ctx, peer, &cluster.Message{Sender: s.localID(), Subject: push.subject, Payload: push.payload}); err != nil {
			s.logger.Warnf("abandoning anti-entropy with node=(%s): %v", peer, err)
			s.abandoned(ctx, "transport")
			return
		}
	}
	if s.entropyMetric != nil && len(pushes) > 0 {
		s.entropyMetric.Pushed(ctx, len(pushes))
	}

	if pullDevs.Cardinality() == 0 && pullPort.Cardinality() == 0 {
		return
	}

	request := &fragmentRequest{devices: pullDevs.ToSlice(), ports: pullPort.ToSlice()}
	payload, err := encodeFragmentRequest(request)
	if err != nil {
		s.logger.Errorf("failed to encode fragment request: %v", err)
		s.abandoned(ctx, "serialization")
		return
	}

	s.logger.Debugf("pulling %d device and %d port fragments from node=(%s)", len(request.devices), len(request.ports), peer)
	if err := s.communicator.Unicast(ctx, peer, &cluster.Message{Sender: s.localID(), Subject: cluster.SubjectFragmentRequest, Payload: payload}); err != nil {
		s.logger.Warnf("abandoning anti-entropy with node=(%s): %v", peer, err)
		s.abandoned(ctx, "transport")
		return
	}
	if s.entropyMetric != nil {
		s.entropyMetric.Pulled(ctx, len(request.devices)+len(request.ports))
	}
}

// shouldPull reports whether the fragment advertised by the peer is missing or older locally.
// Fragments of a device removed after the advertised version are never pulled back.
func (s *Store) shouldPull(deviceID element.DeviceID, remote timestamp.Timestamp, local func(*record) timestamp.Timestamp) bool {
	rec, ok := s.records.Get(deviceID)
	if !ok {
		return true
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if s.isRemoved(rec, remote) {
		return false
	}
	current := local(rec)
	return current == nil || newer(remote, current)
}

// removalSupersedes reports whether the local removal is newer than a fragment of the device the peer still advertises
func (s *Store) removalSupersedes(removal timestamp.Timestamp, deviceID element.DeviceID, ad *Advertisement) bool {
	for id, stamp := range ad.Devices {
		if id.DeviceID == deviceID && newer(removal, stamp) {
			return true
		}
	}
	for id, stamp := range ad.Ports {
		if id.DeviceID == deviceID && newer(removal, stamp) {
			return true
		}
	}
	return false
}

func (s *Store) handleFragmentRequest(ctx context.Context, msg *cluster.Message) {
	request, err := decodeFragmentRequest(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping fragment request from node=(%s): %v", msg.Sender, err)
		return
	}

	responses := make([]*fragmentResponse, 0, len(request.devices)+len(request.ports))
	for _, id := range request.devices {
		responses = append(responses, s.deviceFragment(id))
	}
	for _, id := range request.ports {
		responses = append(responses, s.portFragment(id))
	}

	for _, response := range responses {
		payload, err := encodeFragmentResponse(response)
		if err != nil {
			s.logger.Errorf("failed to encode fragment response: %v", err)
			return
		}
		if err := s.communicator.Unicast(ctx, msg.Sender, &cluster.Message{Sender: s.localID(), Subject: cluster.SubjectFragmentResponse, Payload: payload}); err != nil {
			s.logger.Warnf("failed to answer fragment request of node=(%s): %v", msg.Sender, err)
			return
		}
	}
}

func (s *Store) deviceFragment(id element.DeviceFragmentID) *fragmentResponse {
	response := &fragmentResponse{device: &id}
	rec, ok := s.records.Get(id.DeviceID)
	if !ok {
		return response
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if descs, ok := rec.providers[id.ProviderID]; ok {
		response.found = true
		response.deviceDesc = descs.device.Value
		response.stamp = descs.device.Timestamp
	}
	return response
}

func (s *Store) portFragment(id element.PortFragmentID) *fragmentResponse {
	response := &fragmentResponse{port: &id}
	rec, ok := s.records.Get(id.DeviceID)
	if !ok {
		return response
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if descs, ok := rec.providers[id.ProviderID]; ok {
		if port, ok := descs.ports[id.PortNumber]; ok {
			response.found = true
			response.portDesc = port.Value
			response.stamp = port.Timestamp
		}
	}
	return response
}

func (s *Store) handleFragmentResponse(ctx context.Context, msg *cluster.Message) {
	response, err := decodeFragmentResponse(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping fragment response from node=(%s): %v", msg.Sender, err)
		return
	}

	if !response.found {
		s.logger.Debugf("node=(%s) no longer holds fragment=(%s): %v", msg.Sender, response.fragment(), gerrors.ErrFragmentNotFound)
		return
	}

	switch {
	case response.device != nil:
		id := *response.device
		rec := s.record(id.DeviceID)
		rec.mu.Lock()
		events, _ := s.createOrUpdateDeviceLocked(ctx, rec, id.ProviderID, id.DeviceID, Timestamped[Description]{Value: response.deviceDesc, Timestamp: response.stamp})
		rec.mu.Unlock()
		s.NotifyDelegate(events...)
	case response.port != nil:
		id := *response.port
		rec, ok := s.records.Get(id.DeviceID)
		if !ok {
			return
		}
		rec.mu.Lock()
		ev := s.updatePortStatusLocked(ctx, rec, id.ProviderID, id.DeviceID, Timestamped[PortDescription]{Value: response.portDesc, Timestamp: response.stamp})
		rec.mu.Unlock()
		s.NotifyDelegate(compact(ev)...)
	}
}

func (s *Store) devicePush(providerID element.ProviderID, deviceID element.DeviceID, desc Timestamped[Description]) outbound {
	payload, err := encodeDeviceUpdate(&deviceUpdate{providerID: providerID, deviceID: deviceID, desc: desc})
	if err != nil {
		s.logger.Errorf("failed to encode device update: %v", err)
	}
	return outbound{subject: cluster.SubjectDeviceUpdate, payload: payload}
}

func (s *Store) portPush(providerID element.ProviderID, deviceID element.DeviceID, desc Timestamped[PortDescription]) outbound {
	payload, err := encodePortStatusUpdate(&portStatusUpdate{providerID: providerID, deviceID: deviceID, desc: desc})
	if err != nil {
		s.logger.Errorf("failed to encode port status update: %v", err)
	}
	return outbound{subject: cluster.SubjectPortStatusUpdate, payload: payload}
}

func (s *Store) stampPush(kind codec.Kind, subject string, deviceID element.DeviceID, stamp timestamp.Timestamp) outbound {
	payload, err := encodeDeviceStamp(kind, &deviceStamp{deviceID: deviceID, stamp: stamp})
	if err != nil {
		s.logger.Errorf("failed to encode %s message: %v", subject, err)
	}
	return outbound{subject: subject, payload: payload}
}

func (s *Store) abandoned(ctx context.Context, reason string) {
	if s.entropyMetric != nil {
		s.entropyMetric.Abandoned(ctx, reason)
	}
}

func (r *fragmentResponse) fragment() string {
	if r.device != nil {
		return r.device.String()
	}
	if r.port != nil {
		return r.port.String()
	}
	return ""
}

// newer reports whether a is newer than b. Incomparable timestamps are never newer.
func newer(a, b timestamp.Timestamp) bool {
	cmp, err := timestamp.Compare(a, b)
	return err == nil && cmp > 0
}
