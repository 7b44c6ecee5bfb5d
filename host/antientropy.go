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
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/element"
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
				s.logger.Debugf("host anti-entropy round abandoned: %v", err)
			}
		}
	}
}

// RunAntiEntropy sends the digest of the local hosts and removals to the peers picked by
// the fan-out policy. Any transport failure abandons the round.
func (s *Store) RunAntiEntropy(ctx context.Context) error {
	return s.advertise(ctx, false)
}

func (s *Store) advertise(ctx context.Context, reply bool, to ...cluster.NodeID) error {
	if len(to) == 0 {
		peers := cluster.Peers(s.communicator)
		if len(peers) == 0 {
			return nil
		}
		if s.fanOut == device.RandomPeer {
			peers = []cluster.ControllerNode{peers[rand.IntN(len(peers))]}
		}
		for _, peer := range peers {
			to = append(to, peer.ID)
		}
	}

	ad := s.buildAdvertisement()
	ad.reply = reply
	payload, err := encodeAdvertisement(ad)
	if err != nil {
		s.abandoned(ctx, "serialization")
		return fmt.Errorf("failed to encode host advertisement: %w", err)
	}

	if s.entropyMetric != nil {
		s.entropyMetric.Round(ctx)
	}

	msg := &cluster.Message{Sender: ad.sender, Subject: cluster.SubjectHostAdvertisement, Payload: payload}
	eg, egCtx := errgroup.WithContext(ctx)
	for _, peer := range to {
		eg.Go(func() error {
			if err := s.communicator.Unicast(egCtx, peer, msg); err != nil {
				return fmt.Errorf("failed to send host advertisement to node=(%s): %w", peer, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		s.abandoned(ctx, "transport")
		return err
	}
	s.logger.Debugf("advertised %d host entries to %d peer(s)", ad.size(), len(to))
	return nil
}

func (s *Store) buildAdvertisement() *advertisement {
	ad := newAdvertisement(s.communicator.LocalNode().ID)
	s.records.Range(func(hostID element.HostID, rec *record) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		switch {
		case rec.host != nil:
			ad.hosts[hostID] = rec.stamp
		case rec.removal != nil:
			ad.removed[hostID] = rec.removal
		}
	})
	return ad
}

// handleHostAdvertisement diffs the digest of the peer against the local records.
// Hosts and removals the local node holds a newer version of are pushed to the peer. When
// the peer holds versions the local node misses, the local digest is sent back so that the
// peer pushes them in turn.
func (s *Store) handleHostAdvertisement(ctx context.Context, msg *cluster.Message) {
	ad, err := decodeAdvertisement(msg.Payload)
	if err != nil {
		s.logger.Warnf("dropping host advertisement from node=(%s): %v", msg.Sender, err)
		return
	}
	peer := ad.sender
	if peer == "" {
		peer = msg.Sender
	}

	var pushes []outbound
	s.records.Range(func(hostID element.HostID, rec *record) {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		remoteHost, hasHost := ad.hosts[hostID]
		remoteRemoval, hasRemoval := ad.removed[hostID]
		switch {
		case rec.host != nil:
			if hasRemoval && !newer(rec.stamp, remoteRemoval) {
				return
			}
			if !hasHost || newer(rec.stamp, remoteHost) {
				pushes = append(pushes, s.updatePush(rec.host, rec.stamp))
			}
		case rec.removal != nil:
			if hasHost && newer(rec.removal, remoteHost) {
				pushes = append(pushes, s.removalPush(hostID, rec.removal))
			}
		}
	})

	behind := 0
	for hostID, remote := range ad.hosts {
		if s.isBehind(hostID, remote, false) {
			behind++
		}
	}
	for hostID, remote := range ad.removed {
		if s.isBehind(hostID, remote, true) {
			behind++
		}
	}

	sent := 0
	for _, push := range pushes {
		if push.payload == nil {
			continue
		}
		if err := s.communicator.Unicast(ctx, peer, &cluster.Message{Sender: s.communicator.LocalNode().ID, Subject: push.subject, Payload: push.payload}); err != nil {
			s.logger.Warnf("abandoning host anti-entropy with node=(%s): %v", peer, err)
			s.abandoned(ctx, "transport")
			return
		}
		sent++
	}
	if s.entropyMetric != nil && sent > 0 {
		s.entropyMetric.Pushed(ctx, sent)
	}

	if behind == 0 || ad.reply {
		return
	}

	s.logger.Debugf("node=(%s) holds %d newer host entries: answering with the local digest", peer, behind)
	if err := s.advertise(ctx, true, peer); err != nil {
		s.logger.Warnf("failed to answer host advertisement of node=(%s): %v", peer, err)
		return
	}
	if s.entropyMetric != nil {
		s.entropyMetric.Pulled(ctx, behind)
	}
}

// isBehind reports whether the entry advertised by the peer is missing or older locally.
// A live host is behind a newer removal, a removal is only behind the host it supersedes.
func (s *Store) isBehind(hostID element.HostID, remote timestamp.Timestamp, removal bool) bool {
	rec, ok := s.records.Get(hostID)
	if !ok {
		return !removal
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if removal {
		return rec.host != nil && newer(remote, rec.stamp)
	}
	if rec.removal != nil && !newer(remote, rec.removal) {
		return false
	}
	return rec.host == nil || newer(remote, rec.stamp)
}

func (s *Store) updatePush(h *Host, stamp timestamp.Timestamp) outbound {
	payload, err := encodeHostUpdate(&hostUpdate{providerID: h.ProviderID, desc: h.description(), stamp: stamp})
	if err != nil {
		s.logger.Errorf("failed to encode host update: %v", err)
	}
	return outbound{subject: cluster.SubjectHostUpdate, payload: payload}
}

func (s *Store) removalPush(hostID element.HostID, stamp timestamp.Timestamp) outbound {
	payload, err := encodeHostRemoval(&hostRemoval{hostID: hostID, stamp: stamp})
	if err != nil {
		s.logger.Errorf("failed to encode host removal: %v", err)
	}
	return outbound{subject: cluster.SubjectHostRemoved, payload: payload}
}

func (s *Store) abandoned(ctx context.Context, reason string) {
	if s.entropyMetric != nil {
		s.entropyMetric.Abandoned(ctx, reason)
	}
}
