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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/device"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/internal/inmem"
	"github.com/tochemey/netsync/timestamp"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var providerX = element.NewProviderID("of", "x")

type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) Notify(event *Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

type testNode struct {
	communicator *inmem.Communicator
	store        *Store
	events       *recorder
}

func newTestCluster(t *testing.T, ids ...cluster.NodeID) []*testNode {
	t.Helper()
	return newTestClusterWith(t, []Option{WithAntiEntropyInterval(0)}, ids...)
}

func newTestClusterWith(t *testing.T, opts []Option, ids ...cluster.NodeID) []*testNode {
	t.Helper()
	ctx := context.Background()
	hub := inmem.NewHub()

	nodes := make([]*testNode, 0, len(ids))
	for _, id := range ids {
		communicator := hub.Join(cluster.ControllerNode{ID: id, Host: "127.0.0.1"})
		require.NoError(t, communicator.Start(ctx))

		store := NewStore(communicator, opts...)
		events := new(recorder)
		require.NoError(t, store.SetDelegate(events))
		require.NoError(t, store.Start(ctx))

		t.Cleanup(func() {
			assert.NoError(t, store.Stop(ctx))
			assert.NoError(t, communicator.Stop(ctx))
		})
		nodes = append(nodes, &testNode{communicator: communicator, store: store, events: events})
	}
	return nodes
}

func description(port element.PortNumber, ips ...string) Description {
	return Description{
		MAC:         "00:00:00:00:00:01",
		VLAN:        10,
		Location:    element.ConnectPoint{DeviceID: "of:0000000000000001", Port: port},
		IPs:         ips,
		Annotations: map[string]string{"role": "server"},
	}
}

func deliver(t *testing.T, store *Store, desc Description, stamp timestamp.Timestamp) {
	t.Helper()
	payload, err := encodeHostUpdate(&hostUpdate{providerID: providerX, desc: desc, stamp: stamp})
	require.NoError(t, err)
	store.handleHostUpdate(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectHostUpdate, Payload: payload})
}

func TestHostDetected(t *testing.T) {
	t.Run("With a new host", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		desc := description(1, "10.0.0.2", "10.0.0.1", "10.0.0.1")

		ev, err := node.store.HostDetected(context.Background(), providerX, desc)
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, HostAdded, ev.Type)
		assert.Equal(t, EventClass, ev.Class())

		host, ok := node.store.Host(desc.ID())
		require.True(t, ok)
		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, host.IPs)
		assert.Equal(t, providerX, host.ProviderID)
		assert.Equal(t, 1, node.store.HostCount())
	})
	t.Run("With the same description twice", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1"))
		require.NoError(t, err)
		ev, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1"))
		require.NoError(t, err)
		assert.Nil(t, ev)
		assert.Equal(t, []EventType{HostAdded}, node.events.types())
	})
	t.Run("With a host moving to another port", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1"))
		require.NoError(t, err)
		ev, err := node.store.HostDetected(ctx, providerX, description(2, "10.0.0.1"))
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, HostMoved, ev.Type)
		require.NotNil(t, ev.Previous)
		assert.Equal(t, element.PortNumber(1), ev.Previous.Location.Port)
		assert.Equal(t, element.PortNumber(2), ev.Host.Location.Port)

		cp := element.ConnectPoint{DeviceID: "of:0000000000000001", Port: 2}
		assert.Len(t, node.store.HostsAt(cp), 1)
		assert.Empty(t, node.store.HostsAt(element.ConnectPoint{DeviceID: "of:0000000000000001", Port: 1}))
	})
	t.Run("With new addresses", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1"))
		require.NoError(t, err)
		ev, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1", "10.0.0.9"))
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, HostUpdated, ev.Type)
	})
	t.Run("With a listener", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		var (
			mu   sync.Mutex
			seen []EventType
		)
		id := node.store.AddListener(event.ListenerFunc[*Event](func(_ context.Context, ev *Event) {
			mu.Lock()
			seen = append(seen, ev.Type)
			mu.Unlock()
		}))

		ev, err := node.store.HostDetected(ctx, providerX, description(1, "10.0.0.1"))
		require.NoError(t, err)
		node.store.Sink().Process(ctx, ev)
		node.store.RemoveListener(id)
		node.store.Sink().Process(ctx, ev)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []EventType{HostAdded}, seen)
	})
}

func TestApplyIfNewer(t *testing.T) {
	t.Run("With an older replicated description", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]

		deliver(t, node.store, description(1, "10.0.0.1"), timestamp.WallClock{Millis: 200})
		deliver(t, node.store, description(2, "10.0.0.1"), timestamp.WallClock{Millis: 100})

		host, ok := node.store.Host(description(1).ID())
		require.True(t, ok)
		assert.Equal(t, element.PortNumber(1), host.Location.Port)
		assert.Equal(t, []EventType{HostAdded}, node.events.types())
	})
	t.Run("With the same stamp and different content", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]

		deliver(t, node.store, description(1, "10.0.0.1"), timestamp.WallClock{Millis: 200})
		deliver(t, node.store, description(2, "10.0.0.1"), timestamp.WallClock{Millis: 200})

		host, ok := node.store.Host(description(1).ID())
		require.True(t, ok)
		assert.Equal(t, element.PortNumber(1), host.Location.Port)
	})
	t.Run("With an incomparable stamp", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]

		deliver(t, node.store, description(1, "10.0.0.1"), timestamp.WallClock{Millis: 200})
		deliver(t, node.store, description(2, "10.0.0.1"), timestamp.NewMastershipBased(9, 9))

		host, ok := node.store.Host(description(1).ID())
		require.True(t, ok)
		assert.Equal(t, element.PortNumber(1), host.Location.Port)
	})
	t.Run("With a malformed payload", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		node.store.handleHostUpdate(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectHostUpdate, Payload: []byte{0, 1, 2}})
		assert.Zero(t, node.store.HostCount())
	})
}

func TestHostVanished(t *testing.T) {
	t.Run("With an unknown host", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		_, err := node.store.HostVanished(context.Background(), element.HostID{MAC: "ff:ff:ff:ff:ff:ff"})
		assert.ErrorIs(t, err, gerrors.ErrHostNotFound)
	})
	t.Run("With a known host", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()
		desc := description(1, "10.0.0.1")

		_, err := node.store.HostDetected(ctx, providerX, desc)
		require.NoError(t, err)
		ev, err := node.store.HostVanished(ctx, desc.ID())
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, HostRemoved, ev.Type)
		assert.Zero(t, node.store.HostCount())
		assert.Empty(t, node.store.Hosts())
	})
	t.Run("With an update older than the removal", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		desc := description(1, "10.0.0.1")

		deliver(t, node.store, desc, timestamp.WallClock{Millis: 100})
		payload, err := encodeHostRemoval(&hostRemoval{hostID: desc.ID(), stamp: timestamp.WallClock{Millis: 300}})
		require.NoError(t, err)
		node.store.handleHostRemoved(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectHostRemoved, Payload: payload})
		deliver(t, node.store, desc, timestamp.WallClock{Millis: 200})

		_, ok := node.store.Host(desc.ID())
		assert.False(t, ok)
		assert.Equal(t, []EventType{HostAdded, HostRemoved}, node.events.types())

		deliver(t, node.store, desc, timestamp.WallClock{Millis: 400})
		_, ok = node.store.Host(desc.ID())
		assert.True(t, ok)
	})
}

func TestReplication(t *testing.T) {
	nodes := newTestCluster(t, "a", "b")
	a, b := nodes[0], nodes[1]
	ctx := context.Background()
	desc := description(1, "10.0.0.1")

	_, err := a.store.HostDetected(ctx, providerX, desc)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := b.store.Host(desc.ID())
		return ok
	}, waitFor, tick)

	_, err = a.store.HostVanished(ctx, desc.ID())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return b.store.HostCount() == 0
	}, waitFor, tick)
	assert.Equal(t, []EventType{HostAdded, HostRemoved}, b.events.types())
}

func TestAntiEntropy(t *testing.T) {
	t.Run("With a host detected during a partition", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()
		desc := description(1, "10.0.0.1")

		b.communicator.SetReachable(false)
		_, err := a.store.HostDetected(ctx, providerX, desc)
		require.NoError(t, err)
		assert.Equal(t, 1, a.store.HostCount())
		assert.Zero(t, b.store.HostCount())

		b.communicator.SetReachable(true)
		require.NoError(t, a.store.RunAntiEntropy(ctx))
		require.Eventually(t, func() bool {
			return b.store.HostCount() == 1
		}, waitFor, tick)

		host, ok := b.store.Host(desc.ID())
		require.True(t, ok)
		assert.Equal(t, providerX, host.ProviderID)
		assert.Equal(t, desc.Location, host.Location)
		assert.Equal(t, []string{"10.0.0.1"}, host.IPs)
		assert.Equal(t, []EventType{HostAdded}, b.events.types())
	})
	t.Run("With a host removed during a partition", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()
		desc := description(1, "10.0.0.1")

		_, err := a.store.HostDetected(ctx, providerX, desc)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return b.store.HostCount() == 1
		}, waitFor, tick)

		b.communicator.SetReachable(false)
		_, err = a.store.HostVanished(ctx, desc.ID())
		require.NoError(t, err)
		assert.Equal(t, 1, b.store.HostCount())

		b.communicator.SetReachable(true)
		require.NoError(t, b.store.RunAntiEntropy(ctx))
		require.Eventually(t, func() bool {
			return b.store.HostCount() == 0
		}, waitFor, tick)
		assert.Equal(t, []EventType{HostAdded, HostRemoved}, b.events.types())
		assert.Zero(t, a.store.HostCount())
	})
	t.Run("With a removal advertised to a node still holding the host", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()
		desc := description(1, "10.0.0.1")

		_, err := a.store.HostDetected(ctx, providerX, desc)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return b.store.HostCount() == 1
		}, waitFor, tick)

		b.communicator.SetReachable(false)
		_, err = a.store.HostVanished(ctx, desc.ID())
		require.NoError(t, err)

		b.communicator.SetReachable(true)
		require.NoError(t, a.store.RunAntiEntropy(ctx))
		require.Eventually(t, func() bool {
			return b.store.HostCount() == 0
		}, waitFor, tick)
		assert.Zero(t, a.store.HostCount())
	})
	t.Run("With periodic rounds", func(t *testing.T) {
		opts := []Option{WithAntiEntropyInterval(50 * time.Millisecond), WithFanOut(device.AllPeers)}
		nodes := newTestClusterWith(t, opts, "a", "b", "c")
		a := nodes[0]
		ctx := context.Background()
		desc := description(2, "10.0.0.7")

		nodes[1].communicator.SetReachable(false)
		nodes[2].communicator.SetReachable(false)
		_, err := a.store.HostDetected(ctx, providerX, desc)
		require.NoError(t, err)
		nodes[1].communicator.SetReachable(true)
		nodes[2].communicator.SetReachable(true)

		for _, node := range nodes[1:] {
			require.Eventually(t, func() bool {
				_, ok := node.store.Host(desc.ID())
				return ok
			}, waitFor, tick)
		}
	})
	t.Run("With an unreachable peer", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		nodes[1].communicator.SetReachable(false)
		err := nodes[0].store.RunAntiEntropy(context.Background())
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})
	t.Run("With a single node", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		assert.NoError(t, node.store.RunAntiEntropy(context.Background()))
	})
	t.Run("With a malformed advertisement", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		node.store.handleHostAdvertisement(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectHostAdvertisement, Payload: []byte{0, 1, 2}})
		assert.Zero(t, node.store.HostCount())
	})
}

func TestCodec(t *testing.T) {
	t.Run("With an advertisement", func(t *testing.T) {
		ad := newAdvertisement("a")
		ad.hosts[element.HostID{MAC: "00:00:00:00:00:01", VLAN: 10}] = timestamp.WallClock{Millis: 7}
		ad.removed[element.HostID{MAC: "00:00:00:00:00:02"}] = timestamp.WallClock{Millis: 9}
		ad.reply = true

		payload, err := encodeAdvertisement(ad)
		require.NoError(t, err)
		actual, err := decodeAdvertisement(payload)
		require.NoError(t, err)
		assert.Equal(t, ad, actual)
		assert.Equal(t, 2, actual.size())
	})
	t.Run("With a host update", func(t *testing.T) {
		desc := description(3, "10.0.0.1", "10.0.0.2")
		payload, err := encodeHostUpdate(&hostUpdate{providerID: providerX, desc: desc, stamp: timestamp.WallClock{Millis: 42}})
		require.NoError(t, err)

		actual, err := decodeHostUpdate(payload)
		require.NoError(t, err)
		assert.Equal(t, providerX, actual.providerID)
		assert.Equal(t, desc, actual.desc)
		assert.True(t, timestamp.Equal(timestamp.WallClock{Millis: 42}, actual.stamp))
	})
	t.Run("With a removal of the wrong kind", func(t *testing.T) {
		payload, err := encodeHostRemoval(&hostRemoval{hostID: element.HostID{MAC: "aa"}, stamp: timestamp.WallClock{Millis: 1}})
		require.NoError(t, err)
		_, err = decodeHostUpdate(payload)
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
}
