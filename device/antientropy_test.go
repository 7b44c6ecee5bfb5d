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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/inmem"
	"github.com/tochemey/netsync/timestamp"
)

// divergedPair creates a fragment on both nodes while they are partitioned:
// a holds (1,1) with version 1.0 and b holds (1,2) with version 2.0
func divergedPair(t *testing.T) (*testNode, *testNode) {
	t.Helper()
	nodes := newTestCluster(t, "a", "b")
	a, b := nodes[0], nodes[1]
	ctx := context.Background()

	a.communicator.SetReachable(false)
	a.clock.set(1, 1)
	_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
	require.NoError(t, err)
	b.clock.set(1, 2)
	_, err = b.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("2.0"))
	require.NoError(t, err)
	a.communicator.SetReachable(true)

	a.events.reset()
	b.events.reset()
	return a, b
}

func swVersion(store *Store) string {
	device, ok := store.Device(deviceID)
	if !ok {
		return ""
	}
	return device.SwVersion
}

func TestAntiEntropy(t *testing.T) {
	t.Run("With the older node advertising", func(t *testing.T) {
		a, b := divergedPair(t)

		// b finds its fragment newer than the advertised one and pushes it
		require.NoError(t, a.store.RunAntiEntropy(context.Background()))
		require.Eventually(t, func() bool { return swVersion(a.store) == "2.0" }, waitFor, tick)

		assert.Equal(t, []EventType{DeviceUpdated}, a.events.types())
		assert.Empty(t, b.events.types())
		assert.Equal(t, "2.0", swVersion(b.store))

		_, ok := b.store.LastAdvertisement(a.id)
		assert.True(t, ok)
	})
	t.Run("With the newer node advertising", func(t *testing.T) {
		a, b := divergedPair(t)

		// a finds its fragment older than the advertised one and pulls it
		require.NoError(t, b.store.RunAntiEntropy(context.Background()))
		require.Eventually(t, func() bool { return swVersion(a.store) == "2.0" }, waitFor, tick)

		assert.Equal(t, []EventType{DeviceUpdated}, a.events.types())
		assert.Empty(t, b.events.types())

		desc, ok := a.store.DeviceDescription(providerX, deviceID)
		require.True(t, ok)
		assert.Equal(t, timestamp.NewMastershipBased(1, 2), desc.Timestamp)
	})
	t.Run("With a node missing the device and its ports", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()

		b.communicator.SetReachable(false)
		_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		a.clock.set(1, 2)
		_, err = a.store.UpdatePorts(ctx, providerX, deviceID, []PortDescription{{Number: 1, Enabled: true}})
		require.NoError(t, err)
		b.communicator.SetReachable(true)
		assert.Zero(t, b.store.DeviceCount())

		// the first round brings the device, the port follows once the device is known
		require.Eventually(t, func() bool {
			_ = b.store.RunAntiEntropy(ctx)
			_, ok := b.store.Port(deviceID, 1)
			return ok
		}, waitFor, tick)
		assert.True(t, b.store.IsAvailable(deviceID))
	})
	t.Run("With an offline marker missed by a node", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()

		_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return b.store.IsAvailable(deviceID) }, waitFor, tick)

		b.communicator.SetReachable(false)
		a.clock.set(1, 2)
		_, err = a.store.MarkOffline(ctx, deviceID)
		require.NoError(t, err)
		b.communicator.SetReachable(true)
		assert.True(t, b.store.IsAvailable(deviceID))

		// the advertisement carries the marker, the receiver applies it directly
		require.NoError(t, a.store.RunAntiEntropy(ctx))
		require.Eventually(t, func() bool { return !b.store.IsAvailable(deviceID) }, waitFor, tick)
	})
	t.Run("With a removal missed by a node", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()

		_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return b.store.DeviceCount() == 1 }, waitFor, tick)

		b.communicator.SetReachable(false)
		a.clock.set(1, 5)
		_, err = a.store.RemoveDevice(ctx, deviceID)
		require.NoError(t, err)
		b.communicator.SetReachable(true)
		assert.Equal(t, 1, b.store.DeviceCount())

		// b advertises the removed device, a pushes the removal instead of pulling it back
		require.NoError(t, b.store.RunAntiEntropy(ctx))
		require.Eventually(t, func() bool { return b.store.DeviceCount() == 0 }, waitFor, tick)
		assert.Zero(t, a.store.DeviceCount())
	})
	t.Run("With no peer", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		require.NoError(t, node.store.RunAntiEntropy(context.Background()))
	})
	t.Run("With an unreachable peer", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		nodes[1].communicator.SetReachable(false)
		require.Error(t, nodes[0].store.RunAntiEntropy(context.Background()))
	})
}

func TestFragmentRequest(t *testing.T) {
	ctx := context.Background()
	hub := inmem.NewHub()
	table := &masterTable{masters: make(map[element.DeviceID]cluster.NodeID)}

	owner := hub.Join(cluster.ControllerNode{ID: "owner"})
	require.NoError(t, owner.Start(ctx))
	clock := new(manualClock)
	clock.set(1, 1)
	store := NewStore(owner, &tableMastership{table: table, local: "owner", relinquished: atomic.NewInt32(0)}, clock, WithAntiEntropyInterval(0))
	require.NoError(t, store.Start(ctx))
	_, err := store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
	require.NoError(t, err)

	requester := hub.Join(cluster.ControllerNode{ID: "requester"})
	require.NoError(t, requester.Start(ctx))
	t.Cleanup(func() {
		assert.NoError(t, store.Stop(ctx))
		assert.NoError(t, owner.Stop(ctx))
		assert.NoError(t, requester.Stop(ctx))
	})

	responses := make(chan *fragmentResponse, 4)
	requester.Subscribe(cluster.SubjectFragmentResponse, func(_ context.Context, msg *cluster.Message) {
		response, err := decodeFragmentResponse(msg.Payload)
		if err == nil {
			responses <- response
		}
	})

	unknown := element.DeviceFragmentID{DeviceID: "of:00000000000000ff", ProviderID: providerX}
	known := element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerX}
	payload, err := encodeFragmentRequest(&fragmentRequest{devices: []element.DeviceFragmentID{unknown, known}})
	require.NoError(t, err)
	require.NoError(t, requester.Unicast(ctx, "owner", &cluster.Message{Sender: "requester", Subject: cluster.SubjectFragmentRequest, Payload: payload}))

	received := make(map[element.DeviceFragmentID]*fragmentResponse)
	require.Eventually(t, func() bool {
		select {
		case response := <-responses:
			received[*response.device] = response
		default:
		}
		return len(received) == 2
	}, waitFor, tick)

	assert.False(t, received[unknown].found)
	require.True(t, received[known].found)
	assert.Equal(t, "1.0", received[known].deviceDesc.SwVersion)
	assert.Equal(t, timestamp.NewMastershipBased(1, 1), received[known].stamp)
}

func TestAdvertisement(t *testing.T) {
	node := newTestCluster(t, "a")[0]
	ctx := context.Background()

	_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
	require.NoError(t, err)
	node.clock.set(1, 2)
	_, err = node.store.UpdatePorts(ctx, providerX, deviceID, []PortDescription{{Number: 1}, {Number: 2}})
	require.NoError(t, err)
	node.clock.set(1, 3)
	_, err = node.store.MarkOffline(ctx, deviceID)
	require.NoError(t, err)

	ad := node.store.buildAdvertisement()
	assert.Equal(t, cluster.NodeID("a"), ad.Sender)
	assert.Equal(t, 4, ad.Size())
	assert.Equal(t, timestamp.NewMastershipBased(1, 1), ad.Devices[element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerX}])
	assert.Equal(t, timestamp.NewMastershipBased(1, 2), ad.Ports[element.PortFragmentID{DeviceID: deviceID, ProviderID: providerX, PortNumber: 2}])
	assert.Equal(t, timestamp.NewMastershipBased(1, 3), ad.Offline[deviceID])
}
