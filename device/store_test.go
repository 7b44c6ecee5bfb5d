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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/inmem"
	"github.com/tochemey/netsync/mastership"
	"github.com/tochemey/netsync/timestamp"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	deviceID  = element.DeviceID("of:0000000000000001")
	providerX = element.NewProviderID("of", "x")
	providerY = element.NewAncillaryProviderID("netconf", "y")
)

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

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// manualClock hands out the stamp set by the test
type manualClock struct {
	mu    sync.Mutex
	stamp timestamp.MastershipBased
	err   error
}

func (c *manualClock) set(term, sequence uint64) {
	c.mu.Lock()
	c.stamp = timestamp.NewMastershipBased(term, sequence)
	c.err = nil
	c.mu.Unlock()
}

func (c *manualClock) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *manualClock) Timestamp(element.DeviceID) (timestamp.MastershipBased, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stamp, c.err
}

// masterTable is a mastership view shared by the nodes of a test cluster
type masterTable struct {
	mu      sync.Mutex
	masters map[element.DeviceID]cluster.NodeID
}

type tableMastership struct {
	table        *masterTable
	local        cluster.NodeID
	relinquished *atomic.Int32
}

func (m *tableMastership) MasterFor(deviceID element.DeviceID) (cluster.NodeID, bool) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	master, ok := m.table.masters[deviceID]
	return master, ok
}

func (m *tableMastership) RequestRole(_ context.Context, deviceID element.DeviceID) (mastership.Role, error) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	if master, ok := m.table.masters[deviceID]; ok && master != m.local {
		return mastership.RoleStandby, nil
	}
	m.table.masters[deviceID] = m.local
	return mastership.RoleMaster, nil
}

func (m *tableMastership) Relinquish(_ context.Context, deviceID element.DeviceID) error {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	if m.table.masters[deviceID] == m.local {
		delete(m.table.masters, deviceID)
	}
	m.relinquished.Inc()
	return nil
}

func (m *tableMastership) assign(deviceID element.DeviceID, node cluster.NodeID) {
	m.table.mu.Lock()
	m.table.masters[deviceID] = node
	m.table.mu.Unlock()
}

type testNode struct {
	id           cluster.NodeID
	communicator *inmem.Communicator
	store        *Store
	clock        *manualClock
	mastership   *tableMastership
	events       *recorder
}

func newTestCluster(t *testing.T, ids ...cluster.NodeID) []*testNode {
	t.Helper()
	ctx := context.Background()
	hub := inmem.NewHub()
	table := &masterTable{masters: make(map[element.DeviceID]cluster.NodeID)}

	nodes := make([]*testNode, 0, len(ids))
	for _, id := range ids {
		communicator := hub.Join(cluster.ControllerNode{ID: id, Host: "127.0.0.1"})
		require.NoError(t, communicator.Start(ctx))

		clock := new(manualClock)
		clock.set(1, 1)
		masters := &tableMastership{table: table, local: id, relinquished: atomic.NewInt32(0)}
		store := NewStore(communicator, masters, clock, WithAntiEntropyInterval(0))
		events := new(recorder)
		require.NoError(t, store.SetDelegate(events))
		require.NoError(t, store.Start(ctx))

		t.Cleanup(func() {
			assert.NoError(t, store.Stop(ctx))
			assert.NoError(t, communicator.Stop(ctx))
		})
		nodes = append(nodes, &testNode{
			id:           id,
			communicator: communicator,
			store:        store,
			clock:        clock,
			mastership:   masters,
			events:       events,
		})
	}
	return nodes
}

func description(swVersion string) Description {
	return Description{
		Type:             "SWITCH",
		Manufacturer:     "acme",
		HwVersion:        "1.0",
		SwVersion:        swVersion,
		SerialNumber:     "123",
		ChassisID:        "1",
		DefaultAvailable: true,
		Annotations:      map[string]string{"name": "edge"},
	}
}

// deliverDeviceUpdate runs the inbound path of a replicated device update
func deliverDeviceUpdate(t *testing.T, store *Store, providerID element.ProviderID, desc Description, stamp timestamp.Timestamp) {
	t.Helper()
	payload, err := encodeDeviceUpdate(&deviceUpdate{
		providerID: providerID,
		deviceID:   deviceID,
		desc:       Timestamped[Description]{Value: desc, Timestamp: stamp},
	})
	require.NoError(t, err)
	store.handleDeviceUpdate(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectDeviceUpdate, Payload: payload})
}

func TestCreateOrUpdateDevice(t *testing.T) {
	t.Run("With a new device", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		events, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, DeviceAdded, events[0].Type)
		assert.Equal(t, []EventType{DeviceAdded}, node.events.types())

		device, ok := node.store.Device(deviceID)
		require.True(t, ok)
		assert.Equal(t, "1.0", device.SwVersion)
		assert.Equal(t, providerX, device.ProviderID)
		assert.True(t, node.store.IsAvailable(deviceID))
		assert.Equal(t, 1, node.store.DeviceCount())
		assert.Len(t, node.store.AvailableDevices(), 1)
	})
	t.Run("With a new version of the device", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)

		node.clock.set(1, 2)
		events, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("2.0"))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, DeviceUpdated, events[0].Type)
		assert.Equal(t, "2.0", events[0].Device.SwVersion)

		desc, ok := node.store.DeviceDescription(providerX, deviceID)
		require.True(t, ok)
		assert.Equal(t, timestamp.NewMastershipBased(1, 2), desc.Timestamp)
	})
	t.Run("With the local node not being the master", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		node.clock.fail(gerrors.ErrNotMaster)

		events, err := node.store.CreateOrUpdateDevice(context.Background(), providerX, deviceID, description("1.0"))
		require.ErrorIs(t, err, gerrors.ErrNotMaster)
		assert.Empty(t, events)
		assert.Zero(t, node.store.DeviceCount())
	})
	t.Run("With an ancillary provider", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)

		ancillary := description("9.9")
		ancillary.Annotations = map[string]string{"rack": "r1"}
		node.clock.set(1, 2)
		events, err := node.store.CreateOrUpdateDevice(ctx, providerY, deviceID, ancillary)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, DeviceUpdated, events[0].Type)

		device, ok := node.store.Device(deviceID)
		require.True(t, ok)
		// the primary provider keeps the attributes, the ancillary one only adds annotations
		assert.Equal(t, "1.0", device.SwVersion)
		assert.Equal(t, providerX, device.ProviderID)
		assert.Equal(t, map[string]string{"name": "edge", "rack": "r1"}, device.Annotations)
	})
}

func TestApplyIfNewer(t *testing.T) {
	t.Run("With the same update applied twice", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		stamp := timestamp.NewMastershipBased(1, 1)

		deliverDeviceUpdate(t, node.store, providerX, description("1.0"), stamp)
		deliverDeviceUpdate(t, node.store, providerX, description("1.0"), stamp)

		assert.Equal(t, []EventType{DeviceAdded}, node.events.types())
		assert.Equal(t, 1, node.store.DeviceCount())
	})
	t.Run("With updates applied in any order", func(t *testing.T) {
		updates := []struct {
			version string
			stamp   timestamp.Timestamp
		}{
			{"1.0", timestamp.NewMastershipBased(1, 1)},
			{"2.0", timestamp.NewMastershipBased(1, 2)},
			{"3.0", timestamp.NewMastershipBased(2, 0)},
		}
		orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
		for _, order := range orders {
			node := newTestCluster(t, "a")[0]
			for _, index := range order {
				deliverDeviceUpdate(t, node.store, providerX, description(updates[index].version), updates[index].stamp)
			}
			device, ok := node.store.Device(deviceID)
			require.True(t, ok)
			assert.Equal(t, "3.0", device.SwVersion, "order %v", order)
		}
	})
	t.Run("With equal timestamps and different content", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		stamp := timestamp.NewMastershipBased(1, 1)

		deliverDeviceUpdate(t, node.store, providerX, description("1.0"), stamp)
		deliverDeviceUpdate(t, node.store, providerX, description("2.0"), stamp)

		device, ok := node.store.Device(deviceID)
		require.True(t, ok)
		assert.Equal(t, "1.0", device.SwVersion)
		assert.Equal(t, []EventType{DeviceAdded}, node.events.types())
	})
	t.Run("With a timestamp of another kind", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]

		deliverDeviceUpdate(t, node.store, providerX, description("1.0"), timestamp.NewMastershipBased(1, 1))
		deliverDeviceUpdate(t, node.store, providerX, description("2.0"), timestamp.WallClock{Millis: 1 << 40})

		device, ok := node.store.Device(deviceID)
		require.True(t, ok)
		assert.Equal(t, "1.0", device.SwVersion)
	})
	t.Run("With a malformed message", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		assert.NotPanics(t, func() {
			node.store.handleDeviceUpdate(context.Background(), &cluster.Message{Sender: "peer", Subject: cluster.SubjectDeviceUpdate, Payload: []byte{0xff, 0x01}})
		})
		assert.Zero(t, node.store.DeviceCount())
	})
}

func TestPorts(t *testing.T) {
	ports := []PortDescription{
		{Number: 1, Enabled: true, Type: "COPPER", Speed: 1000},
		{Number: 2, Enabled: true, Type: "COPPER", Speed: 1000},
	}

	t.Run("With the ports of an unknown device", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		events, err := node.store.UpdatePorts(context.Background(), providerX, deviceID, ports)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Empty(t, node.store.Ports(deviceID))
	})
	t.Run("With ports added, updated and removed", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)

		node.clock.set(1, 2)
		events, err := node.store.UpdatePorts(ctx, providerX, deviceID, ports)
		require.NoError(t, err)
		require.Len(t, events, 2)
		for _, event := range events {
			assert.Equal(t, PortAdded, event.Type)
		}
		require.Len(t, node.store.Ports(deviceID), 2)

		node.clock.set(1, 3)
		events, err = node.store.UpdatePortStatus(ctx, providerX, deviceID, PortDescription{Number: 1, Enabled: false, Type: "COPPER", Speed: 1000})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, PortUpdated, events[0].Type)
		port, ok := node.store.Port(deviceID, 1)
		require.True(t, ok)
		assert.False(t, port.Enabled)

		node.clock.set(1, 4)
		events, err = node.store.UpdatePorts(ctx, providerX, deviceID, ports[:1])
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, PortUpdated, events[0].Type)
		assert.Equal(t, PortRemoved, events[1].Type)
		assert.Equal(t, element.PortNumber(2), events[1].Port.Number)

		_, ok = node.store.Port(deviceID, 2)
		assert.False(t, ok)
		desc, ok := node.store.PortDescription(providerX, deviceID, 2)
		require.True(t, ok)
		assert.True(t, desc.Value.Removed)
	})
	t.Run("With port numbers beyond the int range", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		node.clock.set(1, 2)
		_, err = node.store.UpdatePorts(ctx, providerX, deviceID, []PortDescription{
			{Number: 2, Enabled: true},
			{Number: 0xFFFFFFFFFFFFFFFE, Enabled: true},
			{Number: 1, Enabled: true},
		})
		require.NoError(t, err)

		actual := node.store.Ports(deviceID)
		numbers := make([]element.PortNumber, 0, len(actual))
		for _, port := range actual {
			numbers = append(numbers, port.Number)
		}
		assert.Equal(t, []element.PortNumber{1, 2, 0xFFFFFFFFFFFFFFFE}, numbers)
	})
	t.Run("With the same port status twice", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		node.clock.set(1, 2)
		_, err = node.store.UpdatePorts(ctx, providerX, deviceID, ports)
		require.NoError(t, err)

		// a status applied with an older stamp than the stored one is stale
		node.clock.set(1, 1)
		events, err := node.store.UpdatePortStatus(ctx, providerX, deviceID, PortDescription{Number: 1, Enabled: false})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestAvailability(t *testing.T) {
	t.Run("With the device marked offline then online", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)

		node.clock.set(1, 2)
		events, err := node.store.MarkOffline(ctx, deviceID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, DeviceAvailabilityChanged, events[0].Type)
		assert.False(t, node.store.IsAvailable(deviceID))
		assert.Empty(t, node.store.AvailableDevices())

		// an offline marker older than the device fragment is ignored
		node.clock.set(1, 1)
		events, err = node.store.MarkOffline(ctx, deviceID)
		require.NoError(t, err)
		assert.Empty(t, events)

		node.clock.set(1, 3)
		changed, err := node.store.MarkOnline(ctx, deviceID)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, node.store.IsAvailable(deviceID))
	})
	t.Run("With an unknown device", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		_, err := node.store.MarkOnline(context.Background(), deviceID)
		require.ErrorIs(t, err, gerrors.ErrDeviceNotFound)
	})
	t.Run("With the offline marker replicated", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()

		_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return b.store.IsAvailable(deviceID) }, waitFor, tick)

		a.clock.set(1, 2)
		_, err = a.store.MarkOffline(ctx, deviceID)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return !b.store.IsAvailable(deviceID) }, waitFor, tick)
		assert.Equal(t, []EventType{DeviceAdded, DeviceAvailabilityChanged}, b.events.types())
	})
}

func TestRemoveDevice(t *testing.T) {
	t.Run("With the local node taking the role temporarily", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		_, err := node.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)

		node.clock.set(1, 5)
		events, err := node.store.RemoveDevice(ctx, deviceID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, DeviceRemoved, events[0].Type)
		assert.Zero(t, node.store.DeviceCount())
		assert.False(t, node.store.IsAvailable(deviceID))
		assert.EqualValues(t, 1, node.mastership.relinquished.Load())

		_, ok := node.mastership.MasterFor(deviceID)
		assert.False(t, ok)
	})
	t.Run("With updates older than the removal", func(t *testing.T) {
		node := newTestCluster(t, "a")[0]
		ctx := context.Background()

		deliverDeviceUpdate(t, node.store, providerX, description("1.0"), timestamp.NewMastershipBased(1, 1))
		node.clock.set(1, 5)
		_, err := node.store.RemoveDevice(ctx, deviceID)
		require.NoError(t, err)

		deliverDeviceUpdate(t, node.store, providerX, description("2.0"), timestamp.NewMastershipBased(1, 4))
		assert.Zero(t, node.store.DeviceCount())

		deliverDeviceUpdate(t, node.store, providerX, description("3.0"), timestamp.NewMastershipBased(1, 6))
		device, ok := node.store.Device(deviceID)
		require.True(t, ok)
		assert.Equal(t, "3.0", device.SwVersion)
		assert.Equal(t, []EventType{DeviceAdded, DeviceRemoved, DeviceAdded}, node.events.types())
	})
	t.Run("With the request forwarded to the master", func(t *testing.T) {
		nodes := newTestCluster(t, "a", "b")
		a, b := nodes[0], nodes[1]
		ctx := context.Background()

		a.mastership.assign(deviceID, a.id)
		_, err := a.store.CreateOrUpdateDevice(ctx, providerX, deviceID, description("1.0"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return b.store.DeviceCount() == 1 }, waitFor, tick)

		a.clock.set(1, 2)
		events, err := b.store.RemoveDevice(ctx, deviceID)
		require.NoError(t, err)
		assert.Empty(t, events)

		require.Eventually(t, func() bool { return a.store.DeviceCount() == 0 }, waitFor, tick)
		require.Eventually(t, func() bool { return b.store.DeviceCount() == 0 }, waitFor, tick)
	})
}

func TestFanOut(t *testing.T) {
	fanOut, ok := ParseFanOut("ALL")
	require.True(t, ok)
	assert.Equal(t, AllPeers, fanOut)
	assert.Equal(t, "all", fanOut.String())

	fanOut, ok = ParseFanOut("")
	require.True(t, ok)
	assert.Equal(t, RandomPeer, fanOut)
	assert.Equal(t, "random", fanOut.String())

	_, ok = ParseFanOut("some")
	assert.False(t, ok)
}
