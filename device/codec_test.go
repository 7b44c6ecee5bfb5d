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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/timestamp"
)

func TestCodec(t *testing.T) {
	stamp := timestamp.NewMastershipBased(3, 7)
	port := PortDescription{Number: 4, Enabled: true, Type: "FIBER", Speed: 10000, Annotations: map[string]string{"portName": "eth4"}}

	t.Run("With a device update", func(t *testing.T) {
		update := &deviceUpdate{providerID: providerY, deviceID: deviceID, desc: Timestamped[Description]{Value: description("1.0"), Timestamp: stamp}}
		payload, err := encodeDeviceUpdate(update)
		require.NoError(t, err)

		actual, err := decodeDeviceUpdate(payload)
		require.NoError(t, err)
		assert.Equal(t, update.providerID, actual.providerID)
		assert.Equal(t, update.deviceID, actual.deviceID)
		assert.True(t, update.desc.Value.Equal(actual.desc.Value))
		assert.Equal(t, stamp, actual.desc.Timestamp)
	})
	t.Run("With a ports update", func(t *testing.T) {
		removed := PortDescription{Number: 5, Removed: true}
		payload, err := encodePortsUpdate(&portsUpdate{providerID: providerX, deviceID: deviceID, ports: []PortDescription{port, removed}, stamp: stamp})
		require.NoError(t, err)

		actual, err := decodePortsUpdate(payload)
		require.NoError(t, err)
		require.Len(t, actual.ports, 2)
		assert.True(t, port.Equal(actual.ports[0]))
		assert.True(t, actual.ports[1].Removed)
		assert.Equal(t, stamp, actual.stamp)
	})
	t.Run("With an offline marker decoded as a removal", func(t *testing.T) {
		payload, err := encodeDeviceStamp(codec.KindDeviceOffline, &deviceStamp{deviceID: deviceID, stamp: stamp})
		require.NoError(t, err)

		actual, err := decodeDeviceStamp(codec.KindDeviceOffline, payload)
		require.NoError(t, err)
		assert.Equal(t, deviceID, actual.deviceID)

		_, err = decodeDeviceStamp(codec.KindDeviceRemoved, payload)
		require.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
	t.Run("With an advertisement", func(t *testing.T) {
		ad := newAdvertisement("a")
		ad.Devices[element.DeviceFragmentID{DeviceID: deviceID, ProviderID: providerX}] = stamp
		ad.Ports[element.PortFragmentID{DeviceID: deviceID, ProviderID: providerX, PortNumber: 4}] = timestamp.NewMastershipBased(3, 8)
		ad.Offline[deviceID] = timestamp.NewMastershipBased(3, 9)

		payload, err := encodeAdvertisement(ad)
		require.NoError(t, err)
		actual, err := decodeAdvertisement(payload)
		require.NoError(t, err)
		assert.Equal(t, ad, actual)
	})
	t.Run("With a large advertisement", func(t *testing.T) {
		ad := newAdvertisement("a")
		for i := range 200 {
			ad.Ports[element.PortFragmentID{DeviceID: deviceID, ProviderID: providerX, PortNumber: element.PortNumber(i)}] = stamp
		}
		payload, err := encodeAdvertisement(ad)
		require.NoError(t, err)
		actual, err := decodeAdvertisement(payload)
		require.NoError(t, err)
		assert.Len(t, actual.Ports, 200)
	})
	t.Run("With a not found fragment response", func(t *testing.T) {
		id := element.PortFragmentID{DeviceID: deviceID, ProviderID: providerX, PortNumber: 4}
		payload, err := encodeFragmentResponse(&fragmentResponse{port: &id})
		require.NoError(t, err)

		actual, err := decodeFragmentResponse(payload)
		require.NoError(t, err)
		assert.False(t, actual.found)
		assert.Nil(t, actual.device)
		require.NotNil(t, actual.port)
		assert.Equal(t, id, *actual.port)
	})
	t.Run("With a found fragment response", func(t *testing.T) {
		id := element.PortFragmentID{DeviceID: deviceID, ProviderID: providerX, PortNumber: 4}
		payload, err := encodeFragmentResponse(&fragmentResponse{port: &id, found: true, portDesc: port, stamp: stamp})
		require.NoError(t, err)

		actual, err := decodeFragmentResponse(payload)
		require.NoError(t, err)
		assert.True(t, actual.found)
		assert.True(t, port.Equal(actual.portDesc))
		assert.Equal(t, stamp, actual.stamp)
	})
	t.Run("With a fragment response without fragment id", func(t *testing.T) {
		_, err := encodeFragmentResponse(&fragmentResponse{})
		require.Error(t, err)
	})
	t.Run("With a missing timestamp", func(t *testing.T) {
		payload, err := codec.Marshal(codec.KindDeviceUpdate, codec.NewWriter().Text(2, string(deviceID)))
		require.NoError(t, err)
		_, err = decodeDeviceUpdate(payload)
		require.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
}
