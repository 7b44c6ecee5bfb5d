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

package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/timestamp"
)

func TestEnvelope(t *testing.T) {
	t.Run("With small payload", func(t *testing.T) {
		body := NewWriter().Text(1, "of:1").Uint64(2, 42).Bool(3, true).Int64(4, -7).Float64(5, 1.5)
		payload, err := Marshal(KindDeviceUpdate, body)
		require.NoError(t, err)
		assert.Equal(t, frameRaw, payload[0])

		kind, reader, err := Unmarshal(payload)
		require.NoError(t, err)
		assert.Equal(t, KindDeviceUpdate, kind)

		var (
			name    string
			number  uint64
			flag    bool
			signed  int64
			decimal float64
		)
		for reader.Next() {
			switch reader.Field() {
			case 1:
				name = reader.Text()
			case 2:
				number = reader.Uint64()
			case 3:
				flag = reader.Bool()
			case 4:
				signed = reader.Int64()
			case 5:
				decimal = reader.Float64()
			default:
				reader.Skip()
			}
		}
		require.NoError(t, reader.Err())
		assert.Equal(t, "of:1", name)
		assert.EqualValues(t, 42, number)
		assert.True(t, flag)
		assert.EqualValues(t, -7, signed)
		assert.Equal(t, 1.5, decimal)
	})
	t.Run("With large payload compressed", func(t *testing.T) {
		large := strings.Repeat("annotation;", 500)
		payload, err := Marshal(KindAdvertisement, NewWriter().Text(1, large))
		require.NoError(t, err)
		assert.Equal(t, frameZstd, payload[0])
		assert.Less(t, len(payload), len(large))

		reader, err := Expect(payload, KindAdvertisement)
		require.NoError(t, err)
		require.True(t, reader.Next())
		assert.Equal(t, large, reader.Text())
	})
	t.Run("With unexpected kind", func(t *testing.T) {
		payload, err := Marshal(KindHostUpdate, NewWriter())
		require.NoError(t, err)
		_, err = Expect(payload, KindHostRemoved)
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
	t.Run("With unsupported version", func(t *testing.T) {
		var envelope []byte
		envelope = protowire.AppendTag(envelope, envelopeVersion, protowire.VarintType)
		envelope = protowire.AppendVarint(envelope, Version+1)
		envelope = protowire.AppendTag(envelope, envelopeKind, protowire.VarintType)
		envelope = protowire.AppendVarint(envelope, uint64(KindDeviceUpdate))
		_, _, err := Unmarshal(append([]byte{frameRaw}, envelope...))
		assert.ErrorIs(t, err, gerrors.ErrUnsupportedVersion)
	})
	t.Run("With malformed payloads", func(t *testing.T) {
		_, _, err := Unmarshal(nil)
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)

		_, _, err = Unmarshal([]byte{9, 1, 2})
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)

		_, _, err = Unmarshal([]byte{frameZstd, 1, 2, 3})
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)

		_, _, err = Unmarshal([]byte{frameRaw, 0xff, 0xff})
		assert.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
	t.Run("With unknown fields skipped", func(t *testing.T) {
		body := NewWriter().Text(99, "future").Uint64(1, 5).Message(50, func(w *Writer) { w.Uint64(1, 1) })
		reader := NewReader(body.Bytes())
		var value uint64
		for reader.Next() {
			switch reader.Field() {
			case 1:
				value = reader.Uint64()
			default:
				reader.Skip()
			}
		}
		require.NoError(t, reader.Err())
		assert.EqualValues(t, 5, value)
	})
	t.Run("With wrong wire type", func(t *testing.T) {
		reader := NewReader(NewWriter().Text(1, "text").Bytes())
		require.True(t, reader.Next())
		_ = reader.Uint64()
		assert.ErrorIs(t, reader.Err(), gerrors.ErrInvalidMessage)
		assert.False(t, reader.Next())
	})
}

func TestStringMap(t *testing.T) {
	annotations := map[string]string{"b": "2", "a": "1", "c": ""}
	first := NewWriter().StringMap(1, annotations).Bytes()
	second := NewWriter().StringMap(1, map[string]string{"c": "", "a": "1", "b": "2"}).Bytes()
	assert.True(t, bytes.Equal(first, second))

	decoded := make(map[string]string)
	reader := NewReader(first)
	for reader.Next() {
		reader.StringMapEntry(decoded)
	}
	require.NoError(t, reader.Err())
	assert.Equal(t, annotations, decoded)
}

func TestElementCodec(t *testing.T) {
	provider := element.NewAncillaryProviderID("netconf", "adapter-1")
	deviceFragment := element.DeviceFragmentID{DeviceID: "of:1", ProviderID: provider}
	portFragment := element.PortFragmentID{DeviceID: "of:1", ProviderID: provider, PortNumber: 7}

	w := NewWriter()
	WriteTimestamp(w, 1, timestamp.NewMastershipBased(3, 9))
	WriteTimestamp(w, 2, timestamp.WallClock{Millis: 1234})
	WriteDeviceFragmentID(w, 3, deviceFragment)
	WritePortFragmentID(w, 4, portFragment)

	var (
		mastership timestamp.Timestamp
		wall       timestamp.Timestamp
		decodedDev element.DeviceFragmentID
		decodedPrt element.PortFragmentID
	)
	reader := NewReader(w.Bytes())
	for reader.Next() {
		switch reader.Field() {
		case 1:
			mastership = ReadTimestamp(reader)
		case 2:
			wall = ReadTimestamp(reader)
		case 3:
			decodedDev = ReadDeviceFragmentID(reader)
		case 4:
			decodedPrt = ReadPortFragmentID(reader)
		}
	}
	require.NoError(t, reader.Err())
	assert.Equal(t, timestamp.NewMastershipBased(3, 9), mastership)
	assert.Equal(t, timestamp.WallClock{Millis: 1234}, wall)
	assert.Equal(t, deviceFragment, decodedDev)
	assert.Equal(t, portFragment, decodedPrt)

	t.Run("With unknown timestamp kind", func(t *testing.T) {
		bad := NewWriter().Message(1, func(w *Writer) { w.Uint64(1, 99) })
		reader := NewReader(bad.Bytes())
		require.True(t, reader.Next())
		ts := ReadTimestamp(reader)
		assert.Nil(t, ts)
		assert.ErrorIs(t, reader.Err(), gerrors.ErrInvalidMessage)
	})
}
