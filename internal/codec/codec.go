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

// Package codec implements the schema-explicit wire format of cluster messages.
//
// A payload is a one byte frame flag followed by a protobuf encoded envelope:
//
//	envelope { 1: version, 2: kind, 3: body (bytes) }
//
// Bodies are written with field numbers chosen per message kind. Bodies larger
// than the compression threshold are zstd compressed, which the frame flag records.
package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/internal/compression"
)

// Version is the wire version written by this build
const Version uint64 = 1

// CompressionThreshold is the envelope size above which payloads are compressed
const CompressionThreshold = 1024

const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

const (
	envelopeVersion protowire.Number = 1
	envelopeKind    protowire.Number = 2
	envelopeBody    protowire.Number = 3
)

// Kind tags the message kind carried by an envelope
type Kind uint32

const (
	// KindUnknown is never written
	KindUnknown Kind = iota
	KindMastershipUpdate
	KindStandbyRequest
	KindAdvertisement
	KindDeviceUpdate
	KindPortUpdate
	KindPortStatusUpdate
	KindDeviceOffline
	KindDeviceRemoved
	KindDeviceRemoveRequest
	KindFragmentRequest
	KindFragmentResponse
	KindHostUpdate
	KindHostRemoved
	KindHostAdvertisement
)

// Marshal frames the body written by the Writer into an envelope of the given kind
func Marshal(kind Kind, body *Writer) ([]byte, error) {
	var envelope []byte
	envelope = protowire.AppendTag(envelope, envelopeVersion, protowire.VarintType)
	envelope = protowire.AppendVarint(envelope, Version)
	envelope = protowire.AppendTag(envelope, envelopeKind, protowire.VarintType)
	envelope = protowire.AppendVarint(envelope, uint64(kind))
	envelope = protowire.AppendTag(envelope, envelopeBody, protowire.BytesType)
	envelope = protowire.AppendBytes(envelope, body.Bytes())

	if len(envelope) <= CompressionThreshold {
		return append([]byte{frameRaw}, envelope...), nil
	}

	compressed, err := compression.ZstdCompress(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return append([]byte{frameZstd}, compressed...), nil
}

// Unmarshal opens an envelope and returns its kind and a Reader over its body.
// It fails with ErrUnsupportedVersion for envelopes written by a newer wire version.
func Unmarshal(payload []byte) (Kind, *Reader, error) {
	if len(payload) == 0 {
		return KindUnknown, nil, gerrors.NewErrInvalidMessage(fmt.Errorf("empty payload"))
	}

	envelope := payload[1:]
	switch payload[0] {
	case frameRaw:
	case frameZstd:
		decompressed, err := compression.ZstdDecompress(envelope)
		if err != nil {
			return KindUnknown, nil, gerrors.NewErrInvalidMessage(err)
		}
		envelope = decompressed
	default:
		return KindUnknown, nil, gerrors.NewErrInvalidMessage(fmt.Errorf("unknown frame flag %d", payload[0]))
	}

	var (
		version uint64
		kind    Kind
		body    []byte
	)

	reader := NewReader(envelope)
	for reader.Next() {
		switch reader.Field() {
		case envelopeVersion:
			version = reader.Uint64()
		case envelopeKind:
			kind = Kind(reader.Uint64())
		case envelopeBody:
			body = reader.Bytes()
		default:
			reader.Skip()
		}
	}

	if err := reader.Err(); err != nil {
		return KindUnknown, nil, err
	}

	if version == 0 || version > Version {
		return KindUnknown, nil, gerrors.NewErrUnsupportedVersion(version)
	}

	if kind == KindUnknown {
		return KindUnknown, nil, gerrors.NewErrInvalidMessage(fmt.Errorf("missing message kind"))
	}

	return kind, NewReader(body), nil
}

// Expect opens an envelope and checks that it carries the expected kind
func Expect(payload []byte, expected Kind) (*Reader, error) {
	kind, reader, err := Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	if kind != expected {
		return nil, gerrors.NewErrInvalidMessage(fmt.Errorf("unexpected message kind %d, want %d", kind, expected))
	}
	return reader, nil
}
