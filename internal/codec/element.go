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
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/timestamp"
)

// WriteTimestamp writes ts as a nested {1: kind, 2: millis or term, 3: sequence} message
func WriteTimestamp(w *Writer, field protowire.Number, ts timestamp.Timestamp) {
	w.Message(field, func(nested *Writer) {
		switch v := ts.(type) {
		case timestamp.WallClock:
			nested.Uint64(1, uint64(timestamp.KindWallClock)).Uint64(2, v.Millis)
		case timestamp.MastershipBased:
			nested.Uint64(1, uint64(timestamp.KindMastership)).Uint64(2, v.Term).Uint64(3, v.Sequence)
		}
	})
}

// ReadTimestamp decodes a timestamp written by WriteTimestamp
func ReadTimestamp(r *Reader) timestamp.Timestamp {
	var ts timestamp.Timestamp
	r.Nested(func(nested *Reader) {
		var kind, first, second uint64
		for nested.Next() {
			switch nested.Field() {
			case 1:
				kind = nested.Uint64()
			case 2:
				first = nested.Uint64()
			case 3:
				second = nested.Uint64()
			default:
				nested.Skip()
			}
		}
		switch timestamp.Kind(kind) {
		case timestamp.KindWallClock:
			ts = timestamp.WallClock{Millis: first}
		case timestamp.KindMastership:
			ts = timestamp.NewMastershipBased(first, second)
		default:
			nested.Fail(fmt.Errorf("unknown timestamp kind %d", kind))
		}
	})
	return ts
}

// WriteProviderID writes the provider id as a nested message
func WriteProviderID(w *Writer, field protowire.Number, id element.ProviderID) {
	w.Message(field, func(nested *Writer) {
		nested.Text(1, id.Scheme).Text(2, id.ID).Bool(3, id.Ancillary)
	})
}

// ReadProviderID decodes a provider id written by WriteProviderID
func ReadProviderID(r *Reader) element.ProviderID {
	var id element.ProviderID
	r.Nested(func(nested *Reader) {
		for nested.Next() {
			switch nested.Field() {
			case 1:
				id.Scheme = nested.Text()
			case 2:
				id.ID = nested.Text()
			case 3:
				id.Ancillary = nested.Bool()
			default:
				nested.Skip()
			}
		}
	})
	return id
}

// WriteDeviceFragmentID writes the fragment id as a nested message
func WriteDeviceFragmentID(w *Writer, field protowire.Number, id element.DeviceFragmentID) {
	w.Message(field, func(nested *Writer) {
		nested.Text(1, string(id.DeviceID))
		WriteProviderID(nested, 2, id.ProviderID)
	})
}

// ReadDeviceFragmentID decodes a fragment id written by WriteDeviceFragmentID
func ReadDeviceFragmentID(r *Reader) element.DeviceFragmentID {
	var id element.DeviceFragmentID
	r.Nested(func(nested *Reader) {
		for nested.Next() {
			switch nested.Field() {
			case 1:
				id.DeviceID = element.DeviceID(nested.Text())
			case 2:
				id.ProviderID = ReadProviderID(nested)
			default:
				nested.Skip()
			}
		}
	})
	return id
}

// WritePortFragmentID writes the fragment id as a nested message
func WritePortFragmentID(w *Writer, field protowire.Number, id element.PortFragmentID) {
	w.Message(field, func(nested *Writer) {
		nested.Text(1, string(id.DeviceID))
		WriteProviderID(nested, 2, id.ProviderID)
		nested.Uint64(3, uint64(id.PortNumber))
	})
}

// ReadPortFragmentID decodes a fragment id written by WritePortFragmentID
func ReadPortFragmentID(r *Reader) element.PortFragmentID {
	var id element.PortFragmentID
	r.Nested(func(nested *Reader) {
		for nested.Next() {
			switch nested.Field() {
			case 1:
				id.DeviceID = element.DeviceID(nested.Text())
			case 2:
				id.ProviderID = ReadProviderID(nested)
			case 3:
				id.PortNumber = element.PortNumber(nested.Uint64())
			default:
				nested.Skip()
			}
		}
	})
	return id
}
