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
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Writer appends protobuf fields to a buffer. Zero values are written like any other value.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded fields
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Uint64 writes a varint field
func (w *Writer) Uint64(field protowire.Number, v uint64) *Writer {
	w.buf = protowire.AppendTag(w.buf, field, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
	return w
}

// Int64 writes a zigzag encoded varint field
func (w *Writer) Int64(field protowire.Number, v int64) *Writer {
	return w.Uint64(field, protowire.EncodeZigZag(v))
}

// Bool writes a boolean field
func (w *Writer) Bool(field protowire.Number, v bool) *Writer {
	return w.Uint64(field, protowire.EncodeBool(v))
}

// Float64 writes a fixed64 field
func (w *Writer) Float64(field protowire.Number, v float64) *Writer {
	w.buf = protowire.AppendTag(w.buf, field, protowire.Fixed64Type)
	w.buf = protowire.AppendFixed64(w.buf, math.Float64bits(v))
	return w
}

// Text writes a length-delimited string field
func (w *Writer) Text(field protowire.Number, v string) *Writer {
	w.buf = protowire.AppendTag(w.buf, field, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
	return w
}

// RawBytes writes a length-delimited bytes field
func (w *Writer) RawBytes(field protowire.Number, v []byte) *Writer {
	w.buf = protowire.AppendTag(w.buf, field, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
	return w
}

// Message writes a nested message built by fn
func (w *Writer) Message(field protowire.Number, fn func(*Writer)) *Writer {
	nested := NewWriter()
	fn(nested)
	return w.RawBytes(field, nested.Bytes())
}

// StringMap writes every entry of the map as a nested {1: key, 2: value} message.
// Entries are written in sorted key order so that equal maps encode identically.
func (w *Writer) StringMap(field protowire.Number, m map[string]string) *Writer {
	for _, k := range sortedKeys(m) {
		w.Message(field, func(entry *Writer) {
			entry.Text(1, k).Text(2, m[k])
		})
	}
	return w
}
