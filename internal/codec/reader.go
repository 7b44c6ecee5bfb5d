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
	"errors"
	"fmt"
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	gerrors "github.com/tochemey/netsync/errors"
)

// Reader walks the fields of a protobuf encoded buffer.
//
//	for r.Next() {
//		switch r.Field() {
//		case 1:
//			name = r.Text()
//		default:
//			r.Skip()
//		}
//	}
//	if err := r.Err(); err != nil { ... }
//
// The first decoding failure stops the iteration and is reported by Err.
type Reader struct {
	buf      []byte
	field    protowire.Number
	wireType protowire.Type
	err      error
}

// NewReader creates a Reader over buf
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next advances to the next field. It returns false at the end of the buffer or on error.
func (r *Reader) Next() bool {
	if r.err != nil || len(r.buf) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return false
	}
	r.buf = r.buf[n:]
	r.field = num
	r.wireType = typ
	return true
}

// Field returns the number of the current field
func (r *Reader) Field() protowire.Number {
	return r.field
}

// Err returns the first decoding error
func (r *Reader) Err() error {
	return r.err
}

// Uint64 consumes a varint field
func (r *Reader) Uint64() uint64 {
	if !r.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

// Int64 consumes a zigzag encoded varint field
func (r *Reader) Int64() int64 {
	return protowire.DecodeZigZag(r.Uint64())
}

// Bool consumes a boolean field
func (r *Reader) Bool() bool {
	return protowire.DecodeBool(r.Uint64())
}

// Float64 consumes a fixed64 field
func (r *Reader) Float64() float64 {
	if !r.expect(protowire.Fixed64Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed64(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return 0
	}
	r.buf = r.buf[n:]
	return math.Float64frombits(v)
}

// Bytes consumes a length-delimited field. The returned slice aliases the buffer.
func (r *Reader) Bytes() []byte {
	if !r.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return nil
	}
	r.buf = r.buf[n:]
	return v
}

// Text consumes a length-delimited string field
func (r *Reader) Text() string {
	return string(r.Bytes())
}

// Message consumes a nested message and returns a Reader over it.
// Errors of the nested Reader are not propagated; callers check both.
func (r *Reader) Message() *Reader {
	return NewReader(r.Bytes())
}

// Nested consumes a nested message and decodes it with fn.
// An error of the nested decoding is reported by the parent Reader.
func (r *Reader) Nested(fn func(*Reader)) {
	nested := r.Message()
	if r.err != nil {
		return
	}
	fn(nested)
	if nested.err != nil {
		r.fail(nested.err)
	}
}

// StringMapEntry decodes one entry written by Writer.StringMap into m
func (r *Reader) StringMapEntry(m map[string]string) {
	r.Nested(func(entry *Reader) {
		var key, value string
		for entry.Next() {
			switch entry.Field() {
			case 1:
				key = entry.Text()
			case 2:
				value = entry.Text()
			default:
				entry.Skip()
			}
		}
		m[key] = value
	})
}

// Skip consumes the current field whatever its type
func (r *Reader) Skip() {
	n := protowire.ConsumeFieldValue(r.field, r.wireType, r.buf)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return
	}
	r.buf = r.buf[n:]
}

// Fail records a semantic decoding error
func (r *Reader) Fail(err error) {
	r.fail(err)
}

func (r *Reader) expect(typ protowire.Type) bool {
	if r.err != nil {
		return false
	}
	if r.wireType != typ {
		r.fail(fmt.Errorf("field %d: wire type %d, want %d", r.field, r.wireType, typ))
		return false
	}
	return true
}

func (r *Reader) fail(err error) {
	if r.err != nil {
		return
	}
	if !errors.Is(err, gerrors.ErrInvalidMessage) {
		err = gerrors.NewErrInvalidMessage(err)
	}
	r.err = err
	r.buf = nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
