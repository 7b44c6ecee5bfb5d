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

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
)

// EncodeMessage writes the cluster message as {1: sender, 2: subject, 3: payload}.
// Transports that carry a single opaque buffer per datagram use it to keep the routing fields.
func EncodeMessage(msg *cluster.Message) []byte {
	return NewWriter().
		Text(1, string(msg.Sender)).
		Text(2, msg.Subject).
		RawBytes(3, msg.Payload).
		Bytes()
}

// DecodeMessage reads a message written by EncodeMessage
func DecodeMessage(buf []byte) (*cluster.Message, error) {
	msg := new(cluster.Message)
	reader := NewReader(buf)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			msg.Sender = cluster.NodeID(reader.Text())
		case 2:
			msg.Subject = reader.Text()
		case 3:
			msg.Payload = append([]byte(nil), reader.Bytes()...)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if msg.Subject == "" {
		return nil, gerrors.NewErrInvalidMessage(errors.New("missing subject"))
	}
	return msg, nil
}
