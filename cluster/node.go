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

package cluster

import (
	"net"
	"strconv"
)

// NodeID identifies one controller replica. It is immutable for the lifetime of the process.
type NodeID string

// String implements fmt.Stringer
func (id NodeID) String() string {
	return string(id)
}

// ControllerNode is a cluster member and the address its transport listens on
type ControllerNode struct {
	ID   NodeID
	Host string
	Port int
}

// Address returns the host:port form of the node address
func (n ControllerNode) Address() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// String implements fmt.Stringer
func (n ControllerNode) String() string {
	return string(n.ID) + "@" + n.Address()
}
