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
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticMembership struct {
	local ControllerNode
	nodes []ControllerNode
}

func (s staticMembership) LocalNode() ControllerNode { return s.local }
func (s staticMembership) Nodes() []ControllerNode   { return s.nodes }

func TestControllerNode(t *testing.T) {
	node := ControllerNode{ID: "node-1", Host: "127.0.0.1", Port: 7946}
	assert.Equal(t, "127.0.0.1:7946", node.Address())
	assert.Equal(t, "node-1@127.0.0.1:7946", node.String())
	assert.Equal(t, "node-1", node.ID.String())

	ipv6 := ControllerNode{ID: "node-2", Host: "::1", Port: 7946}
	assert.Equal(t, "[::1]:7946", ipv6.Address())
}

func TestPeers(t *testing.T) {
	a := ControllerNode{ID: "a"}
	b := ControllerNode{ID: "b"}
	c := ControllerNode{ID: "c"}
	membership := staticMembership{local: b, nodes: []ControllerNode{a, b, c}}
	assert.Equal(t, []ControllerNode{a, c}, Peers(membership))

	alone := staticMembership{local: a, nodes: []ControllerNode{a}}
	assert.Empty(t, Peers(alone))
}
