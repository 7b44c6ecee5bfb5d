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

package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
)

func TestCommunicator(t *testing.T) {
	ctx := context.Background()

	t.Run("With unicast and broadcast", func(t *testing.T) {
		hub := NewHub()
		first := hub.Join(cluster.ControllerNode{ID: "node-1"})
		second := hub.Join(cluster.ControllerNode{ID: "node-2"})
		third := hub.Join(cluster.ControllerNode{ID: "node-3"})
		for _, c := range []*Communicator{first, second, third} {
			require.NoError(t, c.Start(ctx))
		}

		received := atomic.NewInt32(0)
		handler := func(_ context.Context, msg *cluster.Message) {
			if msg.Sender == "node-1" && string(msg.Payload) == "hello" {
				received.Inc()
			}
		}
		second.Subscribe("greeting", handler)
		third.Subscribe("greeting", handler)

		msg := &cluster.Message{Sender: "node-1", Subject: "greeting", Payload: []byte("hello")}
		require.NoError(t, first.Unicast(ctx, "node-2", msg))
		require.Eventually(t, func() bool { return received.Load() == 1 }, time.Second, 10*time.Millisecond)

		require.NoError(t, first.Broadcast(ctx, msg))
		require.Eventually(t, func() bool { return received.Load() == 3 }, time.Second, 10*time.Millisecond)

		assert.Len(t, first.Nodes(), 3)
		assert.Len(t, cluster.Peers(first), 2)
		assert.Equal(t, cluster.NodeID("node-1"), first.LocalNode().ID)

		for _, c := range []*Communicator{first, second, third} {
			require.NoError(t, c.Stop(ctx))
		}
	})
	t.Run("With unknown or unreachable node", func(t *testing.T) {
		hub := NewHub()
		first := hub.Join(cluster.ControllerNode{ID: "node-1"})
		second := hub.Join(cluster.ControllerNode{ID: "node-2"})
		require.NoError(t, first.Start(ctx))
		require.NoError(t, second.Start(ctx))

		msg := &cluster.Message{Sender: "node-1", Subject: "greeting"}
		assert.ErrorIs(t, first.Unicast(ctx, "node-9", msg), gerrors.ErrNodeNotFound)

		second.SetReachable(false)
		assert.ErrorIs(t, first.Unicast(ctx, "node-2", msg), gerrors.ErrNodeNotFound)
		second.SetReachable(true)
		assert.NoError(t, first.Unicast(ctx, "node-2", msg))

		hub.Leave("node-2")
		assert.Len(t, first.Nodes(), 1)
		assert.Same(t, first, hub.Join(cluster.ControllerNode{ID: "node-1"}))

		require.NoError(t, first.Stop(ctx))
		require.NoError(t, second.Stop(ctx))
	})
	t.Run("With transport not started", func(t *testing.T) {
		hub := NewHub()
		first := hub.Join(cluster.ControllerNode{ID: "node-1"})
		msg := &cluster.Message{Sender: "node-1", Subject: "greeting"}
		assert.ErrorIs(t, first.Broadcast(ctx, msg), gerrors.ErrTransportNotStarted)
		assert.ErrorIs(t, first.Unicast(ctx, "node-1", msg), gerrors.ErrTransportNotStarted)
	})
}
