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

package memberlist

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/discovery/static"
	"github.com/tochemey/netsync/log"
)

type inbox struct {
	mu       sync.Mutex
	messages []*cluster.Message
}

func (i *inbox) handle(_ context.Context, msg *cluster.Message) {
	i.mu.Lock()
	i.messages = append(i.messages, msg)
	i.mu.Unlock()
}

func (i *inbox) received() []*cluster.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*cluster.Message(nil), i.messages...)
}

func startNode(t *testing.T, id cluster.NodeID, port int, seeds ...string) *Communicator {
	t.Helper()
	opts := []Option{WithJoinRetry(3, 200*time.Millisecond), WithJoinTimeout(5 * time.Second)}
	if len(seeds) > 0 {
		opts = append(opts, WithDiscovery(static.NewDiscovery(&static.Config{Hosts: seeds})))
	}
	communicator := NewCommunicator(cluster.ControllerNode{ID: id, Host: "127.0.0.1", Port: port}, opts...)
	require.NoError(t, communicator.Start(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, communicator.Stop(context.Background()))
	})
	return communicator
}

func TestCommunicator(t *testing.T) {
	ports := dynaport.Get(2)
	seed := net.JoinHostPort("127.0.0.1", strconv.Itoa(ports[0]))

	a := startNode(t, "node-a", ports[0], seed)
	b := startNode(t, "node-b", ports[1], seed)

	require.Eventually(t, func() bool {
		return len(a.Nodes()) == 2 && len(b.Nodes()) == 2
	}, 5*time.Second, 50*time.Millisecond)

	t.Run("With local node", func(t *testing.T) {
		local := a.LocalNode()
		assert.Equal(t, cluster.NodeID("node-a"), local.ID)
		assert.Equal(t, "127.0.0.1", local.Host)
		assert.Equal(t, ports[0], local.Port)
		assert.Len(t, cluster.Peers(a), 1)
	})
	t.Run("With Unicast", func(t *testing.T) {
		received := new(inbox)
		b.Subscribe("unicast", received.handle)
		defer b.Unsubscribe("unicast")

		msg := &cluster.Message{Sender: "node-a", Subject: "unicast", Payload: []byte("hello")}
		require.NoError(t, a.Unicast(context.Background(), "node-b", msg))

		require.Eventually(t, func() bool { return len(received.received()) == 1 }, 5*time.Second, 20*time.Millisecond)
		assert.Equal(t, msg, received.received()[0])
	})
	t.Run("With Broadcast", func(t *testing.T) {
		atB := new(inbox)
		atA := new(inbox)
		b.Subscribe("broadcast", atB.handle)
		a.Subscribe("broadcast", atA.handle)
		defer b.Unsubscribe("broadcast")
		defer a.Unsubscribe("broadcast")

		msg := &cluster.Message{Sender: "node-a", Subject: "broadcast", Payload: []byte("all")}
		require.NoError(t, a.Broadcast(context.Background(), msg))

		require.Eventually(t, func() bool { return len(atB.received()) == 1 }, 5*time.Second, 20*time.Millisecond)
		assert.Empty(t, atA.received())
	})
	t.Run("With an unknown node", func(t *testing.T) {
		err := a.Unicast(context.Background(), "node-z", &cluster.Message{Subject: "unicast"})
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})
	t.Run("With a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := a.Broadcast(ctx, &cluster.Message{Subject: "broadcast"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCommunicatorNotStarted(t *testing.T) {
	communicator := NewCommunicator(cluster.ControllerNode{ID: "node-a", Host: "127.0.0.1", Port: dynaport.Get(1)[0]})

	err := communicator.Unicast(context.Background(), "node-b", &cluster.Message{Subject: "x"})
	assert.ErrorIs(t, err, gerrors.ErrTransportNotStarted)
	err = communicator.Broadcast(context.Background(), &cluster.Message{Subject: "x"})
	assert.ErrorIs(t, err, gerrors.ErrTransportNotStarted)

	assert.Equal(t, []cluster.ControllerNode{communicator.LocalNode()}, communicator.Nodes())
	assert.NoError(t, communicator.Stop(context.Background()))
}

func TestLogWriter(t *testing.T) {
	buffer := new(bytes.Buffer)
	writer := newLogWriter(log.NewZap(log.DebugLevel, buffer))

	t.Run("With a tagged line", func(t *testing.T) {
		buffer.Reset()
		line := []byte("2024/01/01 00:00:00 [WARN] memberlist: Was able to connect to node-b over TCP\n")
		n, err := writer.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
		assert.Contains(t, buffer.String(), "Was able to connect to node-b over TCP")
		assert.Contains(t, buffer.String(), `"level":"warn"`)
	})
	t.Run("With an ERR line", func(t *testing.T) {
		buffer.Reset()
		_, err := writer.Write([]byte("[ERR] memberlist: Failed to send ping"))
		require.NoError(t, err)
		assert.Contains(t, buffer.String(), `"level":"error"`)
	})
	t.Run("With an untagged line", func(t *testing.T) {
		buffer.Reset()
		_, err := writer.Write([]byte("just noise"))
		require.NoError(t, err)
		assert.Empty(t, buffer.String())
	})
}
