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

package static

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/netsync/discovery"
)

func TestDiscovery(t *testing.T) {
	t.Run("With ID assertion", func(t *testing.T) {
		provider := NewDiscovery(&Config{})
		require.NotNil(t, provider)
		assert.Equal(t, "static", provider.ID())
	})
	t.Run("With a full lifecycle", func(t *testing.T) {
		hosts := []string{"127.0.0.1:7946", "127.0.0.2:7946"}
		provider := NewDiscovery(&Config{Hosts: hosts})

		require.NoError(t, provider.Initialize())
		require.NoError(t, provider.Register())

		peers, err := provider.DiscoverPeers()
		require.NoError(t, err)
		assert.Equal(t, hosts, peers)

		require.NoError(t, provider.Deregister())
		_, err = provider.DiscoverPeers()
		assert.ErrorIs(t, err, discovery.ErrNotRegistered)
	})
	t.Run("With DiscoverPeers before Initialize", func(t *testing.T) {
		provider := NewDiscovery(&Config{Hosts: []string{"127.0.0.1:7946"}})
		_, err := provider.DiscoverPeers()
		assert.ErrorIs(t, err, discovery.ErrNotInitialized)
	})
	t.Run("With Initialize twice", func(t *testing.T) {
		provider := NewDiscovery(&Config{Hosts: []string{"127.0.0.1:7946"}})
		require.NoError(t, provider.Initialize())
		assert.ErrorIs(t, provider.Initialize(), discovery.ErrAlreadyInitialized)
	})
	t.Run("With Register twice", func(t *testing.T) {
		provider := NewDiscovery(&Config{Hosts: []string{"127.0.0.1:7946"}})
		require.NoError(t, provider.Initialize())
		require.NoError(t, provider.Register())
		assert.ErrorIs(t, provider.Register(), discovery.ErrAlreadyRegistered)
	})
	t.Run("With Deregister when not registered", func(t *testing.T) {
		provider := NewDiscovery(&Config{Hosts: []string{"127.0.0.1:7946"}})
		assert.ErrorIs(t, provider.Deregister(), discovery.ErrNotRegistered)
	})
	t.Run("With invalid config", func(t *testing.T) {
		assert.Error(t, NewDiscovery(&Config{}).Initialize())
		assert.Error(t, NewDiscovery(&Config{Hosts: []string{"localhost"}}).Initialize())
		assert.Error(t, NewDiscovery(&Config{Hosts: []string{"127.0.0.1:0"}}).Initialize())
	})
}
