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

package event

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/netsync/log"
)

func TestListenerRegistry(t *testing.T) {
	t.Run("With fan out in registration order", func(t *testing.T) {
		registry := NewListenerRegistry[testEvent](log.DiscardLogger)
		var mu sync.Mutex
		var calls []string
		record := func(name string) ListenerFunc[testEvent] {
			return func(_ context.Context, _ testEvent) {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
			}
		}
		registry.AddListener(record("a"))
		registry.AddListener(record("b"))
		require.Equal(t, 2, registry.Len())

		registry.Process(context.Background(), newTestEvent("device", 1))
		assert.Equal(t, []string{"a", "b"}, calls)
	})
	t.Run("With a panicking listener the others are still notified", func(t *testing.T) {
		registry := NewListenerRegistry[testEvent](nil)
		notified := 0
		registry.AddListener(ListenerFunc[testEvent](func(context.Context, testEvent) { panic("boom") }))
		registry.AddListener(ListenerFunc[testEvent](func(context.Context, testEvent) { notified++ }))

		assert.NotPanics(t, func() {
			registry.Process(context.Background(), newTestEvent("device", 1))
			registry.Process(context.Background(), newTestEvent("device", 2))
		})
		assert.Equal(t, 2, notified)
	})
	t.Run("With listener removed", func(t *testing.T) {
		registry := NewListenerRegistry[testEvent](nil)
		notified := 0
		id := registry.AddListener(ListenerFunc[testEvent](func(context.Context, testEvent) { notified++ }))
		registry.RemoveListener(id)
		registry.RemoveListener("unknown")
		assert.Zero(t, registry.Len())

		registry.Process(context.Background(), newTestEvent("device", 1))
		assert.Zero(t, notified)
	})
	t.Run("With a cancelled context remaining listeners are skipped", func(t *testing.T) {
		registry := NewListenerRegistry[testEvent](nil)
		notified := 0
		registry.AddListener(ListenerFunc[testEvent](func(context.Context, testEvent) { notified++ }))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		registry.Process(ctx, newTestEvent("device", 1))
		assert.Zero(t, notified)
	})
}
