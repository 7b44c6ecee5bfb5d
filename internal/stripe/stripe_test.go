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

package stripe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocks(t *testing.T) {
	t.Run("With the default size", func(t *testing.T) {
		locks := New(0)
		assert.Equal(t, DefaultStripes, locks.Len())
	})
	t.Run("With the same key", func(t *testing.T) {
		locks := New(8)
		require.Same(t, locks.For("of:1"), locks.For("of:1"))
	})
	t.Run("With concurrent writers", func(t *testing.T) {
		locks := New(4)
		counters := make(map[string]int)
		keys := []string{"a", "b", "c", "d", "e"}

		// every key maps to one stripe, and the map itself is guarded by a dedicated lock
		var mapLock sync.Mutex
		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := keys[i%len(keys)]
				lock := locks.For(key)
				lock.Lock()
				mapLock.Lock()
				counters[key]++
				mapLock.Unlock()
				lock.Unlock()
			}()
		}
		wg.Wait()
		for _, key := range keys {
			assert.Equal(t, 20, counters[key])
		}
	})
}
