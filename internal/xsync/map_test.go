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

package xsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Run("With set get and delete", func(t *testing.T) {
		m := NewMap[string, int]()
		m.Set("a", 1)
		m.Set("b", 2)

		v, ok := m.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, m.Len())
		assert.ElementsMatch(t, []string{"a", "b"}, m.Keys())
		assert.ElementsMatch(t, []int{1, 2}, m.Values())

		m.Delete("a")
		_, ok = m.Get("a")
		assert.False(t, ok)

		sum := 0
		m.Range(func(_ string, v int) { sum += v })
		assert.Equal(t, 2, sum)

		m.Reset()
		assert.Zero(t, m.Len())
	})
	t.Run("With GetOrSet under contention", func(t *testing.T) {
		m := NewMap[string, *int]()
		var created sync.Map
		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, _ := m.GetOrSet("key", func() *int {
					x := 0
					return &x
				})
				created.Store(v, struct{}{})
			}()
		}
		wg.Wait()

		count := 0
		created.Range(func(_, _ any) bool {
			count++
			return true
		})
		assert.Equal(t, 1, count)

		_, loaded := m.GetOrSet("key", func() *int { return nil })
		assert.True(t, loaded)
	})
}
