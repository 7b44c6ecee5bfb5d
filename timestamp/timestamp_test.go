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

package timestamp

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/netsync/errors"
)

func TestMastershipBased(t *testing.T) {
	t.Run("With higher term newer regardless of sequence", func(t *testing.T) {
		older := NewMastershipBased(1, 100)
		newer := NewMastershipBased(2, 1)
		assert.True(t, IsNewer(newer, older))
		assert.True(t, IsOlder(older, newer))
		assert.False(t, IsNewer(older, newer))
	})
	t.Run("With same term higher sequence newer", func(t *testing.T) {
		older := NewMastershipBased(3, 1)
		newer := NewMastershipBased(3, 2)
		cmp, err := Compare(newer, older)
		require.NoError(t, err)
		assert.Equal(t, 1, cmp)
		assert.True(t, IsNewer(newer, older))
	})
	t.Run("With equal values", func(t *testing.T) {
		a := NewMastershipBased(5, 5)
		b := NewMastershipBased(5, 5)
		cmp, err := Compare(a, b)
		require.NoError(t, err)
		assert.Zero(t, cmp)
		assert.False(t, IsNewer(a, b))
		assert.False(t, IsOlder(a, b))
		assert.True(t, Equal(a, b))
		assert.Equal(t, a, b)
	})
	t.Run("With random pairs the order is antisymmetric", func(t *testing.T) {
		for range 500 {
			a := NewMastershipBased(rand.Uint64N(4), rand.Uint64N(4))
			b := NewMastershipBased(rand.Uint64N(4), rand.Uint64N(4))
			ab, err := Compare(a, b)
			require.NoError(t, err)
			ba, err := Compare(b, a)
			require.NoError(t, err)
			assert.Equal(t, -ab, ba)
			assert.Equal(t, IsNewer(a, b), IsOlder(b, a))
		}
	})
	t.Run("With String", func(t *testing.T) {
		assert.Equal(t, "mastership(term=1, seq=2)", NewMastershipBased(1, 2).String())
	})
}

func TestWallClock(t *testing.T) {
	t.Run("With ordering", func(t *testing.T) {
		a := WallClock{Millis: 10}
		b := WallClock{Millis: 20}
		assert.True(t, IsNewer(b, a))
		assert.True(t, IsOlder(a, b))
		assert.True(t, Equal(a, WallClock{Millis: 10}))
		assert.Equal(t, int64(10), a.Time().UnixMilli())
	})
	t.Run("With monotonic reads", func(t *testing.T) {
		previous := NewWallClock()
		for range 1000 {
			current := NewWallClock()
			assert.True(t, IsNewer(current, previous))
			previous = current
		}
	})
}

func TestMixedKinds(t *testing.T) {
	wall := WallClock{Millis: 1}
	mastership := NewMastershipBased(1, 1)

	_, err := Compare(wall, mastership)
	require.ErrorIs(t, err, errors.ErrIncomparableTimestamps)

	_, err = Compare(nil, mastership)
	require.ErrorIs(t, err, errors.ErrIncomparableTimestamps)

	assert.False(t, Equal(wall, mastership))
	assert.Panics(t, func() { IsNewer(wall, mastership) })
	assert.Panics(t, func() { IsOlder(mastership, wall) })
}

func TestMax(t *testing.T) {
	newest := Max(NewMastershipBased(1, 3), nil, NewMastershipBased(2, 0), NewMastershipBased(1, 9))
	assert.Equal(t, NewMastershipBased(2, 0), newest)
	assert.Nil(t, Max())
}
