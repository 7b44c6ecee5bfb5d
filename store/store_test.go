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

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/event"
)

type recordingDelegate struct {
	events []string
}

func (d *recordingDelegate) Notify(e string) {
	d.events = append(d.events, e)
}

type sampleStore struct {
	Base[string]
}

func TestBase(t *testing.T) {
	t.Run("With delegate set once", func(t *testing.T) {
		store := &sampleStore{}
		a := &recordingDelegate{}
		b := &recordingDelegate{}

		assert.False(t, store.HasDelegate())
		require.NoError(t, store.SetDelegate(a))
		require.NoError(t, store.SetDelegate(a))
		assert.True(t, store.HasDelegate())

		err := store.SetDelegate(b)
		require.ErrorIs(t, err, gerrors.ErrDelegateConflict)

		store.NotifyDelegate("added", "updated")
		assert.Equal(t, []string{"added", "updated"}, a.events)
		assert.Empty(t, b.events)
	})
	t.Run("With stale unset ignored", func(t *testing.T) {
		store := &sampleStore{}
		a := &recordingDelegate{}
		b := &recordingDelegate{}
		require.NoError(t, store.SetDelegate(a))

		store.UnsetDelegate(b)
		assert.True(t, store.HasDelegate())
		store.NotifyDelegate("still-a")
		assert.Equal(t, []string{"still-a"}, a.events)

		store.UnsetDelegate(a)
		assert.False(t, store.HasDelegate())
		require.NoError(t, store.SetDelegate(b))
		store.NotifyDelegate("now-b")
		assert.Equal(t, []string{"now-b"}, b.events)
	})
	t.Run("With no delegate events are dropped", func(t *testing.T) {
		store := &sampleStore{}
		assert.NotPanics(t, func() { store.NotifyDelegate("dropped") })
		require.NoError(t, store.SetDelegate(nil))
		assert.False(t, store.HasDelegate())
	})
}

type testEvent struct{ at time.Time }

func (testEvent) Class() string     { return "test" }
func (e testEvent) Time() time.Time { return e.at }

type failingPoster struct{ calls int }

func (p *failingPoster) Post(event.Event) error {
	p.calls++
	return errors.New("inactive")
}

func TestPostingDelegate(t *testing.T) {
	t.Run("With dispatcher delivery", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		dispatcher := event.NewDispatcher()
		require.NoError(t, dispatcher.Activate())
		defer dispatcher.Deactivate()

		received := make(chan event.Event, 1)
		dispatcher.AddSink("test", event.SinkFunc(func(_ context.Context, e event.Event) {
			received <- e
		}))

		delegate := NewPostingDelegate[testEvent](dispatcher, nil)
		delegate.Notify(testEvent{at: time.Now()})

		select {
		case e := <-received:
			assert.Equal(t, "test", e.Class())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})
	t.Run("With post failure swallowed", func(t *testing.T) {
		poster := &failingPoster{}
		delegate := NewPostingDelegate[testEvent](poster, nil)
		assert.NotPanics(t, func() { delegate.Notify(testEvent{}) })
		assert.Equal(t, 1, poster.calls)
	})
}
