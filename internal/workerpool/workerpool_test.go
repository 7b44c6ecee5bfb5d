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

package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestWorkerPool(t *testing.T) {
	t.Run("With tasks executed", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		pool := New(WithNumShards(4), WithPassivateAfter(50*time.Millisecond))
		pool.Start()

		counter := atomic.NewInt64(0)
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			require.NoError(t, pool.SubmitWork(func() {
				defer wg.Done()
				counter.Inc()
			}))
		}
		wg.Wait()
		assert.EqualValues(t, 100, counter.Load())
		pool.Stop()

		require.Eventually(t, func() bool { return pool.SpawnedWorkers() == 0 }, time.Second, 10*time.Millisecond)
	})
	t.Run("With submission before start", func(t *testing.T) {
		pool := New()
		assert.ErrorIs(t, pool.SubmitWork(func() {}), ErrPoolNotRunning)
	})
	t.Run("With submission after stop", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		pool := New()
		pool.Start()
		pool.Stop()
		assert.ErrorIs(t, pool.SubmitWork(func() {}), ErrPoolNotRunning)
		// stopping twice is harmless
		pool.Stop()
	})
	t.Run("With idle workers passivated", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		pool := New(WithPassivateAfter(20 * time.Millisecond))
		pool.Start()

		done := make(chan struct{})
		require.NoError(t, pool.SubmitWork(func() { close(done) }))
		<-done
		require.Eventually(t, func() bool { return pool.SpawnedWorkers() == 0 }, time.Second, 10*time.Millisecond)
		pool.Stop()
	})
	t.Run("With a blocked task the pool keeps serving", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		pool := New()
		pool.Start()

		release := make(chan struct{})
		require.NoError(t, pool.SubmitWork(func() { <-release }))

		done := make(chan struct{})
		require.NoError(t, pool.SubmitWork(func() { close(done) }))
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("second task did not run")
		}
		close(release)
		pool.Stop()
		require.Eventually(t, func() bool { return pool.SpawnedWorkers() == 0 }, time.Second, 10*time.Millisecond)
	})
}
