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
	"strconv"
	"time"

	"go.uber.org/atomic"
)

// WallClock is a timestamp backed by Unix milliseconds
type WallClock struct {
	Millis uint64
}

var _ Timestamp = WallClock{}

// lastMillis guarantees NewWallClock always returns a value greater than a previous one in this process
var lastMillis = atomic.NewUint64(0)

// NewWallClock reads the current time. Successive calls strictly increase even when
// the system clock is adjusted or several calls land in the same millisecond.
func NewWallClock() WallClock {
	now := uint64(time.Now().UnixMilli())
	for {
		last := lastMillis.Load()
		next := max(now, last+1)
		if lastMillis.CompareAndSwap(last, next) {
			return WallClock{Millis: next}
		}
	}
}

// Kind implements Timestamp
func (WallClock) Kind() Kind {
	return KindWallClock
}

// Time returns the timestamp as a time.Time
func (w WallClock) Time() time.Time {
	return time.UnixMilli(int64(w.Millis))
}

// String implements fmt.Stringer
func (w WallClock) String() string {
	return "wallclock(" + strconv.FormatUint(w.Millis, 10) + ")"
}

func (w WallClock) compare(other Timestamp) int {
	return compareUint64(w.Millis, other.(WallClock).Millis)
}
