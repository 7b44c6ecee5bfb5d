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

// Package timestamp provides the logical clocks used to order replicated updates.
//
// Two kinds exist. WallClock is used where a single node writes the data.
// MastershipBased is used for device data and orders by mastership term first,
// then by the sequence issued within that term.
// Timestamps of different kinds are never comparable.
package timestamp

import (
	"fmt"

	"github.com/tochemey/netsync/errors"
)

// Kind discriminates the concrete timestamp types
type Kind uint8

const (
	// KindWallClock identifies WallClock timestamps
	KindWallClock Kind = iota + 1
	// KindMastership identifies MastershipBased timestamps
	KindMastership
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindWallClock:
		return "wallclock"
	case KindMastership:
		return "mastership"
	default:
		return "unknown"
	}
}

// Timestamp is an opaque version stamp.
// The set of implementations is closed to this package.
type Timestamp interface {
	fmt.Stringer
	// Kind returns the concrete kind of the timestamp
	Kind() Kind
	// compare orders the receiver against a timestamp of the same kind
	compare(other Timestamp) int
}

// Compare returns -1, 0 or +1 when a is respectively older than, equal to or newer than b.
// It returns ErrIncomparableTimestamps when a and b are of different kinds or either is nil.
func Compare(a, b Timestamp) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: nil timestamp", errors.ErrIncomparableTimestamps)
	}
	if a.Kind() != b.Kind() {
		return 0, fmt.Errorf("%w: %s vs %s", errors.ErrIncomparableTimestamps, a.Kind(), b.Kind())
	}
	return a.compare(b), nil
}

// IsNewer reports whether a is strictly newer than b.
// It panics when the timestamps are of different kinds.
func IsNewer(a, b Timestamp) bool {
	return mustCompare(a, b) > 0
}

// IsOlder reports whether a is strictly older than b.
// It panics when the timestamps are of different kinds.
func IsOlder(a, b Timestamp) bool {
	return mustCompare(a, b) < 0
}

// Equal reports whether a and b are of the same kind and compare equal.
func Equal(a, b Timestamp) bool {
	cmp, err := Compare(a, b)
	return err == nil && cmp == 0
}

// Max returns the newest of the given timestamps. Nil entries are skipped.
// It panics when the timestamps are of different kinds.
func Max(stamps ...Timestamp) Timestamp {
	var newest Timestamp
	for _, ts := range stamps {
		if ts == nil {
			continue
		}
		if newest == nil || IsNewer(ts, newest) {
			newest = ts
		}
	}
	return newest
}

func mustCompare(a, b Timestamp) int {
	cmp, err := Compare(a, b)
	if err != nil {
		panic(err)
	}
	return cmp
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
