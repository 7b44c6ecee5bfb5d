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

import "fmt"

// MastershipBased orders updates by the mastership term under which they were
// issued and then by the sequence number issued within that term.
// A higher term always wins regardless of the sequence.
type MastershipBased struct {
	Term     uint64
	Sequence uint64
}

var _ Timestamp = MastershipBased{}

// NewMastershipBased creates a MastershipBased timestamp
func NewMastershipBased(term, sequence uint64) MastershipBased {
	return MastershipBased{Term: term, Sequence: sequence}
}

// Kind implements Timestamp
func (MastershipBased) Kind() Kind {
	return KindMastership
}

// String implements fmt.Stringer
func (m MastershipBased) String() string {
	return fmt.Sprintf("mastership(term=%d, seq=%d)", m.Term, m.Sequence)
}

func (m MastershipBased) compare(other Timestamp) int {
	o := other.(MastershipBased)
	if cmp := compareUint64(m.Term, o.Term); cmp != 0 {
		return cmp
	}
	return compareUint64(m.Sequence, o.Sequence)
}
