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

// Package statistic derives the load of the ports of the network from the counters polled on the devices.
package statistic

import (
	"fmt"
	"time"
)

// DefaultPollInterval is the period the counters are polled at
const DefaultPollInterval = 10 * time.Second

// Load is the traffic seen on a connect point between the last two samples.
// A Load computed before two samples exist is invalid, which tells "no data yet" apart from "no traffic".
type Load struct {
	Current      uint64
	Previous     uint64
	Time         time.Time
	Valid        bool
	PollInterval time.Duration
}

// Rate returns the bytes per second between the two samples, zero for an invalid Load
func (l Load) Rate() float64 {
	if !l.Valid || l.PollInterval <= 0 || l.Current < l.Previous {
		return 0
	}
	return float64(l.Current-l.Previous) / l.PollInterval.Seconds()
}

// String implements fmt.Stringer
func (l Load) String() string {
	if !l.Valid {
		return "Load{invalid}"
	}
	return fmt.Sprintf("Load{rate=%.2f, latest=%d, time=%s}", l.Rate(), l.Current, l.Time.Format(time.RFC3339))
}
