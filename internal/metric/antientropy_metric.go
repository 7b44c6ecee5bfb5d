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

package metric

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AntiEntropyMetric groups the instruments of the gossip reconciliation rounds.
type AntiEntropyMetric struct {
	rounds    metric.Int64Counter
	abandoned metric.Int64Counter
	pulled    metric.Int64Counter
	pushed    metric.Int64Counter
}

// NewAntiEntropyMetric creates the anti-entropy instruments
func NewAntiEntropyMetric(meter metric.Meter) (*AntiEntropyMetric, error) {
	var instruments AntiEntropyMetric
	var err error

	if instruments.rounds, err = meter.Int64Counter(
		"netsync.antientropy.rounds",
		metric.WithDescription("Number of advertisement rounds started"),
	); err != nil {
		return nil, err
	}

	if instruments.abandoned, err = meter.Int64Counter(
		"netsync.antientropy.abandoned",
		metric.WithDescription("Number of rounds abandoned on transport or serialization failure"),
	); err != nil {
		return nil, err
	}

	if instruments.pulled, err = meter.Int64Counter(
		"netsync.antientropy.fragments.pulled",
		metric.WithDescription("Number of fragments requested from peers"),
	); err != nil {
		return nil, err
	}

	if instruments.pushed, err = meter.Int64Counter(
		"netsync.antientropy.fragments.pushed",
		metric.WithDescription("Number of fragments sent to peers"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// Round records the start of an advertisement round
func (x *AntiEntropyMetric) Round(ctx context.Context) {
	x.rounds.Add(ctx, 1)
}

// Abandoned records a round abandoned for the given reason
func (x *AntiEntropyMetric) Abandoned(ctx context.Context, reason string) {
	x.abandoned.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Pulled records fragments requested from a peer
func (x *AntiEntropyMetric) Pulled(ctx context.Context, n int) {
	if n > 0 {
		x.pulled.Add(ctx, int64(n))
	}
}

// Pushed records fragments sent to a peer
func (x *AntiEntropyMetric) Pushed(ctx context.Context, n int) {
	if n > 0 {
		x.pushed.Add(ctx, int64(n))
	}
}
