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

// DispatchMetric groups the event dispatcher instruments. Every measurement is tagged with the event class.
type DispatchMetric struct {
	delivered metric.Int64Counter
	timeouts  metric.Int64Counter
	failures  metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewDispatchMetric creates the dispatcher instruments
func NewDispatchMetric(meter metric.Meter) (*DispatchMetric, error) {
	var instruments DispatchMetric
	var err error

	if instruments.delivered, err = meter.Int64Counter(
		"netsync.dispatch.delivered",
		metric.WithDescription("Number of events delivered to a sink"),
	); err != nil {
		return nil, err
	}

	if instruments.timeouts, err = meter.Int64Counter(
		"netsync.dispatch.timeouts",
		metric.WithDescription("Number of sink invocations interrupted for exceeding the dispatch limit"),
	); err != nil {
		return nil, err
	}

	if instruments.failures, err = meter.Int64Counter(
		"netsync.dispatch.failures",
		metric.WithDescription("Number of sink invocations that panicked"),
	); err != nil {
		return nil, err
	}

	if instruments.latency, err = meter.Float64Histogram(
		"netsync.dispatch.latency",
		metric.WithDescription("Sink invocation duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// Delivered records a completed sink invocation and its duration in milliseconds
func (x *DispatchMetric) Delivered(ctx context.Context, class string, millis float64) {
	attrs := metric.WithAttributes(attribute.String("class", class))
	x.delivered.Add(ctx, 1, attrs)
	x.latency.Record(ctx, millis, attrs)
}

// Timeout records an interrupted sink invocation
func (x *DispatchMetric) Timeout(ctx context.Context, class string) {
	x.timeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}

// Failure records a sink invocation that panicked
func (x *DispatchMetric) Failure(ctx context.Context, class string) {
	x.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}
