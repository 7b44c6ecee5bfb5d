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

// StoreMetric groups the instruments shared by the replicated stores.
//
// Instruments:
//   - netsync.store.stale_updates  (Int64Counter)
//   - netsync.store.anomalies      (Int64Counter)
//   - netsync.store.applied        (Int64Counter)
type StoreMetric struct {
	store     attribute.KeyValue
	stale     metric.Int64Counter
	anomalies metric.Int64Counter
	applied   metric.Int64Counter
}

// NewStoreMetric creates the store instruments tagged with the store name
func NewStoreMetric(meter metric.Meter, store string) (*StoreMetric, error) {
	instruments := StoreMetric{store: attribute.String("store", store)}
	var err error

	if instruments.stale, err = meter.Int64Counter(
		"netsync.store.stale_updates",
		metric.WithDescription("Number of updates dropped because their timestamp was not newer"),
	); err != nil {
		return nil, err
	}

	if instruments.anomalies, err = meter.Int64Counter(
		"netsync.store.anomalies",
		metric.WithDescription("Number of updates carrying an equal timestamp but different content"),
	); err != nil {
		return nil, err
	}

	if instruments.applied, err = meter.Int64Counter(
		"netsync.store.applied",
		metric.WithDescription("Number of updates applied to the store"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// StaleUpdate records one dropped stale update
func (x *StoreMetric) StaleUpdate(ctx context.Context) {
	x.stale.Add(ctx, 1, metric.WithAttributes(x.store))
}

// Anomaly records one equal-timestamp conflict
func (x *StoreMetric) Anomaly(ctx context.Context) {
	x.anomalies.Add(ctx, 1, metric.WithAttributes(x.store))
}

// Applied records one applied update
func (x *StoreMetric) Applied(ctx context.Context) {
	x.applied.Add(ctx, 1, metric.WithAttributes(x.store))
}
