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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/tochemey/netsync"
)

// Provider resolves the Meter every netsync instrument is created from.
type Provider struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
}

// Option configures a Provider
type Option func(*Provider)

// WithMeterProvider overrides the global meter provider. A nil provider is ignored.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Provider) {
		if mp != nil {
			p.meterProvider = mp
		}
	}
}

// New creates a Provider backed by the global OpenTelemetry meter provider unless overridden
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.meterProvider == nil {
		p.meterProvider = otel.GetMeterProvider()
	}
	p.meter = p.meterProvider.Meter(instrumentationName)
	return p
}

// Meter returns the Meter used by this Provider.
func (x *Provider) Meter() metric.Meter {
	return x.meter
}
