package metrics

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelProvider records on an OpenTelemetry meter. Instrument creation errors fall back
// to no-op instruments: the pipeline never fails because metrics could not be created.
//
//	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	p := metrics.NewOTelProvider(mp.Meter("github.com/ygrebnov/pipeline"))
//	pipeline.Run(ctx, items, fn, pipeline.WithMetrics(p))
type OTelProvider struct {
	meter metric.Meter
}

// NewOTelProvider wraps meter.
func NewOTelProvider(meter metric.Meter) *OTelProvider {
	return &OTelProvider{meter: meter}
}

// Counter returns an Int64Counter-backed counter.
func (p *OTelProvider) Counter(name string, opts ...InstrumentOption) Counter {
	cfg := applyOptions(opts)
	c, err := p.meter.Int64Counter(name, instrumentOptions[metric.Int64CounterOption](cfg)...)
	if err != nil {
		return noop{}
	}
	return &otelCounter{c: c, attrs: measurementOption(cfg)}
}

// UpDownCounter returns an Int64UpDownCounter-backed counter.
func (p *OTelProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	cfg := applyOptions(opts)
	u, err := p.meter.Int64UpDownCounter(name, instrumentOptions[metric.Int64UpDownCounterOption](cfg)...)
	if err != nil {
		return noop{}
	}
	return &otelUpDownCounter{u: u, attrs: measurementOption(cfg)}
}

// Histogram returns a Float64Histogram-backed histogram.
func (p *OTelProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	cfg := applyOptions(opts)
	h, err := p.meter.Float64Histogram(name, instrumentOptions[metric.Float64HistogramOption](cfg)...)
	if err != nil {
		return noop{}
	}
	return &otelHistogram{h: h, attrs: measurementOption(cfg)}
}

// instrumentOptions converts the advisory config into options for instrument kind O.
// metric.InstrumentOption satisfies every per-kind option interface.
func instrumentOptions[O any](cfg InstrumentConfig) []O {
	var out []O
	if cfg.Description != "" {
		out = append(out, any(metric.WithDescription(cfg.Description)).(O))
	}
	if cfg.Unit != "" {
		out = append(out, any(metric.WithUnit(cfg.Unit)).(O))
	}
	return out
}

func measurementOption(cfg InstrumentConfig) metric.MeasurementOption {
	keys := make([]string, 0, len(cfg.Attributes))
	for k := range cfg.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, cfg.Attributes[k]))
	}
	return metric.WithAttributeSet(attribute.NewSet(kvs...))
}

type otelCounter struct {
	c     metric.Int64Counter
	attrs metric.MeasurementOption
}

func (c *otelCounter) Add(n int64) { c.c.Add(context.Background(), n, c.attrs) }

type otelUpDownCounter struct {
	u     metric.Int64UpDownCounter
	attrs metric.MeasurementOption
}

func (u *otelUpDownCounter) Add(n int64) { u.u.Add(context.Background(), n, u.attrs) }

type otelHistogram struct {
	h     metric.Float64Histogram
	attrs metric.MeasurementOption
}

func (h *otelHistogram) Record(v float64) { h.h.Record(context.Background(), v, h.attrs) }
