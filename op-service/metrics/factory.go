package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory creates metrics on a registry, and remembers them for documentation.
type Factory interface {
	NewCounter(opts prometheus.CounterOpts) prometheus.Counter
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
	Document() []DocumentedMetric
}

type DocumentedMetric struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Help   string   `json:"help"`
	Labels []string `json:"labels"`
}

type documentor struct {
	metrics []DocumentedMetric
	factory promauto.Factory
}

func With(registry *prometheus.Registry) Factory {
	return &documentor{factory: promauto.With(registry)}
}

func (d *documentor) record(typ, ns, subsystem, name, help string, labels []string) {
	d.metrics = append(d.metrics, DocumentedMetric{
		Type:   typ,
		Name:   prometheus.BuildFQName(ns, subsystem, name),
		Help:   help,
		Labels: labels,
	})
}

func (d *documentor) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	d.record("counter", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewCounter(opts)
}

func (d *documentor) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	d.record("counter", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewCounterVec(opts, labelNames)
}

func (d *documentor) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	d.record("gauge", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewGauge(opts)
}

func (d *documentor) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	d.record("gauge", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewGaugeVec(opts, labelNames)
}

func (d *documentor) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	d.record("histogram", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewHistogram(opts)
}

func (d *documentor) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	d.record("histogram", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewHistogramVec(opts, labelNames)
}

func (d *documentor) Document() []DocumentedMetric {
	return d.metrics
}
