package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mantlenetworkio/ethbridge/bridge-router/fees"
	"github.com/mantlenetworkio/ethbridge/bridge-router/router"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	opmetrics "github.com/mantlenetworkio/ethbridge/op-service/metrics"
)

const Namespace = "bridge_router"

var _ opmetrics.RegistryMetricer = (*Metrics)(nil)

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	router.Metrics

	opmetrics.RPCMetricer
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	opmetrics.RPCMetrics

	info prometheus.GaugeVec
	up   prometheus.Gauge

	envelopes           *prometheus.CounterVec
	events              *prometheus.CounterVec
	fees                *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec
	processedCache      *prometheus.CounterVec
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		RPCMetrics: opmetrics.MakeRPCMetrics(ns, factory),

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the bridge router has finished starting up",
		}),
		envelopes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "envelopes_total",
			Help:      "Number of submitted envelopes, by outcome",
		}, []string{
			"outcome",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_total",
			Help:      "Number of committed router events, by kind",
		}, []string{
			"kind",
		}),
		fees: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fees_collected_total",
			Help:      "Outbound delivery fees collected, in native units",
		}, []string{
			"kind",
		}),
		invariantViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "invariant_violations_total",
			Help:      "Number of operations that failed on inconsistent state, by operation",
		}, []string{
			"op",
		}),
		processedCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "processed_cache_lookups_total",
			Help:      "Lookups of the processed message cache, by result",
		}, []string{
			"result",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Document() []opmetrics.DocumentedMetric {
	return m.factory.Document()
}

func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordEnvelope(outcome string) {
	m.envelopes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordEvent(kind types.EventKind) {
	m.events.WithLabelValues(string(kind)).Inc()
}

// RecordFees adds the fee to the collected totals. Precision loss above 2^53 is accepted.
func (m *Metrics) RecordFees(fee fees.Fee) {
	m.fees.WithLabelValues("local").Add(toFloat(fee.Local))
	m.fees.WithLabelValues("remote").Add(toFloat(fee.Remote))
}

func (m *Metrics) RecordInvariantViolation(op string) {
	m.invariantViolations.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordProcessedCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.processedCache.WithLabelValues(result).Inc()
}

func toFloat(b types.Balance) float64 {
	f, _ := new(big.Float).SetInt(b.ToBig()).Float64()
	return f
}
