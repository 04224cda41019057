package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// FindMetric gathers the registry and returns the single metric of the named family that carries
// all the given labels. It fails the test if there is none, or more than one.
func FindMetric(t require.TestingT, reg *prometheus.Registry, name string, labels map[string]string) *gocl.Metric {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	var found *gocl.Metric
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.Metric {
			if !hasAllLabels(m, labels) {
				continue
			}
			require.Nil(t, found, "more than one %s metric with labels %v", name, labels)
			found = m
		}
	}
	require.NotNil(t, found, "no %s metric with labels %v", name, labels)
	return found
}

// CounterValue returns the value of a counter, see FindMetric.
func CounterValue(t require.TestingT, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	return FindMetric(t, reg, name, labels).GetCounter().GetValue()
}

// GaugeValue returns the value of a gauge, see FindMetric.
func GaugeValue(t require.TestingT, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	return FindMetric(t, reg, name, labels).GetGauge().GetValue()
}

func hasAllLabels(m *gocl.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lab := range m.Label {
			if lab.GetName() == k && lab.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
