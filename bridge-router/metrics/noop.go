package metrics

import (
	"github.com/mantlenetworkio/ethbridge/bridge-router/fees"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	opmetrics "github.com/mantlenetworkio/ethbridge/op-service/metrics"
)

type noopMetrics struct {
	opmetrics.NoopRPCMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordInfo(version string)          {}
func (*noopMetrics) RecordUp()                          {}
func (*noopMetrics) RecordEnvelope(outcome string)      {}
func (*noopMetrics) RecordEvent(kind types.EventKind)   {}
func (*noopMetrics) RecordFees(fee fees.Fee)            {}
func (*noopMetrics) RecordInvariantViolation(op string) {}
func (*noopMetrics) RecordProcessedCache(hit bool)      {}
