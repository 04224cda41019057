package metrics

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

const RPCServerSubsystem = "rpc_server"

type RPCMetricer interface {
	NewRecorder(name string) rpc.Recorder
}

// RPCMetrics tracks the requests served by the RPC server.
type RPCMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	responsesTotal         *prometheus.CounterVec
	paramsSizeTotal        *prometheus.CounterVec
}

var _ RPCMetricer = (*RPCMetrics)(nil)

// MakeRPCMetrics creates RPC server metrics under the namespace, for embedding into the metrics
// of a service.
func MakeRPCMetrics(ns string, factory Factory) RPCMetrics {
	return RPCMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCServerSubsystem,
			Name:      "requests_total",
			Help:      "Total requests to the RPC server",
		}, []string{"rpc", "method"}),
		requestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: RPCServerSubsystem,
			Name:      "request_duration_seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			Help:      "Histogram of RPC server request durations",
		}, []string{"rpc", "method"}),
		responsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCServerSubsystem,
			Name:      "responses_total",
			Help:      "Total RPC request responses served",
		}, []string{"rpc", "method", "error"}),
		paramsSizeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCServerSubsystem,
			Name:      "params_size_total",
			Help:      "Total bytes of RPC params received",
		}, []string{"rpc", "method"}),
	}
}

func (m *RPCMetrics) NewRecorder(name string) rpc.Recorder {
	return &rpcRecorder{m: m, name: name}
}

type rpcRecorder struct {
	m    *RPCMetrics
	name string
}

// RecordOutgoing is not tracked: the service does not make RPC calls.
func (rec *rpcRecorder) RecordOutgoing(ctx context.Context, msg rpc.RecordedMsg) rpc.RecordDone {
	return nil
}

func (rec *rpcRecorder) RecordIncoming(ctx context.Context, msg rpc.RecordedMsg) rpc.RecordDone {
	if msg.MsgIsNotification() {
		return nil
	}
	method := msg.MsgMethod()
	rec.m.requestsTotal.WithLabelValues(rec.name, method).Inc()
	rec.m.paramsSizeTotal.WithLabelValues(rec.name, method).Add(float64(len(msg.MsgParams())))
	timer := prometheus.NewTimer(rec.m.requestDurationSeconds.WithLabelValues(rec.name, method))
	return func(ctx context.Context, input, output rpc.RecordedMsg) {
		timer.ObserveDuration()
		if output == nil {
			return
		}
		errStr := "<nil>"
		if msgErr := output.MsgError(); msgErr != nil {
			errStr = fmt.Sprintf("rpc_%d", msgErr.ErrorCode())
		}
		rec.m.responsesTotal.WithLabelValues(rec.name, input.MsgMethod(), errStr).Inc()
	}
}

type NoopRPCMetrics struct{}

var _ RPCMetricer = (*NoopRPCMetrics)(nil)

func (n *NoopRPCMetrics) NewRecorder(name string) rpc.Recorder {
	return &NoopRPCRecorder{}
}

type NoopRPCRecorder struct{}

func (n *NoopRPCRecorder) RecordIncoming(ctx context.Context, msg rpc.RecordedMsg) rpc.RecordDone {
	return nil
}

func (n *NoopRPCRecorder) RecordOutgoing(ctx context.Context, msg rpc.RecordedMsg) rpc.RecordDone {
	return nil
}
