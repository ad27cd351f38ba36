// Package telemetry holds the SDK's prometheus instrumentation. Everything is
// registered on the default registry; embedding applications expose it (or
// not) through their own /metrics handler.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomkit_rpc_requests_total",
		Help: "RPC requests sent on the datachannel, by request kind.",
	}, []string{"kind"})

	RPCTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomkit_rpc_timeouts_total",
		Help: "RPC requests that hit the response deadline.",
	})

	RPCServerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomkit_rpc_server_errors_total",
		Help: "RPC responses carrying a server-supplied error.",
	})

	RPCDroppedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomkit_rpc_dropped_responses_total",
		Help: "Responses with no pending request (late or duplicate), dropped.",
	})

	SessionConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomkit_session_connects_total",
		Help: "Session bootstrap attempts, by outcome.",
	}, []string{"outcome"})
)
