package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ModeSync   = "sync"
	ModeSSE    = "sse"
	ModeSocket = "websocket"
)

var (
	agentRuns      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_runs_total", Help: "Agent runs by mode"}, []string{"agent", "mode"})
	agentFragments = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_stream_fragments_total", Help: "Streamed fragments delivered"}, []string{"agent"})
	agentErrors    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "agent_run_errors_total", Help: "Failed agent runs"}, []string{"agent"})
)

func init() {
	prometheus.MustRegister(agentRuns, agentFragments, agentErrors)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func IncRun(agent, mode string) { agentRuns.WithLabelValues(agent, mode).Inc() }

func IncFragment(agent string) { agentFragments.WithLabelValues(agent).Inc() }

func IncError(agent string) { agentErrors.WithLabelValues(agent).Inc() }
