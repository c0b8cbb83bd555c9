// Package metrics provides purely additive Prometheus instrumentation for
// the orchestrator: counts of dispatched events, cascade depth
// distribution, and tool-execution outcomes. Nothing in orchestrator's
// control flow depends on these calls succeeding or even being wired —
// Recorder is an interface so tests can use a no-op implementation.
//
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the instrumentation surface orchestrator.Orchestrator calls
// on trace/tool finalize.
type Recorder interface {
	EventDispatched(eventType string)
	CascadeDepth(depth int)
	TraceFinalized(status string)
	ToolExecutionFinalized(status string)
}

// Prometheus is the default Recorder, registering its collectors on the
// given registerer (pass prometheus.DefaultRegisterer for the global
// registry, or a fresh prometheus.NewRegistry() in tests to avoid
// double-registration panics across parallel test packages).
type Prometheus struct {
	eventsTotal      *prometheus.CounterVec
	cascadeDepth     prometheus.Histogram
	tracesTotal      *prometheus.CounterVec
	toolExecsTotal   *prometheus.CounterVec
}

// NewPrometheus creates and registers the collectors.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchd",
			Name:      "events_dispatched_total",
			Help:      "Total events appended and dispatched, by event_type.",
		}, []string{"event_type"}),
		cascadeDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orchd",
			Name:      "cascade_depth",
			Help:      "Depth of each dispatch call in a cascade.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		tracesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchd",
			Name:      "execution_traces_total",
			Help:      "Finalized ExecutionTrace rows, by status.",
		}, []string{"status"}),
		toolExecsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchd",
			Name:      "tool_executions_total",
			Help:      "Finalized ToolExecution rows, by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(p.eventsTotal, p.cascadeDepth, p.tracesTotal, p.toolExecsTotal)
	return p
}

func (p *Prometheus) EventDispatched(eventType string) { p.eventsTotal.WithLabelValues(eventType).Inc() }
func (p *Prometheus) CascadeDepth(depth int)            { p.cascadeDepth.Observe(float64(depth)) }
func (p *Prometheus) TraceFinalized(status string)      { p.tracesTotal.WithLabelValues(status).Inc() }
func (p *Prometheus) ToolExecutionFinalized(status string) {
	p.toolExecsTotal.WithLabelValues(status).Inc()
}

var _ Recorder = (*Prometheus)(nil)

// NoOp discards every call. Used when no Registerer is configured.
type NoOp struct{}

func (NoOp) EventDispatched(string)       {}
func (NoOp) CascadeDepth(int)             {}
func (NoOp) TraceFinalized(string)        {}
func (NoOp) ToolExecutionFinalized(string) {}

var _ Recorder = NoOp{}
