package offload

import "github.com/ygrebnov/offload/metrics"

// instruments groups the Manager's metrics, created once from the configured provider.
type instruments struct {
	inits         metrics.Counter
	initFailures  metrics.Counter
	computes      metrics.Counter
	computeErrors metrics.Counter
	overloaded    metrics.Counter
	unmatched     metrics.Counter
	waiters       metrics.UpDownCounter
	duration      metrics.Histogram
}

func newInstruments(p metrics.Provider) *instruments {
	return &instruments{
		inits: p.Counter("offload_inits_total",
			metrics.WithDescription("Engine initializations attempted.")),
		initFailures: p.Counter("offload_init_failures_total",
			metrics.WithDescription("Engine initializations that failed.")),
		computes: p.Counter("offload_computes_total",
			metrics.WithDescription("Computations dispatched to an engine.")),
		computeErrors: p.Counter("offload_compute_errors_total",
			metrics.WithDescription("Computations that returned an error.")),
		overloaded: p.Counter("offload_overloaded_total",
			metrics.WithDescription("Computations rejected because too many callers were waiting.")),
		unmatched: p.Counter("offload_unmatched_replies_total",
			metrics.WithDescription("Remote replies discarded for lack of an awaiting caller.")),
		waiters: p.UpDownCounter("offload_ticket_waiters",
			metrics.WithDescription("Callers waiting for the execution ticket.")),
		duration: p.Histogram("offload_compute_duration_seconds",
			metrics.WithDescription("Computation latency, excluding ticket wait."),
			metrics.WithUnit("seconds")),
	}
}
