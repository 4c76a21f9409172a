package smkes

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters spec §8's testable properties are measured
// against. A nil Registerer is accepted everywhere in this package: the
// collectors are still created and incremented, just never exposed on a
// /metrics endpoint, so engines built without a Prometheus registry (unit
// tests, examples) never need a nil check at the call site.
//
// LockTimeouts is created and registered like the others, but no code
// path in this module increments it.
type Metrics struct {
	ReadHits         prometheus.Counter
	ReadMisses       prometheus.Counter
	ReadBackendError prometheus.Counter
	FlushOps         prometheus.Counter
	FlushOrphans     prometheus.Counter
	LockTimeouts     prometheus.Counter
	WriteThroughs    prometheus.Counter
}

// NewMetrics builds the Metrics collectors and registers them against reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := prometheus.NewCounter
	m := &Metrics{
		ReadHits:         factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "read_hits_total", Help: "Reads served from the cache without invoking the fetch callback."}),
		ReadMisses:       factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "read_misses_total", Help: "Reads that invoked the fetch callback."}),
		ReadBackendError: factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "read_backend_errors_total", Help: "Backend errors on read, handled fail-open."}),
		FlushOps:         factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "flush_ops_total", Help: "Flush and FlushNew invocations."}),
		FlushOrphans:     factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "flush_orphans_total", Help: "Stale registry ids cleaned up during a flush."}),
		LockTimeouts:     factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "lock_timeouts_total", Help: "Set Lock retry budgets exhausted."}),
		WriteThroughs:    factory(prometheus.CounterOpts{Namespace: namespace, Subsystem: "smkes", Name: "write_throughs_total", Help: "Cache entries rewritten in place by DirectWriteThrough."}),
	}

	if reg == nil {
		return m
	}

	collectors := []prometheus.Collector{
		m.ReadHits, m.ReadMisses, m.ReadBackendError,
		m.FlushOps, m.FlushOrphans, m.LockTimeouts, m.WriteThroughs,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if ok := asAlreadyRegistered(err, &are); ok {
				continue
			}
		}
	}
	return m
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if ok {
		*target = are
	}
	return ok
}
