package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	vm "github.com/VictoriaMetrics/metrics"
)

// Name is the implementation name of the middleware.
const Name = "MetricsMiddleware"

// Version of the middleware. It keeps no state in the store besides its version.
var Version = provider.Semver{Major: 1, Minor: 0, Patch: 0}

// metaStart is the payload metadata key carrying the start time from the pre to the post phase.
const metaStart = "metrics:start"

// Middleware counts operations and measures their duration per store and method.
//
// Exposed metrics:
//
//	pkv_operations_started_total{store, method}   operations that entered the pipeline
//	pkv_operations_total{store, method}           operations the provider completed without error
//	pkv_operation_duration_seconds{store, method} histogram of completed operations
//
// Failed operations are the difference between started and completed ones, since the pipeline
// stops at the first error.
type Middleware struct {
	middleware.Base
	set   *vm.Set
	store string
}

var _ middleware.Middleware = (*Middleware)(nil)

// New creates the middleware with its own metrics set.
func New(opts middleware.Options) *Middleware {
	return &Middleware{
		Base: middleware.NewBase(Name, opts),
		set:  vm.NewSet(),
	}
}

func (m *Middleware) Version() provider.Semver { return Version }

// Conditions observes every method in both phases.
func (m *Middleware) Conditions() middleware.Conditions {
	return middleware.Conditions{PreProvider: provider.AllMethods, PostProvider: provider.AllMethods}
}

func (m *Middleware) Init(ctx context.Context, mc middleware.Context) (middleware.Context, error) {
	mc, err := m.RunGate(ctx, mc, m.NewGate(Version, nil, nil))
	if err != nil {
		return mc, err
	}
	m.store = mc.Name
	return mc, nil
}

func (m *Middleware) Run(_ context.Context, payload provider.Payload) (provider.Payload, error) {
	base := payload.Base()
	labels := fmt.Sprintf(`{store=%q,method=%q}`, m.store, base.Method)

	switch base.Trigger {
	case provider.TriggerPreProvider:
		m.set.GetOrCreateCounter("pkv_operations_started_total" + labels).Inc()
		base.SetMeta(metaStart, time.Now())
	case provider.TriggerPostProvider:
		m.set.GetOrCreateCounter("pkv_operations_total" + labels).Inc()
		if start, ok := base.Metadata[metaStart].(time.Time); ok {
			m.set.GetOrCreateHistogram("pkv_operation_duration_seconds" + labels).UpdateDuration(start)
		}
	}
	return payload, nil
}

// WritePrometheus writes all metrics of the middleware in Prometheus text format.
func (m *Middleware) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Started returns how many operations of method entered the pipeline.
func (m *Middleware) Started(method provider.Method) uint64 {
	return m.set.GetOrCreateCounter(fmt.Sprintf(`pkv_operations_started_total{store=%q,method=%q}`, m.store, method)).Get()
}

// Completed returns how many operations of method the provider completed.
func (m *Middleware) Completed(method provider.Method) uint64 {
	return m.set.GetOrCreateCounter(fmt.Sprintf(`pkv_operations_total{store=%q,method=%q}`, m.store, method)).Get()
}
