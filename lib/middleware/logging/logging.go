package logging

import (
	"context"
	"strings"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
)

// Name is the implementation name of the middleware.
const Name = "LoggingMiddleware"

// Version of the middleware.
var Version = provider.Semver{Major: 1, Minor: 0, Patch: 0}

// Middleware traces every payload to the "payload" logger: the request at debug level before the
// provider, its completion at info level after it. Failed payloads never reach the post phase;
// the store logs those.
type Middleware struct {
	middleware.Base
	log     logger.ILogger
	methods provider.MethodSet
	store   string
}

var _ middleware.Middleware = (*Middleware)(nil)

// New creates the middleware. Without methods every method is traced.
func New(opts middleware.Options, methods ...provider.Method) *Middleware {
	set := provider.AllMethods
	if len(methods) > 0 {
		set = provider.NewMethodSet(methods...)
	}
	return &Middleware{
		Base:    middleware.NewBase(Name, opts),
		log:     logger.GetLogger("payload"),
		methods: set,
	}
}

func (m *Middleware) Version() provider.Semver { return Version }

func (m *Middleware) Conditions() middleware.Conditions {
	return middleware.Conditions{PreProvider: m.methods, PostProvider: m.methods}
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
	switch base.Trigger {
	case provider.TriggerPreProvider:
		m.log.Debugf("%s | %-10s | %s", m.store, base.Method, Describe(payload))
	case provider.TriggerPostProvider:
		m.log.Infof("%s | %-10s | ok", m.store, base.Method)
	}
	return payload, nil
}

// Describe renders the addressing part of a payload for logs, e.g. `key="users" path=[0 name]`.
func Describe(payload provider.Payload) string {
	var parts []string
	switch pl := payload.(type) {
	case *provider.GetPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.SetPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.DeletePayload:
		parts = keyPath(pl.KeyPath)
	case *provider.HasPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.IncPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.DecPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.MathPayload:
		parts = append(keyPath(pl.KeyPath), "op="+pl.Operator.String())
	case *provider.PushPayload:
		parts = keyPath(pl.KeyPath)
	case *provider.RemovePayload:
		parts = append(keyPath(pl.KeyPath), "condition="+pl.Condition.Type().String())
	case *provider.UpdatePayload:
		parts = keyPath(pl.KeyPath)
	case *provider.EnsurePayload:
		parts = []string{"key=" + quote(pl.Key)}
	case *provider.GetManyPayload:
		parts = []string{"keys=" + strings.Join(pl.Keys, ",")}
	case *provider.DeleteManyPayload:
		parts = []string{"keys=" + strings.Join(pl.Keys, ",")}
	case *provider.EveryPayload:
		parts = []string{"condition=" + pl.Condition.Type().String()}
	case *provider.FilterPayload:
		parts = []string{"condition=" + pl.Condition.Type().String()}
	case *provider.FindPayload:
		parts = []string{"condition=" + pl.Condition.Type().String()}
	case *provider.PartitionPayload:
		parts = []string{"condition=" + pl.Condition.Type().String()}
	case *provider.SomePayload:
		parts = []string{"condition=" + pl.Condition.Type().String()}
	case *provider.MapPayload:
		parts = []string{"mapper=" + pl.Mapper.Type().String()}
	}
	return strings.Join(parts, " ")
}

func keyPath(kp provider.KeyPath) []string {
	parts := []string{"key=" + quote(kp.Key)}
	if len(kp.Path) > 0 {
		parts = append(parts, "path=["+strings.Join(kp.Path, " ")+"]")
	}
	return parts
}

func quote(s string) string { return `"` + s + `"` }
