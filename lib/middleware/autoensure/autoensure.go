package autoensure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("middleware")

// Name is the implementation name of the middleware.
const Name = "AutoEnsureMiddleware"

// Version of the middleware's stored state.
var Version = provider.Semver{Major: 2, Minor: 0, Patch: 0}

// Metadata keys.
const (
	MetaSeeded = "autoensure:seeded"

	// legacyMetaSeeded is where 1.0.0 counted seeded keys; that layout stored no version.
	legacyMetaSeeded = "autoEnsureCount"
)

// Methods the middleware seeds keys for.
var Methods = provider.NewMethodSet(
	provider.MethodGet,
	provider.MethodInc,
	provider.MethodDec,
	provider.MethodMath,
	provider.MethodPush,
	provider.MethodUpdate,
	provider.MethodRemove,
)

// ErrNoDefault is returned by New for a nil default value.
var ErrNoDefault = errors.New("autoensure: default value must not be nil")

// Options configures the middleware.
type Options struct {
	middleware.Options

	// Default is the value stored under absent keys (required).
	Default any
}

// Middleware stores a default value under the addressed key before reads and mutations if the key
// is absent, so that e.g. Inc on a new key starts from the default instead of failing with
// MissingData. Only the key itself is seeded; nested paths inside it are not created.
//
// The number of seeded keys is kept in the provider metadata under MetaSeeded.
type Middleware struct {
	middleware.Base
	def   any
	store middleware.Store

	seededMu sync.Mutex
}

var _ middleware.Middleware = (*Middleware)(nil)

// New creates the middleware.
func New(opts Options) (*Middleware, error) {
	if opts.Default == nil {
		return nil, ErrNoDefault
	}
	return &Middleware{
		Base: middleware.NewBase(Name, opts.Options),
		def:  opts.Default,
	}, nil
}

func (m *Middleware) Version() provider.Semver { return Version }

func (m *Middleware) Conditions() middleware.Conditions {
	return middleware.Conditions{PreProvider: Methods}
}

// --------------------------------------------------------------------------
// Initialization and migrations
// --------------------------------------------------------------------------

func (m *Middleware) migrations() []provider.Migration[middleware.Context] {
	return []provider.Migration[middleware.Context]{
		{
			// 1.0.0 counted seeded keys under a different metadata key
			Version: provider.Semver{Major: 1, Minor: 0, Patch: 0},
			Run: func(ctx context.Context, mc middleware.Context) error {
				count, ok, err := mc.Store.GetMetadata(ctx, legacyMetaSeeded)
				if err != nil || !ok {
					return err
				}
				if err := mc.Store.SetMetadata(ctx, MetaSeeded, count); err != nil {
					return err
				}
				return mc.Store.DeleteMetadata(ctx, legacyMetaSeeded)
			},
		},
	}
}

// legacy detects the 1.0.0 layout, which kept no version.
func legacy(ctx context.Context, mc middleware.Context) (provider.Semver, bool, error) {
	_, ok, err := mc.Store.GetMetadata(ctx, legacyMetaSeeded)
	if err != nil || !ok {
		return provider.Semver{}, false, err
	}
	return provider.Semver{Major: 1, Minor: 0, Patch: 0}, true, nil
}

func (m *Middleware) Init(ctx context.Context, mc middleware.Context) (middleware.Context, error) {
	mc, err := m.RunGate(ctx, mc, m.NewGate(Version, m.migrations(), legacy))
	if err != nil {
		return mc, err
	}
	m.store = mc.Store
	return mc, nil
}

// --------------------------------------------------------------------------
// Run
// --------------------------------------------------------------------------

func (m *Middleware) Run(ctx context.Context, payload provider.Payload) (provider.Payload, error) {
	key, ok := targetKey(payload)
	if !ok || payload.Base().Trigger != provider.TriggerPreProvider {
		return payload, nil
	}

	has, err := m.store.Run(ctx, provider.NewHas(key))
	if err != nil {
		return payload, err
	}
	if exists := has.(*provider.HasPayload); exists.Failed() || exists.Data {
		return payload, nil
	}

	ensured, err := m.store.Run(ctx, provider.NewEnsure(key, m.def))
	if err != nil {
		return payload, err
	}
	if perr := ensured.Base().Err(); perr != nil {
		return payload, fmt.Errorf("seed %q: %w", key, perr)
	}
	// another writer may have created the key since the Has check
	if !ensured.(*provider.EnsurePayload).Created {
		return payload, nil
	}
	log.Debugf("seeded absent key %q before %s", key, payload.Base().Method)
	return payload, m.countSeeded(ctx)
}

func (m *Middleware) countSeeded(ctx context.Context) error {
	m.seededMu.Lock()
	defer m.seededMu.Unlock()

	var count float64
	if raw, ok, err := m.store.GetMetadata(ctx, MetaSeeded); err != nil {
		return err
	} else if ok {
		count, _ = raw.(float64)
	}
	return m.store.SetMetadata(ctx, MetaSeeded, count+1)
}

// Seeded returns how many keys the middleware seeded in the store so far.
func (m *Middleware) Seeded(ctx context.Context) (int, error) {
	raw, ok, err := m.store.GetMetadata(ctx, MetaSeeded)
	if err != nil || !ok {
		return 0, err
	}
	count, _ := raw.(float64)
	return int(count), nil
}

// targetKey returns the key a payload addresses.
func targetKey(payload provider.Payload) (string, bool) {
	switch pl := payload.(type) {
	case *provider.GetPayload:
		return pl.Key, true
	case *provider.IncPayload:
		return pl.Key, true
	case *provider.DecPayload:
		return pl.Key, true
	case *provider.MathPayload:
		return pl.Key, true
	case *provider.PushPayload:
		return pl.Key, true
	case *provider.UpdatePayload:
		return pl.Key, true
	case *provider.RemovePayload:
		return pl.Key, true
	default:
		return "", false
	}
}
