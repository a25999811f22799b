package middleware

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("middleware")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Store is the part of the store facade a middleware may use: running payloads through the
// whole pipeline and the provider's out-of-band metadata.
type Store interface {
	Run(ctx context.Context, payload provider.Payload) (provider.Payload, error)
	GetMetadata(ctx context.Context, key string) (any, bool, error)
	SetMetadata(ctx context.Context, key string, value any) error
	DeleteMetadata(ctx context.Context, key string) error
}

// Context is what a middleware is initialized with.
type Context struct {
	Name  string // name of the store
	Store Store
}

// Conditions declares which operations a middleware observes before and after the provider.
type Conditions struct {
	PreProvider  provider.MethodSet
	PostProvider provider.MethodSet
}

// Options are the construction options every middleware accepts.
type Options struct {
	// AllowMigrations permits Init to migrate the middleware's stored state.
	AllowMigrations bool
}

// Middleware intercepts payloads before and/or after the provider handles them.
//
// Run receives payloads whose Trigger is set to the current phase. It returns the (possibly
// modified) payload. A pre-provider middleware that fully handled an operation sets the
// provider.MetadataSkipProvider flag; data errors are appended to the payload like providers do.
type Middleware interface {
	Name() string
	Version() provider.Semver
	Conditions() Conditions
	// Init runs the middleware's migration gate. It must be called once before Run.
	Init(ctx context.Context, mc Context) (Context, error)
	Run(ctx context.Context, payload provider.Payload) (provider.Payload, error)
}

// --------------------------------------------------------------------------
// Base implementation helpers
// --------------------------------------------------------------------------

// Base bundles name, options and error construction for middleware implementations.
type Base struct {
	name      string
	options   Options
	resolvers []provider.Resolver
}

// NewBase creates a Base.
func NewBase(name string, options Options, resolvers ...provider.Resolver) Base {
	return Base{name: name, options: options, resolvers: resolvers}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Options() Options { return b.options }

// Error builds a middleware error from a bare identifier.
func (b *Base) Error(method provider.Method, identifier string, metadata map[string]any) *provider.Error {
	return provider.NewError(provider.KindMiddleware, b.name, provider.ErrorOptions{
		Identifier: identifier,
		Method:     method,
		Metadata:   metadata,
	}, b.resolvers...)
}

// CheckContext reports NameNotFound or StoreNotFound for an incomplete init context.
func (b *Base) CheckContext(mc Context) error {
	if mc.Name == "" {
		return b.Error(provider.MethodNone, provider.IdentifierNameNotFound, nil)
	}
	if mc.Store == nil {
		return b.Error(provider.MethodNone, provider.IdentifierStoreNotFound, nil)
	}
	return nil
}

// VersionKey is the provider metadata key under which the middleware keeps its version.
func (b *Base) VersionKey() string {
	return VersionKey(b.name)
}

// VersionKey returns the provider metadata key holding the version of the middleware named name.
func VersionKey(name string) string {
	return "middleware:" + provider.ShortName(provider.KindMiddleware, name) + ":version"
}

// NewGate returns a migration gate that keeps the middleware's version in the store metadata.
//
// If no version is stored, legacy decides: it returns the version of an older layout that did not
// record its version, or ok=false for a fresh store, which adopts version. legacy may be nil.
func (b *Base) NewGate(version provider.Semver, migrations []provider.Migration[Context],
	legacy func(ctx context.Context, mc Context) (provider.Semver, bool, error),
) provider.Gate[Context] {
	key := b.VersionKey()
	return provider.Gate[Context]{
		Kind:            provider.KindMiddleware,
		Name:            b.name,
		Version:         version,
		Migrations:      migrations,
		AllowMigrations: b.options.AllowMigrations,
		FetchVersion: func(ctx context.Context, mc Context) (provider.Semver, error) {
			raw, ok, err := mc.Store.GetMetadata(ctx, key)
			if err != nil {
				return provider.Semver{}, err
			}
			if ok {
				s, isString := raw.(string)
				if !isString {
					return provider.Semver{}, fmt.Errorf("stored version has type %T", raw)
				}
				return provider.ParseSemver(s)
			}
			if legacy != nil {
				v, found, err := legacy(ctx, mc)
				if err != nil || found {
					return v, err
				}
			}
			log.Infof("middleware %s on store %q has no stored version, adopting %s", b.name, mc.Name, version)
			return version, mc.Store.SetMetadata(ctx, key, version.String())
		},
		CommitVersion: func(ctx context.Context, mc Context, v provider.Semver) error {
			return mc.Store.SetMetadata(ctx, key, v.String())
		},
	}
}

// RunGate checks the context and runs gate. Implementations call it from their Init.
func (b *Base) RunGate(ctx context.Context, mc Context, gate provider.Gate[Context]) (Context, error) {
	if err := b.CheckContext(mc); err != nil {
		return mc, err
	}
	state, err := gate.Run(ctx, mc)
	if err != nil {
		return mc, err
	}
	log.Debugf("middleware %s initialized for store %q (%s)", b.name, mc.Name, state)
	return mc, nil
}
