package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metaStore is a Store keeping only metadata.
type metaStore struct {
	mu   sync.Mutex
	meta map[string]any
}

func newMetaStore() *metaStore { return &metaStore{meta: map[string]any{}} }

func (s *metaStore) Run(_ context.Context, p provider.Payload) (provider.Payload, error) {
	return p, nil
}

func (s *metaStore) GetMetadata(_ context.Context, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meta[key]
	return v, ok, nil
}

func (s *metaStore) SetMetadata(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *metaStore) DeleteMetadata(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, key)
	return nil
}

// stub is a middleware with fixed conditions.
type stub struct {
	Base
	conditions Conditions
}

func newStub(name string, pre, post provider.MethodSet) *stub {
	return &stub{Base: NewBase(name, Options{}), conditions: Conditions{PreProvider: pre, PostProvider: post}}
}

func (s *stub) Version() provider.Semver { return provider.Semver{Major: 1} }
func (s *stub) Conditions() Conditions   { return s.conditions }
func (s *stub) Init(ctx context.Context, mc Context) (Context, error) {
	return s.RunGate(ctx, mc, s.NewGate(s.Version(), nil, nil))
}
func (s *stub) Run(_ context.Context, p provider.Payload) (provider.Payload, error) { return p, nil }

func names(ms []Middleware) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name()
	}
	return out
}

func TestRegistryTriggerFilter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("M1", provider.NewMethodSet(provider.MethodGet), 0)))
	require.NoError(t, r.Register(newStub("M2", provider.NewMethodSet(provider.MethodSet), provider.NewMethodSet(provider.MethodSet))))
	require.NoError(t, r.Register(newStub("M3", provider.NewMethodSet(provider.MethodGet, provider.MethodSet), 0)))

	assert.Equal(t, []string{"M1", "M3"}, names(r.GetPreMiddlewares(provider.MethodGet)))
	assert.Empty(t, r.GetPostMiddlewares(provider.MethodGet))
	assert.Equal(t, []string{"M2", "M3"}, names(r.GetPreMiddlewares(provider.MethodSet)))
	assert.Equal(t, []string{"M2"}, names(r.GetPostMiddlewares(provider.MethodSet)))
	assert.Empty(t, r.GetPreMiddlewares(provider.MethodDelete))
	assert.Equal(t, []string{"M1", "M2", "M3"}, names(r.List()))
}

func TestRegistryOrderIsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{"zeta", "alpha", "mid", "beta"}
	for _, n := range order {
		require.NoError(t, r.Register(newStub(n, provider.AllMethods, provider.AllMethods)))
	}
	assert.Equal(t, order, names(r.GetPreMiddlewares(provider.MethodKeys)))
	assert.Equal(t, order, names(r.GetPostMiddlewares(provider.MethodKeys)))
	assert.Equal(t, 4, r.Size())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("M", 0, 0)))
	assert.Error(t, r.Register(newStub("M", 0, 0)))

	m, ok := r.Get("M")
	require.True(t, ok)
	assert.Equal(t, "M", m.Name())
	_, ok = r.Get("other")
	assert.False(t, ok)
}

func TestInitChecksContext(t *testing.T) {
	m := newStub("AuditMiddleware", 0, 0)

	_, err := m.Init(context.Background(), Context{Store: newMetaStore()})
	assert.ErrorIs(t, err, provider.ErrNameNotFound)

	_, err = m.Init(context.Background(), Context{Name: "s"})
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.IdentifierStoreNotFound, perr.Identifier)
	assert.Equal(t, provider.KindMiddleware, perr.Kind)
	assert.Equal(t, "Audit", perr.Name)
}

func TestGateAdoptsAndChecksVersion(t *testing.T) {
	store := newMetaStore()
	m := newStub("AuditMiddleware", 0, 0)
	mc := Context{Name: "s", Store: store}

	_, err := m.Init(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", store.meta["middleware:Audit:version"])

	// an older stored version needs a migration
	store.meta["middleware:Audit:version"] = "0.9.0"
	_, err = m.Init(context.Background(), mc)
	assert.ErrorIs(t, err, provider.ErrNeedsMigration)

	allowed := &stub{Base: NewBase("AuditMiddleware", Options{AllowMigrations: true})}
	_, err = allowed.Init(context.Background(), mc)
	assert.ErrorIs(t, err, provider.ErrMigrationNotFound)
}

func TestGateLegacyVersion(t *testing.T) {
	store := newMetaStore()
	ran := false
	b := NewBase("LegacyMiddleware", Options{AllowMigrations: true})
	gate := b.NewGate(provider.Semver{Major: 2}, []provider.Migration[Context]{{
		Version: provider.Semver{Major: 1},
		Run: func(context.Context, Context) error {
			ran = true
			return nil
		},
	}}, func(context.Context, Context) (provider.Semver, bool, error) {
		return provider.Semver{Major: 1}, true, nil
	})

	_, err := b.RunGate(context.Background(), Context{Name: "s", Store: store}, gate)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "2.0.0", store.meta["middleware:Legacy:version"])
}
