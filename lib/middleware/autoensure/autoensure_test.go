package autoensure

import (
	"context"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db/engines/maple"
	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerStore runs payloads directly on a provider, without middlewares.
type providerStore struct{ p provider.Provider }

func (s providerStore) Run(ctx context.Context, p provider.Payload) (provider.Payload, error) {
	return provider.Dispatch(ctx, s.p, p)
}
func (s providerStore) GetMetadata(ctx context.Context, key string) (any, bool, error) {
	return s.p.GetMetadata(ctx, key)
}
func (s providerStore) SetMetadata(ctx context.Context, key string, value any) error {
	return s.p.SetMetadata(ctx, key, value)
}
func (s providerStore) DeleteMetadata(ctx context.Context, key string) error {
	return s.p.DeleteMetadata(ctx, key)
}

func newStore(t *testing.T) providerStore {
	t.Helper()
	database := maple.NewMapleDB(nil)
	t.Cleanup(func() { _ = database.Close() })
	p := dbprovider.New(database, dbprovider.Options{})
	_, err := p.Init(context.Background(), provider.Context{Name: "counters"})
	require.NoError(t, err)
	return providerStore{p: p}
}

func newMiddleware(t *testing.T, store providerStore, opts Options) *Middleware {
	t.Helper()
	m, err := New(opts)
	require.NoError(t, err)
	_, err = m.Init(context.Background(), middleware.Context{Name: "counters", Store: store})
	require.NoError(t, err)
	return m
}

// pipeline runs p through the middleware and then the provider.
func pipeline(t *testing.T, m *Middleware, store providerStore, p provider.Payload) provider.Payload {
	t.Helper()
	ctx := context.Background()
	p.Base().Trigger = provider.TriggerPreProvider
	p, err := m.Run(ctx, p)
	require.NoError(t, err)
	p.Base().Trigger = provider.TriggerNone
	out, err := store.Run(ctx, p)
	require.NoError(t, err)
	return out
}

func read(t *testing.T, store providerStore, key string) any {
	t.Helper()
	out, err := store.Run(context.Background(), provider.NewGet(key))
	require.NoError(t, err)
	return out.(*provider.GetPayload).Data
}

func TestNewRequiresDefault(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoDefault)
}

func TestSeedsAbsentKeys(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := newMiddleware(t, store, Options{Default: 0})

	inc := pipeline(t, m, store, provider.NewInc("hits"))
	require.False(t, inc.Base().Failed(), "%v", inc.Base().Err())

	// an existing key is left alone
	inc = pipeline(t, m, store, provider.NewInc("hits"))
	require.False(t, inc.Base().Failed(), "%v", inc.Base().Err())
	assert.Equal(t, float64(2), read(t, store, "hits"))

	get := pipeline(t, m, store, provider.NewGet("other")).(*provider.GetPayload)
	assert.True(t, get.HasData)
	assert.Equal(t, float64(0), get.Data)

	seeded, err := m.Seeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, seeded)
}

// blindStore reports every key as absent, like a Has that lost the race against another writer.
type blindStore struct{ providerStore }

func (s blindStore) Run(ctx context.Context, p provider.Payload) (provider.Payload, error) {
	if has, ok := p.(*provider.HasPayload); ok {
		return has, nil
	}
	return s.providerStore.Run(ctx, p)
}

func TestCountsOnlyStoredDefaults(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.Run(ctx, provider.NewSet("hits", nil, 7))
	require.NoError(t, err)

	m, err := New(Options{Default: 0})
	require.NoError(t, err)
	_, err = m.Init(ctx, middleware.Context{Name: "counters", Store: blindStore{store}})
	require.NoError(t, err)

	inc := pipeline(t, m, store, provider.NewInc("hits"))
	require.False(t, inc.Base().Failed(), "%v", inc.Base().Err())
	assert.Equal(t, float64(8), read(t, store, "hits"))

	seeded, err := m.Seeded(ctx)
	require.NoError(t, err)
	assert.Zero(t, seeded)
}

func TestIgnoresOtherMethods(t *testing.T) {
	store := newStore(t)
	m := newMiddleware(t, store, Options{Default: []any{}})

	assert.False(t, m.Conditions().PreProvider.Has(provider.MethodHas))
	assert.Zero(t, m.Conditions().PostProvider)

	has := pipeline(t, m, store, provider.NewHas("absent")).(*provider.HasPayload)
	assert.False(t, has.Data)

	push := pipeline(t, m, store, provider.NewPush("list", nil, "a"))
	require.False(t, push.Base().Failed(), "%v", push.Base().Err())
	assert.Equal(t, []any{"a"}, read(t, store, "list"))
}

func TestMigratesLegacyCounter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetMetadata(ctx, legacyMetaSeeded, 5))

	m, err := New(Options{Default: 0})
	require.NoError(t, err)
	_, err = m.Init(ctx, middleware.Context{Name: "counters", Store: store})
	assert.ErrorIs(t, err, provider.ErrNeedsMigration)

	m, err = New(Options{Default: 0, Options: middleware.Options{AllowMigrations: true}})
	require.NoError(t, err)
	_, err = m.Init(ctx, middleware.Context{Name: "counters", Store: store})
	require.NoError(t, err)

	seeded, err := m.Seeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, seeded)
	_, ok, err := store.GetMetadata(ctx, legacyMetaSeeded)
	require.NoError(t, err)
	assert.False(t, ok)

	version, _, err := store.GetMetadata(ctx, m.VersionKey())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", version)
}
