package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db/engines/maple"
	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/middleware/autoensure"
	"github.com/ValentinKolb/pKV/lib/middleware/logging"
	"github.com/ValentinKolb/pKV/lib/middleware/metrics"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	database := maple.NewMapleDB(nil)
	t.Cleanup(func() { _ = database.Close() })
	return New("test", dbprovider.New(database, dbprovider.Options{}))
}

// recorder appends "<name>:<trigger>" for every payload it sees.
type recorder struct {
	middleware.Base
	conditions middleware.Conditions
	mu         *sync.Mutex
	trace      *[]string
	run        func(p provider.Payload) error
}

func (r *recorder) Version() provider.Semver          { return provider.Semver{Major: 1} }
func (r *recorder) Conditions() middleware.Conditions { return r.conditions }
func (r *recorder) Init(ctx context.Context, mc middleware.Context) (middleware.Context, error) {
	return r.RunGate(ctx, mc, r.NewGate(r.Version(), nil, nil))
}
func (r *recorder) Run(_ context.Context, p provider.Payload) (provider.Payload, error) {
	r.mu.Lock()
	*r.trace = append(*r.trace, fmt.Sprintf("%s:%s", r.Name(), p.Base().Trigger))
	r.mu.Unlock()
	if r.run != nil {
		return p, r.run(p)
	}
	return p, nil
}

type tracer struct {
	mu    sync.Mutex
	trace []string
}

func (tr *tracer) middleware(name string, pre, post provider.MethodSet, run func(provider.Payload) error) *recorder {
	return &recorder{
		Base:       middleware.NewBase(name, middleware.Options{}),
		conditions: middleware.Conditions{PreProvider: pre, PostProvider: post},
		mu:         &tr.mu,
		trace:      &tr.trace,
		run:        run,
	}
}

func TestRunBeforeInit(t *testing.T) {
	s := newStore(t)
	_, err := s.Run(context.Background(), provider.NewSize())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, _, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitTwiceAndUseAfterInit(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Init(context.Background()))
	assert.True(t, s.Initialized())
	assert.ErrorIs(t, s.Init(context.Background()), ErrAlreadyInitialized)
	assert.ErrorIs(t, s.Use(logging.New(middleware.Options{})), ErrAlreadyInitialized)
}

func TestPipelineOrder(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	s := newStore(t)
	get := provider.NewMethodSet(provider.MethodGet)
	require.NoError(t, s.Use(
		tr.middleware("FirstMiddleware", get, get, nil),
		tr.middleware("SecondMiddleware", get, 0, nil),
		tr.middleware("ThirdMiddleware", 0, get, nil),
		tr.middleware("SetOnlyMiddleware", provider.NewMethodSet(provider.MethodSet), 0, nil),
	))
	require.NoError(t, s.Init(ctx))

	_, _, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FirstMiddleware:" + provider.TriggerPreProvider.String(),
		"SecondMiddleware:" + provider.TriggerPreProvider.String(),
		"FirstMiddleware:" + provider.TriggerPostProvider.String(),
		"ThirdMiddleware:" + provider.TriggerPostProvider.String(),
	}, tr.trace)
}

func TestPipelineStopsAtDataError(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	s := newStore(t)
	inc := provider.NewMethodSet(provider.MethodInc)
	require.NoError(t, s.Use(tr.middleware("AuditMiddleware", inc, inc, nil)))
	require.NoError(t, s.Init(ctx))

	err := s.Inc(ctx, "absent")
	assert.ErrorIs(t, err, provider.ErrMissingData)
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.MethodInc, perr.Method)

	// the post phase never saw the failed payload
	assert.Equal(t, []string{"AuditMiddleware:" + provider.TriggerPreProvider.String()}, tr.trace)
}

func TestPipelineStopsAtMiddlewareError(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	s := newStore(t)
	boom := errors.New("boom")
	set := provider.NewMethodSet(provider.MethodSet)
	require.NoError(t, s.Use(
		tr.middleware("FailingMiddleware", set, 0, func(provider.Payload) error { return boom }),
		tr.middleware("NeverMiddleware", set, set, nil),
	))
	require.NoError(t, s.Init(ctx))

	err := s.Set(ctx, "k", 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"FailingMiddleware:" + provider.TriggerPreProvider.String()}, tr.trace)

	// the provider never ran
	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSkipProvider(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	s := newStore(t)
	get := provider.NewMethodSet(provider.MethodGet)
	require.NoError(t, s.Use(tr.middleware("CacheMiddleware", get, get, func(p provider.Payload) error {
		if p.Base().Trigger == provider.TriggerPreProvider {
			p.(*provider.GetPayload).SetData("cached")
			p.Base().SetMeta(provider.MetadataSkipProvider, true)
		}
		return nil
	})))
	require.NoError(t, s.Init(ctx))

	v, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached", v)
	assert.Len(t, tr.trace, 2)
}

func TestRunValidatesPayload(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Init(context.Background()))
	_, err := s.Run(context.Background(), &provider.GetPayload{Envelope: provider.Envelope{Method: provider.MethodSet}})
	assert.Error(t, err)
	_, err = s.Filter(context.Background(), nil)
	assert.Error(t, err)
}

func TestInitFailsOnOldMiddlewareState(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Provider().Init(ctx, provider.Context{Name: "test"})
	require.NoError(t, err)
	require.NoError(t, s.Provider().SetMetadata(ctx, "middleware:Logging:version", "0.1.0"))

	require.NoError(t, s.Use(logging.New(middleware.Options{})))
	err = s.Init(ctx)
	assert.ErrorIs(t, err, provider.ErrNeedsMigration)
	assert.False(t, s.Initialized())
}

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.Set(ctx, "alice", map[string]any{"age": 30, "tags": []any{"a"}}))
	require.NoError(t, s.Set(ctx, "bob", map[string]any{"age": 25}))

	age, ok, err := s.Get(ctx, "alice", "age")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(30), age)

	require.NoError(t, s.Inc(ctx, "alice", "age"))
	require.NoError(t, s.Math(ctx, "bob", provider.OperatorMultiplication, 2, "age"))
	require.NoError(t, s.Push(ctx, "alice", "b", "tags"))
	require.NoError(t, s.Remove(ctx, "alice", provider.ByValue("a"), "tags"))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"alice": map[string]any{"age": float64(31), "tags": []any{"b"}},
		"bob":   map[string]any{"age": float64(50)},
	}, entries)

	older, err := s.Filter(ctx, provider.ByValue(float64(50), "age"))
	require.NoError(t, err)
	assert.Contains(t, older, "bob")
	assert.Len(t, older, 1)

	ages, err := s.Map(ctx, provider.MapByPath("age"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{float64(31), float64(50)}, ages)

	updated, err := s.Update(ctx, "bob", func(_ context.Context, v any, _ string) (any, error) {
		return v.(float64) + 1, nil
	}, "age")
	require.NoError(t, err)
	assert.Equal(t, float64(51), updated)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	key, err := s.AutoKey(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	require.NoError(t, s.DeleteMany(ctx, "alice", "bob"))
	_, err = s.Random(ctx, 1, false)
	assert.ErrorIs(t, err, provider.ErrMissingData)
}

func TestWithConcreteMiddlewares(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := metrics.New(middleware.Options{})
	ensure, err := autoensure.New(autoensure.Options{Default: 0})
	require.NoError(t, err)
	require.NoError(t, s.Use(m, logging.New(middleware.Options{}), ensure))
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.Inc(ctx, "visits"))
	require.NoError(t, s.Inc(ctx, "visits"))
	v, _, err := s.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	seeded, err := ensure.Seeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	assert.Equal(t, uint64(2), m.Completed(provider.MethodInc))
	// the seeding payloads of autoensure went through the pipeline as well
	assert.Equal(t, uint64(1), m.Completed(provider.MethodEnsure))
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Set(ctx, "n", 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := s.Inc(ctx, "n"); err != nil {
					t.Errorf("inc: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _, err := s.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, float64(400), v)
}
