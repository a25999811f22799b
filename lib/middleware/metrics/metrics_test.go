package metrics

import (
	"bytes"
	"context"
	"testing"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metaStore struct{ meta map[string]any }

func (s *metaStore) Run(_ context.Context, p provider.Payload) (provider.Payload, error) { return p, nil }
func (s *metaStore) GetMetadata(_ context.Context, key string) (any, bool, error) {
	v, ok := s.meta[key]
	return v, ok, nil
}
func (s *metaStore) SetMetadata(_ context.Context, key string, value any) error {
	s.meta[key] = value
	return nil
}
func (s *metaStore) DeleteMetadata(_ context.Context, key string) error {
	delete(s.meta, key)
	return nil
}

func initialized(t *testing.T) *Middleware {
	t.Helper()
	m := New(middleware.Options{})
	_, err := m.Init(context.Background(), middleware.Context{Name: "users", Store: &metaStore{meta: map[string]any{}}})
	require.NoError(t, err)
	return m
}

func run(t *testing.T, m *Middleware, p provider.Payload, trigger provider.Trigger) {
	t.Helper()
	p.Base().Trigger = trigger
	_, err := m.Run(context.Background(), p)
	require.NoError(t, err)
}

func TestCountsStartedAndCompleted(t *testing.T) {
	m := initialized(t)

	ok := provider.NewGet("a")
	run(t, m, ok, provider.TriggerPreProvider)
	run(t, m, ok, provider.TriggerPostProvider)

	// a failed operation never reaches the post phase
	run(t, m, provider.NewGet("b"), provider.TriggerPreProvider)

	assert.Equal(t, uint64(2), m.Started(provider.MethodGet))
	assert.Equal(t, uint64(1), m.Completed(provider.MethodGet))
	assert.Equal(t, uint64(0), m.Started(provider.MethodSet))
}

func TestWritePrometheus(t *testing.T) {
	m := initialized(t)
	p := provider.NewSet("a", nil, 1)
	run(t, m, p, provider.TriggerPreProvider)
	run(t, m, p, provider.TriggerPostProvider)

	var buf bytes.Buffer
	m.WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, `pkv_operations_started_total{store="users",method="set"} 1`)
	assert.Contains(t, out, `pkv_operations_total{store="users",method="set"} 1`)
	assert.Contains(t, out, "pkv_operation_duration_seconds")
}
