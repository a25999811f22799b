package hooks

import (
	"context"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db/engines/maple"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/ValentinKolb/pKV/lib/provider/dbprovider"
	"github.com/ValentinKolb/pKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = map[string]any{"name": "alice", "age": float64(31)}

func TestCondition(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		compile func(string) (provider.Hook[bool], error)
		expr    string
		want    bool
	}{
		{"expr field", Condition, `value.age > 30`, true},
		{"expr key", Condition, `key startsWith "user:"`, true},
		{"expr false", Condition, `value.name == "bob"`, false},
		{"cel field", CELCondition, `value.age > 30`, true},
		{"cel key", CELCondition, `key.startsWith("user:")`, true},
		{"cel false", CELCondition, `value.name == "bob"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hook, err := tc.compile(tc.expr)
			require.NoError(t, err)
			got, err := hook(ctx, alice, "user:1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for name, compile := range map[string]func(string) (provider.Hook[bool], error){
		"expr": Condition,
		"cel":  CELCondition,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := compile("")
			assert.Error(t, err)

			_, err = compile(`value.age >`)
			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, name, evalErr.Engine)
			assert.Empty(t, evalErr.Key)

			// not a boolean
			_, err = compile(`"text"`)
			assert.Error(t, err)
		})
	}

	_, err := Mapper(`unknownVariable + 1`)
	assert.Error(t, err)
}

func TestMapperAndUpdater(t *testing.T) {
	ctx := context.Background()

	name, err := Mapper(`value.name`)
	require.NoError(t, err)
	got, err := name(ctx, alice, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	double, err := Updater(`value * 2`)
	require.NoError(t, err)
	got, err = double(ctx, float64(21), "n")
	require.NoError(t, err)
	assert.Equal(t, float64(42), got)
}

func TestEvaluationErrorCarriesKey(t *testing.T) {
	hook, err := Updater(`value * 2`)
	require.NoError(t, err)
	_, err = hook(context.Background(), "text", "k")
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "k", evalErr.Key)
	assert.Contains(t, evalErr.Error(), `on key "k"`)
}

func TestCancelledContext(t *testing.T) {
	hook, err := Mapper(`value`)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = hook(ctx, 1, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHooksInStore(t *testing.T) {
	ctx := context.Background()
	database := maple.NewMapleDB(nil)
	defer database.Close()
	s := store.New("people", dbprovider.New(database, dbprovider.Options{}))
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.Set(ctx, "alice", alice))
	require.NoError(t, s.Set(ctx, "bob", map[string]any{"name": "bob", "age": 17}))

	adult, err := CELCondition(`value.age >= 18`)
	require.NoError(t, err)
	adults, err := s.Filter(ctx, provider.ByHook(adult))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"alice": alice}, adults)

	names, err := Mapper(`value.name`)
	require.NoError(t, err)
	mapped, err := s.Map(ctx, provider.MapByHook(names))
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", "bob"}, mapped)

	birthday, err := Updater(`value + 1`)
	require.NoError(t, err)
	age, err := s.Update(ctx, "bob", birthday, "age")
	require.NoError(t, err)
	assert.Equal(t, float64(18), age)

	all, err := Condition(`value.age >= 18`)
	require.NoError(t, err)
	every, err := s.Every(ctx, provider.ByHook(all))
	require.NoError(t, err)
	assert.True(t, every)
}
