package logging

import (
	"context"
	"testing"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		name    string
		payload provider.Payload
		want    string
	}{
		{"key only", provider.NewGet("k"), `key="k"`},
		{"nested path", provider.NewGet("users", "0", "name"), `key="users" path=[0 name]`},
		{"math", provider.NewMath("n", nil, provider.OperatorExponent, 2), `key="n" op=pow`},
		{"remove by value", provider.NewRemove("l", nil, provider.ByValue(1)), `key="l" condition=Value`},
		{"many keys", provider.NewGetMany("a", "b"), `keys=a,b`},
		{"find by hook", provider.NewFind(provider.ByHook(func(context.Context, any, string) (bool, error) { return true, nil })), `condition=Hook`},
		{"map by path", provider.NewMap(provider.MapByPath("x")), `mapper=Path`},
		{"no addressing", provider.NewSize(), ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.payload))
		})
	}
}

func TestRunPassesPayloadThrough(t *testing.T) {
	m := New(middleware.Options{}, provider.MethodGet)
	assert.True(t, m.Conditions().PreProvider.Has(provider.MethodGet))
	assert.False(t, m.Conditions().PostProvider.Has(provider.MethodSet))

	p := provider.NewGet("k")
	p.Trigger = provider.TriggerPostProvider
	out, err := m.Run(context.Background(), p)
	assert.NoError(t, err)
	assert.Same(t, p, out)

	all := New(middleware.Options{})
	assert.Equal(t, provider.AllMethods, all.Conditions().PreProvider)
}
