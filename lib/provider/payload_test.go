package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOperator(t *testing.T) {
	assert.Equal(t, 3.0, ApplyOperator(OperatorAddition, 1, 2))
	assert.Equal(t, 2.0, ApplyOperator(OperatorExponent, 2, 1))
	assert.Equal(t, 1.0, ApplyOperator(OperatorRemainder, 1, 2))
	assert.Equal(t, -1.0, ApplyOperator(OperatorSubtraction, 1, 2))
	assert.Equal(t, 6.0, ApplyOperator(OperatorMultiplication, 2, 3))
	assert.Equal(t, 0.5, ApplyOperator(OperatorDivision, 1, 2))
	assert.Equal(t, -1.0, ApplyOperator(OperatorRemainder, -5, 2))
	assert.Panics(t, func() { ApplyOperator(MathOperator(0), 1, 1) })
}

func TestParseOperator(t *testing.T) {
	for in, want := range map[string]MathOperator{
		"+": OperatorAddition, "add": OperatorAddition, " SUB ": OperatorSubtraction, "*": OperatorMultiplication,
		"div": OperatorDivision, "%": OperatorRemainder, "**": OperatorExponent, "pow": OperatorExponent,
	} {
		op, err := ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, op, in)
	}
	_, err := ParseOperator("sqrt")
	assert.Error(t, err)

	for _, op := range []MathOperator{OperatorAddition, OperatorSubtraction, OperatorMultiplication, OperatorDivision, OperatorRemainder, OperatorExponent} {
		parsed, err := ParseOperator(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
}

func TestMethodSet(t *testing.T) {
	s := NewMethodSet(MethodGet, MethodSet, MethodGet)
	assert.True(t, s.Has(MethodGet))
	assert.True(t, s.Has(MethodSet))
	assert.False(t, s.Has(MethodDelete))
	assert.False(t, s.Has(MethodNone))
	assert.Equal(t, []Method{MethodGet, MethodSet}, s.Methods())

	assert.Len(t, Methods(), 29)
	for _, m := range Methods() {
		assert.True(t, AllMethods.Has(m), m.String())
		parsed, ok := ParseMethod(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, parsed)
	}
	_, ok := ParseMethod("none")
	assert.False(t, ok)
}

// Every constructor produces a payload whose method matches its type.
func TestConstructorsValidate(t *testing.T) {
	hook := func(context.Context, any, string) (bool, error) { return true, nil }
	mapHook := func(context.Context, any, string) (any, error) { return nil, nil }
	each := func(context.Context, any, string) error { return nil }

	payloads := []Payload{
		NewAutoKey(), NewClear(), NewDec("k"), NewDelete("k"), NewDeleteMany("a", "b"), NewEach(each),
		NewEnsure("k", 1), NewEntries(), NewEvery(ByValue(1)), NewFilter(ByHook(hook)), NewFind(ByValue("x", "a")),
		NewGet("k", "a"), NewGetMany("k"), NewHas("k"), NewInc("k"), NewKeys(), NewMap(MapByPath("a")),
		NewMath("k", nil, OperatorAddition, 1), NewPartition(ByHook(hook)), NewPush("k", nil, 1), NewRandom(1, false),
		NewRandomKey(1, true), NewRemove("k", nil, ByValue(1)), NewSet("k", nil, 1), NewSetMany(nil, false),
		NewSize(), NewSome(ByValue(true)), NewUpdate("k", nil, mapHook), NewValues(), NewMap(MapByHook(mapHook)),
	}
	seen := MethodSet(0)
	for _, pl := range payloads {
		assert.NoError(t, Validate(pl), "%T", pl)
		seen |= pl.Base().Method.Set()
	}
	assert.Equal(t, AllMethods, seen, "every method has a constructor")
}

// A predicate payload carries exactly one variant, discriminated by its type tag.
func TestConditionShape(t *testing.T) {
	hook := func(context.Context, any, string) (bool, error) { return true, nil }

	byValue := NewFilter(ByValue(1, "a"))
	require.Equal(t, TypeValue, byValue.Condition.Type())
	c, ok := byValue.Condition.(ConditionByValue)
	require.True(t, ok)
	assert.Equal(t, 1, c.Value)
	assert.Equal(t, []string{"a"}, c.Path)

	byHook := NewFilter(ByHook(hook))
	require.Equal(t, TypeHook, byHook.Condition.Type())
	_, ok = byHook.Condition.(ConditionByValue)
	assert.False(t, ok)

	assert.Equal(t, TypePath, MapByPath("a").Type())
	assert.Equal(t, TypeHook, MapByHook(nil).Type())

	assert.Error(t, Validate(NewFilter(nil)))
	assert.Error(t, Validate(NewSome(ConditionByHook{})))
	assert.Error(t, Validate(NewMap(nil)))
	assert.Error(t, Validate(NewEach(nil)))
	assert.Error(t, Validate(NewUpdate("k", nil, nil)))

	wrong := NewGet("k")
	wrong.Method = MethodSet
	assert.Error(t, Validate(wrong))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "k", KeyPath{Key: "k"}.Location())
	assert.Equal(t, "k.a.0", KeyPath{Key: "k", Path: []string{"a", "0"}}.Location())
}

func TestNormalize(t *testing.T) {
	v, err := Normalize(NewJSONCodec(), map[string]any{"n": 1, "l": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.0, "l": []any{1.0, 2.0}}, v)

	_, err = Normalize(NewJSONCodec(), func() {})
	assert.Error(t, err)
}
