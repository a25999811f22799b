package kv

import (
	"context"
	"testing"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conditionCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addConditionFlags(cmd)
	addPathFlag(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestConditionFlags(t *testing.T) {
	ctx := context.Background()
	value := map[string]any{"age": float64(40)}

	for _, args := range [][]string{{"--where", "value.age > 30"}, {"--cel", "value.age > 30"}} {
		cond, err := conditionFlags(conditionCmd(t, args...))
		require.NoError(t, err)
		byHook, ok := cond.(provider.ConditionByHook)
		require.True(t, ok)
		match, err := byHook.Hook(ctx, value, "k")
		require.NoError(t, err)
		assert.True(t, match, "%v", args)
	}

	cond, err := conditionFlags(conditionCmd(t, "--equals", "40", "--field", "age"))
	require.NoError(t, err)
	assert.Equal(t, provider.ConditionByValue{Path: []string{"age"}, Value: float64(40)}, cond)

	_, err = conditionFlags(conditionCmd(t))
	assert.Error(t, err)

	_, err = conditionFlags(conditionCmd(t, "--where", "value.age >"))
	assert.Error(t, err)
}

func TestPathFlag(t *testing.T) {
	assert.Nil(t, pathFlag(conditionCmd(t)))
	assert.Equal(t, []string{"address", "city"}, pathFlag(conditionCmd(t, "--path", "address.city")))
}

func TestGetKeys(t *testing.T) {
	perfKeySpread = 3
	assert.Equal(t, []string{"__test-get-0", "__test-get-1", "__test-get-2"}, getKeys("get"))
}
