package util

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/pKV/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := "some words that are long enough to need more than one line of help text"
	lines := strings.Split(WrapString(text), "\n")
	assert.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, text, strings.Join(lines, " "))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), ParseValue("3"))
	assert.Equal(t, map[string]any{"a": true}, ParseValue(`{"a":true}`))
	assert.Equal(t, "plain text", ParseValue("plain text"))
	assert.Equal(t, `{"a":[1,"x"]}`, FormatValue(map[string]any{"a": []any{1, "x"}}))
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, []string{"a", "0", "b"}, SplitPath("a.0.b"))
}

func config(engine, data string) *common.StoreConfig {
	return &common.StoreConfig{
		Name:            "cli",
		Engine:          engine,
		DataPath:        data,
		AutoKeyStrategy: common.AutoKeyCounter,
		Middlewares:     []string{common.MiddlewareMetrics, common.MiddlewareLogging, common.MiddlewareAutoEnsure},
		EnsureDefault:   "0",
		LogLevel:        "error",
	}
}

func TestOpenStorePersistsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, engine := range []string{"maple", "bolt", "sqlite"} {
		t.Run(engine, func(t *testing.T) {
			conf := config(engine, filepath.Join(dir, engine+".db"))

			s, closeFn, err := OpenStore(ctx, conf)
			require.NoError(t, err)
			require.NoError(t, s.Inc(ctx, "visits"))
			require.NoError(t, closeFn())

			s, closeFn, err = OpenStore(ctx, conf)
			require.NoError(t, err)
			defer closeFn()
			v, ok, err := s.Get(ctx, "visits")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, float64(1), v)
		})
	}
}

func TestOpenStoreRejectsInvalidConfig(t *testing.T) {
	conf := config("maple", "")
	conf.Middlewares = []string{"unknown"}
	_, _, err := OpenStore(context.Background(), conf)
	assert.Error(t, err)
}
