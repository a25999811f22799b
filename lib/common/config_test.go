package common

import (
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() StoreConfig {
	return StoreConfig{
		Name:            "test",
		Engine:          "maple",
		AutoKeyStrategy: AutoKeyCounter,
		LogLevel:        "info",
	}
}

func TestStoreConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cases := map[string]func(c *StoreConfig){
		"empty name":     func(c *StoreConfig) { c.Name = "" },
		"bad engine":     func(c *StoreConfig) { c.Engine = "redis" },
		"bolt w/o path":  func(c *StoreConfig) { c.Engine = "bolt" },
		"bad strategy":   func(c *StoreConfig) { c.AutoKeyStrategy = "random" },
		"bad middleware": func(c *StoreConfig) { c.Middlewares = []string{"cache"} },
		"bad log level":  func(c *StoreConfig) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestStoreConfigString(t *testing.T) {
	cfg := validConfig()
	cfg.Middlewares = []string{MiddlewareMetrics}
	s := cfg.String()

	for _, want := range []string{"STORE", "STORAGE", "MIDDLEWARES", "LOGGING", "(in memory)", "metrics"} {
		assert.True(t, strings.Contains(s, want), "missing %q in\n%s", want, s)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG, "INFO": logger.INFO, "warn": logger.WARNING, "warning": logger.WARNING, "error": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestInitLoggers(t *testing.T) {
	require.NoError(t, InitLoggers("debug"))
	require.NoError(t, InitLoggers("error")) // installing twice is fine
	assert.Error(t, InitLoggers("nope"))

	l := CreateLogger("test").(*pkvLogger)
	assert.True(t, l.enabled(logger.INFO))
	assert.False(t, l.enabled(logger.DEBUG))
	l.SetLevel(logger.DEBUG)
	assert.True(t, l.enabled(logger.DEBUG))
}
