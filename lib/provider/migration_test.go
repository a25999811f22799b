package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateHarness struct {
	stored    Semver
	ran       []Semver
	committed *Semver
}

func (h *gateHarness) gate(declared Semver, allow bool, migrations ...Semver) Gate[string] {
	g := Gate[string]{
		Kind:            KindProvider,
		Name:            "TestProvider",
		Version:         declared,
		AllowMigrations: allow,
		FetchVersion: func(context.Context, string) (Semver, error) {
			return h.stored, nil
		},
		CommitVersion: func(_ context.Context, _ string, v Semver) error {
			h.committed = &v
			return nil
		},
	}
	for _, v := range migrations {
		g.Migrations = append(g.Migrations, Migration[string]{
			Version: v,
			Run: func(context.Context, string) error {
				h.ran = append(h.ran, v)
				return nil
			},
		})
	}
	return g
}

func TestSemverOrdering(t *testing.T) {
	versions := []Semver{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 9, 9}, {1, 0, 0}, {1, 0, 9}, {1, 2, 0}, {2, 0, 0}, {10, 0, 0},
	}
	for i, a := range versions {
		for j, b := range versions {
			switch {
			case i < j:
				assert.True(t, a.Less(b), "%s < %s", a, b)
				assert.Equal(t, -1, a.Compare(b))
			case i > j:
				assert.False(t, a.Less(b), "%s >= %s", a, b)
				assert.Equal(t, 1, a.Compare(b))
			default:
				assert.Equal(t, 0, a.Compare(b))
			}
		}
	}
}

func TestParseSemver(t *testing.T) {
	v, err := ParseSemver("v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Semver{1, 2, 3}, v)
	assert.Equal(t, "1.2.3", v.String())

	for _, bad := range []string{"", "1.2", "1.2.3.4", "a.b.c", "1.-2.3"} {
		_, err := ParseSemver(bad)
		assert.Error(t, err, bad)
	}
}

// The gate proceeds without migrating iff stored >= declared.
func TestGateVersionOrdering(t *testing.T) {
	versions := []Semver{{0, 9, 0}, {1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {2, 0, 0}}
	for _, stored := range versions {
		for _, declared := range versions {
			h := &gateHarness{stored: stored}
			state, err := h.gate(declared, false).Run(context.Background(), "ctx")
			if stored.Compare(declared) >= 0 {
				assert.NoError(t, err)
				assert.Equal(t, GateUpToDate, state, "stored %s declared %s", stored, declared)
			} else {
				assert.ErrorIs(t, err, ErrNeedsMigration)
				assert.Equal(t, GateFailed, state, "stored %s declared %s", stored, declared)
			}
			assert.Nil(t, h.committed)
		}
	}
}

func TestGateNeedsMigration(t *testing.T) {
	h := &gateHarness{stored: Semver{1, 0, 0}}
	state, err := h.gate(Semver{2, 0, 0}, false, Semver{1, 0, 0}).Run(context.Background(), "ctx")

	assert.Equal(t, GateFailed, state)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, IdentifierNeedsMigration, perr.Identifier)
	assert.Equal(t, "Test", perr.Name)
	assert.Empty(t, h.ran, "no migration may run when migrations are disabled")
}

func TestGateMigrationNotFound(t *testing.T) {
	h := &gateHarness{stored: Semver{1, 0, 0}}
	state, err := h.gate(Semver{2, 0, 0}, true, Semver{0, 1, 0}, Semver{1, 1, 0}).Run(context.Background(), "ctx")

	assert.Equal(t, GateFailed, state)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, IdentifierMigrationNotFound, perr.Identifier)
	assert.Equal(t, Semver{Major: 1, Minor: 0, Patch: 0}, perr.Metadata["version"])
	assert.Empty(t, h.ran)
}

func TestGateMigrationApplied(t *testing.T) {
	h := &gateHarness{stored: Semver{1, 2, 3}}
	state, err := h.gate(Semver{2, 0, 0}, true, Semver{0, 0, 0}, Semver{1, 2, 0}).Run(context.Background(), "ctx")

	require.NoError(t, err)
	assert.Equal(t, GateMigrationApplied, state)
	assert.Equal(t, []Semver{{1, 2, 0}}, h.ran, "exactly one migration runs per init")
	require.NotNil(t, h.committed)
	assert.Equal(t, Semver{2, 0, 0}, *h.committed)
}

// The first match in list order wins, even when a later entry is closer to the stored version.
func TestGateMigrationSelectionDeterminism(t *testing.T) {
	migrations := []Semver{{1, 0, 0}, {1, 2, 0}, {1, 2, 3}}
	for i := 0; i < 10; i++ {
		h := &gateHarness{stored: Semver{1, 2, 3}}
		_, err := h.gate(Semver{2, 0, 0}, true, migrations...).Run(context.Background(), "ctx")
		require.NoError(t, err)
		assert.Equal(t, []Semver{{1, 0, 0}}, h.ran)
	}

	// minor and patch are compared independently
	m, ok := FindMigration([]Migration[string]{{Version: Semver{1, 1, 5}}, {Version: Semver{1, 0, 0}}}, Semver{1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, Semver{1, 0, 0}, m.Version)
}

func TestGateFailures(t *testing.T) {
	boom := errors.New("boom")

	g := Gate[string]{Kind: KindMiddleware, Name: "X", Version: Semver{1, 0, 0}}
	assert.Panics(t, func() { _, _ = g.Run(context.Background(), "") }, "a gate without fetcher is a programming error")

	g.FetchVersion = func(context.Context, string) (Semver, error) { return Semver{}, boom }
	state, err := g.Run(context.Background(), "")
	assert.Equal(t, GateFailed, state)
	assert.ErrorIs(t, err, boom)

	g.FetchVersion = func(context.Context, string) (Semver, error) { return Semver{0, 1, 0}, nil }
	g.AllowMigrations = true
	g.Migrations = []Migration[string]{{Version: Semver{0, 0, 0}, Run: func(context.Context, string) error { return boom }}}
	state, err = g.Run(context.Background(), "")
	assert.Equal(t, GateFailed, state)
	assert.ErrorIs(t, err, boom)
}
