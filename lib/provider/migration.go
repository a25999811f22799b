package provider

import (
	"context"
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("provider")

// --------------------------------------------------------------------------
// Migrations
// --------------------------------------------------------------------------

// Migration upgrades stored data. Version is the version the data is migrated from.
type Migration[C any] struct {
	Version Semver
	Run     func(ctx context.Context, c C) error
}

// GateState is the state of a migration gate.
type GateState uint8

const (
	GateUninitialized GateState = iota
	GateVersionChecked
	GateUpToDate
	GateMigrationApplied
	GateFailed
)

func (s GateState) String() string {
	switch s {
	case GateUninitialized:
		return "Uninitialized"
	case GateVersionChecked:
		return "VersionChecked"
	case GateUpToDate:
		return "UpToDate"
	case GateMigrationApplied:
		return "MigrationApplied"
	case GateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Gate validates the stored version of a provider or middleware against the version it declares
// and applies a migration if needed. C is what the component's init context is.
//
// The same gate is used by providers and middlewares; they only differ in C and in how
// FetchVersion reads the stored version.
type Gate[C any] struct {
	Kind            Kind
	Name            string // implementation name
	Version         Semver // declared version
	Migrations      []Migration[C]
	AllowMigrations bool

	// FetchVersion reads the stored version (required).
	FetchVersion func(ctx context.Context, c C) (Semver, error)
	// CommitVersion persists the declared version after a migration ran (optional).
	CommitVersion func(ctx context.Context, c C, v Semver) error
}

// Run executes the gate once. It returns the final state and, for the Failed state, the error.
// Version errors are *Error values with the identifiers NeedsMigration or MigrationNotFound;
// errors of FetchVersion, a migration or CommitVersion are returned wrapped.
//
// Thread-safety: Run is not re-entrant, callers must not run the gate of one component concurrently.
func (g Gate[C]) Run(ctx context.Context, c C) (GateState, error) {
	if g.FetchVersion == nil {
		panic(fmt.Sprintf("provider: %s %q has no version fetcher", g.Kind, g.Name))
	}

	stored, err := g.FetchVersion(ctx, c)
	if err != nil {
		return GateFailed, fmt.Errorf("fetch stored version of %s: %w", g.Name, err)
	}

	// VersionChecked: stored >= declared means nothing to do
	if !stored.Less(g.Version) {
		log.Debugf("%s %s is up to date (stored %s, declared %s)", g.Kind, g.Name, stored, g.Version)
		return GateUpToDate, nil
	}

	if !g.AllowMigrations {
		log.Warningf("%s %s needs a migration from %s to %s but migrations are disabled", g.Kind, g.Name, stored, g.Version)
		return GateFailed, NewError(g.Kind, g.Name, ErrorOptions{
			Identifier: IdentifierNeedsMigration,
			Metadata:   map[string]any{"version": stored, "target": g.Version},
		})
	}

	migration, ok := FindMigration(g.Migrations, stored)
	if !ok {
		log.Errorf("%s %s has no migration for version %s", g.Kind, g.Name, stored)
		return GateFailed, NewError(g.Kind, g.Name, ErrorOptions{
			Identifier: IdentifierMigrationNotFound,
			Metadata:   map[string]any{"version": stored},
		})
	}

	log.Infof("migrating %s %s from %s (migration %s) to %s", g.Kind, g.Name, stored, migration.Version, g.Version)
	if err := migration.Run(ctx, c); err != nil {
		log.Errorf("migration of %s %s from %s failed: %v", g.Kind, g.Name, stored, err)
		return GateFailed, fmt.Errorf("migrate %s from %s: %w", g.Name, stored, err)
	}
	if g.CommitVersion != nil {
		if err := g.CommitVersion(ctx, c, g.Version); err != nil {
			return GateFailed, fmt.Errorf("commit version %s of %s: %w", g.Version, g.Name, err)
		}
	}
	log.Infof("migrated %s %s to %s", g.Kind, g.Name, g.Version)

	return GateMigrationApplied, nil
}

// FindMigration returns the first migration with the same major version as stored whose minor
// and patch do not exceed the stored ones. The first match in list order wins, even if a later
// entry would be closer to stored.
func FindMigration[C any](migrations []Migration[C], stored Semver) (Migration[C], bool) {
	for _, m := range migrations {
		if m.Version.Major == stored.Major && m.Version.Minor <= stored.Minor && m.Version.Patch <= stored.Patch {
			return m, true
		}
	}
	return Migration[C]{}, false
}
