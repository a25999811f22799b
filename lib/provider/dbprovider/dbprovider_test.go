package dbprovider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db"
	"github.com/ValentinKolb/pKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/pKV/lib/db/engines/maple"
	"github.com/ValentinKolb/pKV/lib/db/engines/sqlite"
	"github.com/ValentinKolb/pKV/lib/provider"
	providertesting "github.com/ValentinKolb/pKV/lib/provider/testing"
)

func withEngine(open func(t testing.TB) db.KVDB, opts Options) providertesting.ProviderFactory {
	return func(t testing.TB) provider.Provider {
		database := open(t)
		t.Cleanup(func() { _ = database.Close() })
		return New(database, opts)
	}
}

func mapleEngine(testing.TB) db.KVDB { return maple.NewMapleDB(nil) }

func boltEngine(t testing.TB) db.KVDB {
	database, err := bolt.NewBoltDB(bolt.DBOptions{Temp: true})
	if err != nil {
		t.Fatal(err)
	}
	return database
}

func sqliteEngine(t testing.TB) db.KVDB {
	database, err := sqlite.NewSqliteDB(sqlite.DBOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return database
}

func TestMaple(t *testing.T) {
	providertesting.RunProviderTests(t, "DBProvider(maple)", withEngine(mapleEngine, Options{}))
}

func TestMapleUUID(t *testing.T) {
	providertesting.RunProviderTests(t, "DBProvider(maple, uuid)", withEngine(mapleEngine, Options{AutoKey: AutoKeyUUID}))
}

func TestBolt(t *testing.T) {
	providertesting.RunProviderTests(t, "DBProvider(bolt)", withEngine(boltEngine, Options{}))
}

func TestSqlite(t *testing.T) {
	providertesting.RunProviderTests(t, "DBProvider(sqlite)", withEngine(sqliteEngine, Options{}))
}

// --------------------------------------------------------------------------
// Migrations
// --------------------------------------------------------------------------

// legacyStore returns an engine laid out like version 1.0.0: data, no version and the counter
// under its old metadata key.
func legacyStore(t *testing.T) db.KVDB {
	t.Helper()
	database := maple.NewMapleDB(nil)
	t.Cleanup(func() { _ = database.Close() })
	if err := database.Set("1", []byte(`"first"`)); err != nil {
		t.Fatal(err)
	}
	if err := database.SetMeta(legacyMetaAutoKeyCount, []byte("1")); err != nil {
		t.Fatal(err)
	}
	return database
}

func TestInitFreshStoreAdoptsVersion(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	p := New(database, Options{})
	if _, err := p.Init(context.Background(), provider.Context{Name: "fresh"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	v, ok, err := p.GetMetadata(context.Background(), MetaVersion)
	if err != nil || !ok {
		t.Fatalf("version not stored: %v %v", ok, err)
	}
	if v != Version.String() {
		t.Errorf("stored version %v, expected %s", v, Version)
	}
}

func TestInitNeedsMigration(t *testing.T) {
	p := New(legacyStore(t), Options{})

	_, err := p.Init(context.Background(), provider.Context{Name: "legacy"})
	if !errors.Is(err, provider.ErrNeedsMigration) {
		t.Fatalf("expected NeedsMigration, got %v", err)
	}
	var perr *provider.Error
	if !errors.As(err, &perr) {
		t.Fatal("error is not a *provider.Error")
	}
	if perr.Kind != provider.KindProvider || perr.Name != "DB" {
		t.Errorf("error originates from %s(%s)", perr.Kind, perr.Name)
	}
	if got := perr.Metadata["version"]; got != (provider.Semver{Major: 1}) {
		t.Errorf("error carries version %v", got)
	}
}

func TestInitMigratesLegacyStore(t *testing.T) {
	database := legacyStore(t)
	p := New(database, Options{Options: provider.Options{AllowMigrations: true}})
	ctx := context.Background()

	if _, err := p.Init(ctx, provider.Context{Name: "legacy"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, ok, _ := database.GetMeta(legacyMetaAutoKeyCount); ok {
		t.Error("legacy counter was not removed")
	}
	if v, _, _ := p.GetMetadata(ctx, MetaVersion); v != Version.String() {
		t.Errorf("version after migration = %v", v)
	}

	// the counter continues where the legacy layout stopped
	res, err := p.AutoKey(ctx, provider.NewAutoKey())
	if err != nil {
		t.Fatal(err)
	}
	if res.Data != "2" {
		t.Errorf("AutoKey after migration = %q, expected \"2\"", res.Data)
	}

	// a second Init is up to date
	if _, err := New(database, Options{}).Init(ctx, provider.Context{Name: "legacy"}); err != nil {
		t.Errorf("second Init failed: %v", err)
	}
}

func TestInitNewerStoredVersion(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()
	if err := database.SetMeta(MetaVersion, []byte(`"3.0.0"`)); err != nil {
		t.Fatal(err)
	}
	if _, err := New(database, Options{}).Init(context.Background(), provider.Context{Name: "newer"}); err != nil {
		t.Errorf("a newer stored version must be accepted: %v", err)
	}
}

func TestInitCorruptVersion(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()
	if err := database.SetMeta(MetaVersion, []byte(`42`)); err != nil {
		t.Fatal(err)
	}
	_, err := New(database, Options{}).Init(context.Background(), provider.Context{Name: "corrupt"})
	if err == nil {
		t.Fatal("expected an error for a non string version")
	}
	if errors.Is(err, provider.ErrNeedsMigration) {
		t.Error("a corrupt version must not be reported as NeedsMigration")
	}
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

func TestBoltReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	open := func() (*DBProvider, db.KVDB) {
		database, err := bolt.NewBoltDB(bolt.DBOptions{Path: path})
		if err != nil {
			t.Fatal(err)
		}
		p := New(database, Options{})
		if _, err := p.Init(ctx, provider.Context{Name: "persistent"}); err != nil {
			t.Fatal(err)
		}
		return p, database
	}

	p, database := open()
	if _, err := p.Set(ctx, provider.NewSet("k", nil, map[string]any{"n": 1})); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Inc(ctx, provider.NewInc("k", "n")); err != nil {
		t.Fatal(err)
	}
	if err := database.Close(); err != nil {
		t.Fatal(err)
	}

	p, database = open()
	defer database.Close()
	res, err := p.Get(ctx, provider.NewGet("k", "n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Data != float64(2) {
		t.Errorf("value after reopen = %v", res.Data)
	}
}

// --------------------------------------------------------------------------
// Optimistic hook mutations
// --------------------------------------------------------------------------

func TestUpdateRetriesOnConflict(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()
	p := New(database, Options{})
	ctx := context.Background()
	if _, err := p.Init(ctx, provider.Context{Name: "cas"}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Set(ctx, provider.NewSet("n", nil, 1)); err != nil {
		t.Fatal(err)
	}

	calls := 0
	res, err := p.Update(ctx, provider.NewUpdate("n", nil, func(ctx context.Context, value any, _ string) (any, error) {
		calls++
		if calls == 1 {
			// a concurrent writer changes the key while the hook runs
			if _, err := p.Set(ctx, provider.NewSet("n", nil, 10)); err != nil {
				return nil, err
			}
		}
		return value.(float64) + 1, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("hook called %d times, expected 2", calls)
	}
	if res.Data != float64(11) {
		t.Errorf("Update result = %v, expected 11", res.Data)
	}
}

func TestUpdateCancelled(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()
	p := New(database, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := p.Init(ctx, provider.Context{Name: "cancel"}); err != nil {
		t.Fatal(err)
	}
	cancel()

	_, err := p.Update(ctx, provider.NewUpdate("n", nil, func(context.Context, any, string) (any, error) {
		return 1, nil
	}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAutoKeySkipsUsedKeys(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()
	p := New(database, Options{})
	ctx := context.Background()
	if _, err := p.Init(ctx, provider.Context{Name: "autokey"}); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"1", "2"} {
		if _, err := p.Set(ctx, provider.NewSet(k, nil, k)); err != nil {
			t.Fatal(err)
		}
	}
	res, err := p.AutoKey(ctx, provider.NewAutoKey())
	if err != nil {
		t.Fatal(err)
	}
	if res.Data != "3" {
		t.Errorf("AutoKey = %q, expected \"3\"", res.Data)
	}
}
