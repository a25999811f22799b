package bolt

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db"
	dbtesting "github.com/ValentinKolb/pKV/lib/db/testing"
)

func newTemp(t testing.TB) db.KVDB {
	database, err := NewBoltDB(DBOptions{Temp: true})
	if err != nil {
		t.Fatalf("could not open temporary bolt db: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BoltDB", func() db.KVDB {
		return newTemp(t)
	})
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	database, err := NewBoltDB(DBOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Set("key", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if err := database.SetMeta("version", []byte("2.0.0")); err != nil {
		t.Fatal(err)
	}
	if err := database.Close(); err != nil {
		t.Fatal(err)
	}

	database, err = NewBoltDB(DBOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if v, ok, _ := database.Get("key"); !ok || string(v) != "value" {
		t.Errorf("Expected data to survive reopening, got %q (loaded=%v)", v, ok)
	}
	if v, ok, _ := database.GetMeta("version"); !ok || string(v) != "2.0.0" {
		t.Errorf("Expected metadata to survive reopening, got %q (loaded=%v)", v, ok)
	}
	if !database.SupportsFeature(db.FeaturePersistent) {
		t.Errorf("Expected bolt to be persistent")
	}
}

func TestMissingPath(t *testing.T) {
	if _, err := NewBoltDB(DBOptions{}); err == nil {
		t.Errorf("Expected an error without a path")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "BoltDB", func() db.KVDB {
		return newTemp(b)
	})
}
