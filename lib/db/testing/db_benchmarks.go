package testing

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Has(not)", func(b *testing.B) {
		benchmarkHasNot(b, factory())
	})

	b.Run("Update", func(b *testing.B) {
		benchmarkUpdate(b, factory())
	})

	b.Run("Range", func(b *testing.B) {
		benchmarkRange(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func prefill(b *testing.B, database db.KVDB, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		if err := database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i))); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 1000
	prefill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

// Benchmark for Has operation on missing keys
func benchmarkHasNot(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureHas)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Has(fmt.Sprintf("missing-key-%d", counter))
			counter++
		}
	})
}

// Benchmark for a contended read-modify-write counter
func benchmarkUpdate(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpdate)

	inc := func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		n, _ := strconv.Atoi(string(old))
		return []byte(strconv.Itoa(n + 1)), db.UpdateSet, nil
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = database.Update("counter", inc)
		}
	})
}

// Benchmark for a full Range over 1000 entries
func benchmarkRange(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureRange)
	prefill(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Range(func(string, []byte) bool { return true })
	}
}

// Benchmark for Save and Load with 10_000 entries
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)
	prefill(b, database, 10_000)

	var snapshot bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			snapshot.Reset()
			if err := database.Save(&snapshot); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		data := snapshot.Bytes()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
