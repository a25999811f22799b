package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("ConcurrentUpdate", func(t *testing.T) {
			testConcurrentUpdate(t, factory())
		})

		t.Run("RangeSizeClear", func(t *testing.T) {
			testRangeSizeClear(t, factory())
		})

		t.Run("Meta", func(t *testing.T) {
			testMeta(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadCorrupt", func(t *testing.T) {
			testLoadCorrupt(t, factory())
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustNoErr(t testing.TB, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", op, err)
	}
}

func keysOf(t testing.TB, database db.KVDB) []string {
	t.Helper()
	var keys []string
	mustNoErr(t, database.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	}), "Range")
	sort.Strings(keys)
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustNoErr(t, database.Set(testKey, testValue1), "Set")

	result, exists, err := database.Get(testKey)
	mustNoErr(t, err, "Get")
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustNoErr(t, database.Set(testKey, testValue2), "Set")

	result, exists, err = database.Get(testKey)
	mustNoErr(t, err, "Get")
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = database.Get("nonexistent-key")
	mustNoErr(t, err, "Get")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	mustNoErr(t, database.Set("mutable-key", input), "Set")
	input[0] = 'X'
	stored, _, _ := database.Get("mutable-key")
	if !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Set should store a copy, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"
	mustNoErr(t, database.Set(testKey, []byte("delete-test-value")), "Set")

	mustNoErr(t, database.Delete(testKey), "Delete")

	_, exists, err := database.Get(testKey)
	mustNoErr(t, err, "Get")
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if err := database.Delete("nonexistent-key"); err != nil {
		t.Errorf("Deleting a nonexistent key should not fail, got %v", err)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureHas)

	testKey := "has-test-key"

	if ok, _ := database.Has(testKey); ok {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	mustNoErr(t, database.Set(testKey, []byte("has-test-value")), "Set")
	if ok, _ := database.Has(testKey); !ok {
		t.Errorf("Expected Has to return true after Set")
	}

	mustNoErr(t, database.Delete(testKey), "Delete")
	if ok, _ := database.Has(testKey); ok {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value")
	testValue2 := []byte("test-value2")

	stored, err := database.SetIfUnset(testKey, testValue1)
	mustNoErr(t, err, "SetIfUnset")
	if !stored {
		t.Errorf("Expected SetIfUnset to store a new key")
	}

	stored, err = database.SetIfUnset(testKey, testValue2)
	mustNoErr(t, err, "SetIfUnset")
	if stored {
		t.Errorf("Expected SetIfUnset to keep the existing key")
	}

	result, _, _ := database.Get(testKey)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
}

func testUpdate(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpdate|db.FeatureGet)

	// absent key, keep => stays absent
	err := database.Update("absent", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		if loaded || old != nil {
			t.Errorf("Expected absent key to be reported as not loaded")
		}
		return nil, db.UpdateKeep, nil
	})
	mustNoErr(t, err, "Update")
	if ok, _ := database.Has("absent"); ok {
		t.Errorf("Expected UpdateKeep on an absent key to not create it")
	}

	// absent key, set => created
	err = database.Update("counter", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		return []byte("1"), db.UpdateSet, nil
	})
	mustNoErr(t, err, "Update")

	// existing key, set => replaced
	err = database.Update("counter", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		if !loaded || string(old) != "1" {
			t.Errorf("Expected old value 1, got %q (loaded=%v)", old, loaded)
		}
		return append(old, '1'), db.UpdateSet, nil
	})
	mustNoErr(t, err, "Update")
	if v, _, _ := database.Get("counter"); string(v) != "11" {
		t.Errorf("Expected value 11, got %s", v)
	}

	// error aborts without writing
	sentinel := errors.New("abort")
	err = database.Update("counter", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		return []byte("nope"), db.UpdateSet, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected Update to return the callback error, got %v", err)
	}
	if v, _, _ := database.Get("counter"); string(v) != "11" {
		t.Errorf("Expected value to be unchanged after failed update, got %s", v)
	}

	// delete
	err = database.Update("counter", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		return nil, db.UpdateDelete, nil
	})
	mustNoErr(t, err, "Update")
	if ok, _ := database.Has("counter"); ok {
		t.Errorf("Expected UpdateDelete to remove the key")
	}
}

func testConcurrentUpdate(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpdate|db.FeatureGet)

	const workers, increments = 8, 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				err := database.Update("counter", func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
					n := 0
					if loaded {
						fmt.Sscanf(string(old), "%d", &n)
					}
					return []byte(fmt.Sprintf("%d", n+1)), db.UpdateSet, nil
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _, _ := database.Get("counter")
	if want := fmt.Sprintf("%d", workers*increments); string(v) != want {
		t.Errorf("Lost updates: expected %s, got %s", want, v)
	}
}

func testRangeSizeClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange|db.FeatureMeta)

	for i := 0; i < 10; i++ {
		mustNoErr(t, database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))), "Set")
	}
	mustNoErr(t, database.SetMeta("version", []byte("1.0.0")), "SetMeta")

	size, err := database.Size()
	mustNoErr(t, err, "Size")
	if size != 10 {
		t.Errorf("Expected size 10, got %d (metadata must not be counted)", size)
	}

	seen := map[string]string{}
	mustNoErr(t, database.Range(func(key string, value []byte) bool {
		seen[key] = string(value)
		return true
	}), "Range")
	if len(seen) != 10 {
		t.Errorf("Expected Range to visit 10 entries, got %d", len(seen))
	}
	for k, v := range seen {
		if "value-"+k[len("key-"):] != v {
			t.Errorf("Range returned wrong value %s for key %s", v, k)
		}
	}

	visited := 0
	mustNoErr(t, database.Range(func(string, []byte) bool {
		visited++
		return visited < 3
	}), "Range")
	if visited != 3 {
		t.Errorf("Expected Range to stop after 3 entries, visited %d", visited)
	}

	mustNoErr(t, database.Clear(), "Clear")
	if keys := keysOf(t, database); len(keys) != 0 {
		t.Errorf("Expected no keys after Clear, got %v", keys)
	}
	if v, ok, _ := database.GetMeta("version"); !ok || string(v) != "1.0.0" {
		t.Errorf("Expected Clear to keep metadata, got %q (loaded=%v)", v, ok)
	}
}

func testMeta(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureMeta|db.FeatureGet)

	mustNoErr(t, database.SetMeta("shared", []byte("meta")), "SetMeta")
	mustNoErr(t, database.Set("shared", []byte("data")), "Set")

	if v, _, _ := database.GetMeta("shared"); string(v) != "meta" {
		t.Errorf("Expected metadata value meta, got %s", v)
	}
	if v, _, _ := database.Get("shared"); string(v) != "data" {
		t.Errorf("Expected data value data, got %s", v)
	}

	mustNoErr(t, database.DeleteMeta("shared"), "DeleteMeta")
	if _, ok, _ := database.GetMeta("shared"); ok {
		t.Errorf("Expected metadata to be deleted")
	}
	if _, ok, _ := database.Get("shared"); !ok {
		t.Errorf("Deleting metadata must not delete data")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 500
	for i := 0; i < numEntries; i++ {
		mustNoErr(t, database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))), "Set")
	}
	mustNoErr(t, database.SetMeta("version", []byte("2.0.0")), "SetMeta")

	// something that must be gone after Load
	mustNoErr(t, database2.Set("stale", []byte("x")), "Set")

	var buf bytes.Buffer
	mustNoErr(t, database.Save(&buf), "Save")
	mustNoErr(t, database2.Load(&buf), "Load")

	size, _ := database2.Size()
	if size != numEntries {
		t.Errorf("Expected %d entries after Load, got %d", numEntries, size)
	}
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("key-%d", i)
		v, ok, _ := database2.Get(key)
		if !ok || string(v) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Key %s not restored correctly: %q (loaded=%v)", key, v, ok)
		}
	}
	if _, ok, _ := database2.Get("stale"); ok {
		t.Errorf("Load should replace the existing state")
	}
	if v, _, _ := database2.GetMeta("version"); string(v) != "2.0.0" {
		t.Errorf("Expected metadata to be restored, got %q", v)
	}
}

func testLoadCorrupt(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureLoad)

	mustNoErr(t, database.Set("keep", []byte("me")), "Set")

	if err := database.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected Load of a corrupt snapshot to fail")
	}
	if v, ok, _ := database.Get("keep"); !ok || string(v) != "me" {
		t.Errorf("A failed Load must leave the database untouched, got %q (loaded=%v)", v, ok)
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	mustNoErr(t, database.Close(), "Close")

	if err := database.Set("key", []byte("value")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if _, _, err := database.Get("key"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("Closing twice should not fail, got %v", err)
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	type operation struct {
		op    string
		key   string
		value []byte
	}

	numOperations := 2_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "set"
		case 7, 8:
			op = "get"
		case 9:
			op = "delete"
		}

		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i)
		}

		var value []byte
		if op == "set" {
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value = make([]byte, valueSize)
			for j := 0; j < valueSize; j++ {
				value[j] = byte((i + j) % 256)
			}
		}

		operations[i] = operation{op, key, value}
	}

	numWorkers := 8
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	opsPerWorker := numOperations / numWorkers

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			end := start + opsPerWorker

			for i := start; i < end; i++ {
				op := operations[i]

				var err error
				switch op.op {
				case "set":
					err = database.Set(op.key, op.value)
				case "get":
					_, _, err = database.Get(op.key)
				case "delete":
					err = database.Delete(op.key)
				}
				if err != nil {
					t.Errorf("%s %s failed: %v", op.op, op.key, err)
				}
			}
		}(w)
	}

	wg.Wait()

	// every key reported by Range must be readable with the same value
	mustNoErr(t, database.Range(func(key string, value []byte) bool {
		got, ok, err := database.Get(key)
		if err != nil || !ok {
			t.Errorf("Consistency error: key %s listed by Range but not readable", key)
			return true
		}
		if !bytes.Equal(got, value) {
			t.Errorf("Consistency error: value mismatch for key %s", key)
		}
		return true
	}), "Range")
}
