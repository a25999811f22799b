package bolt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/pKV/lib/db"
	bolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

var (
	dataBucket = []byte("data")
	metaBucket = []byte("meta")
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// boltImpl implements db.KVDB on a single bbolt file with one bucket per namespace.
type boltImpl struct {
	db     *bolt.DB
	path   string
	temp   bool // remove the file on Close
	closed atomic.Bool
}

// DBOptions configures the bolt engine
type DBOptions struct {
	Path    string        // Database file (required unless Temp is set)
	Temp    bool          // Create a temporary file that is removed on Close
	Timeout time.Duration // How long to wait for the file lock (0 = wait forever)
}

// NewBoltDB opens (or creates) the bbolt file described by opts.
//
// Thread-safety: This function is not thread-safe and should only be called once per file.
func NewBoltDB(opts DBOptions) (db.KVDB, error) {
	path := opts.Path
	if opts.Temp {
		f, err := os.CreateTemp("", "pkv-bolt-*.db")
		if err != nil {
			return nil, fmt.Errorf("could not create temporary bolt file: %w", err)
		}
		path = f.Name()
		_ = f.Close()
		_ = os.Remove(path) // bolt creates the file itself
	}
	if path == "" {
		return nil, fmt.Errorf("bolt: \"path\" is required")
	}

	handle, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("could not open bolt store at %s: %w", path, err)
	}

	if err := handle.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{dataBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("could not ensure buckets exist: %w", err)
	}

	return &boltImpl{db: handle, path: path, temp: opts.Temp}, nil
}

func (b *boltImpl) view(bucket []byte, fn func(*bolt.Bucket) error) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucket))
	})
}

func (b *boltImpl) update(bucket []byte, fn func(*bolt.Bucket) error) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucket))
	})
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Set(key string, value []byte) error {
	return b.update(dataBucket, func(bk *bolt.Bucket) error {
		return bk.Put([]byte(key), nonNil(value))
	})
}

func (b *boltImpl) SetIfUnset(key string, value []byte) (bool, error) {
	stored := false
	err := b.update(dataBucket, func(bk *bolt.Bucket) error {
		if bk.Get([]byte(key)) != nil {
			return nil
		}
		stored = true
		return bk.Put([]byte(key), nonNil(value))
	})
	return stored, err
}

func (b *boltImpl) Delete(key string) error {
	return b.update(dataBucket, func(bk *bolt.Bucket) error {
		return bk.Delete([]byte(key))
	})
}

// Update runs fn inside a bbolt write transaction. bbolt serializes all write transactions, so
// the update is atomic with respect to every other write.
func (b *boltImpl) Update(key string, fn db.UpdateFunc) error {
	return b.update(dataBucket, func(bk *bolt.Bucket) error {
		k := []byte(key)
		old := bk.Get(k)
		value, op, err := fn(bytes.Clone(old), old != nil)
		if err != nil {
			return err
		}
		switch op {
		case db.UpdateSet:
			return bk.Put(k, nonNil(value))
		case db.UpdateDelete:
			return bk.Delete(k)
		default:
			return nil
		}
	})
}

// Clear drops and recreates the data bucket.
func (b *boltImpl) Clear() error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(dataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(dataBucket)
		return err
	})
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.view(dataBucket, func(bk *bolt.Bucket) error {
		// values are only valid inside the transaction
		if v := bk.Get([]byte(key)); v != nil {
			value = bytes.Clone(v)
		}
		return nil
	})
	return value, value != nil, err
}

func (b *boltImpl) Has(key string) (bool, error) {
	_, ok, err := b.Get(key)
	return ok, err
}

// Range iterates in key order over a consistent view. The entries are collected first and fn is
// called after the read transaction ended, so fn may write to the database.
func (b *boltImpl) Range(fn func(key string, value []byte) bool) error {
	type kv struct {
		key   string
		value []byte
	}
	var entries []kv
	err := b.view(dataBucket, func(bk *bolt.Bucket) error {
		return bk.ForEach(func(k, v []byte) error {
			entries = append(entries, kv{string(k), bytes.Clone(v)})
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !fn(e.key, e.value) {
			return nil
		}
	}
	return nil
}

func (b *boltImpl) Size() (int, error) {
	size := 0
	err := b.view(dataBucket, func(bk *bolt.Bucket) error {
		size = bk.Stats().KeyN
		return nil
	})
	return size, err
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (b *boltImpl) GetMeta(key string) ([]byte, bool, error) {
	var value []byte
	err := b.view(metaBucket, func(bk *bolt.Bucket) error {
		if v := bk.Get([]byte(key)); v != nil {
			value = bytes.Clone(v)
		}
		return nil
	})
	return value, value != nil, err
}

func (b *boltImpl) SetMeta(key string, value []byte) error {
	return b.update(metaBucket, func(bk *bolt.Bucket) error {
		return bk.Put([]byte(key), nonNil(value))
	})
}

func (b *boltImpl) DeleteMeta(key string) error {
	return b.update(metaBucket, func(bk *bolt.Bucket) error {
		return bk.Delete([]byte(key))
	})
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot taken in a single read transaction.
func (b *boltImpl) Save(w io.Writer) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	return b.db.View(func(tx *bolt.Tx) error {
		data, meta := tx.Bucket(dataBucket), tx.Bucket(metaBucket)
		count := data.Stats().KeyN + meta.Stats().KeyN
		return db.WriteSnapshot(w, db.ImplBolt, count, func(emit func(db.SnapshotEntry) error) error {
			for _, ns := range []struct {
				ns db.Namespace
				bk *bolt.Bucket
			}{{db.NamespaceData, data}, {db.NamespaceMeta, meta}} {
				err := ns.bk.ForEach(func(k, v []byte) error {
					return emit(db.SnapshotEntry{Namespace: ns.ns, Key: string(k), Value: v})
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Load replaces both buckets in a single write transaction. A corrupt snapshot rolls back.
func (b *boltImpl) Load(r io.Reader) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		buckets := make(map[db.Namespace]*bolt.Bucket, 2)
		for ns, name := range map[db.Namespace][]byte{db.NamespaceData: dataBucket, db.NamespaceMeta: metaBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			bk, err := tx.CreateBucket(name)
			if err != nil {
				return err
			}
			buckets[ns] = bk
		}
		_, err := db.ReadSnapshot(r, func(e db.SnapshotEntry) error {
			return buckets[e.Namespace].Put([]byte(e.Key), nonNil(e.Value))
		})
		return err
	})
}

// --------------------------------------------------------------------------
// Features and Info
// --------------------------------------------------------------------------

var supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureUpdate |
	db.FeatureRange |
	db.FeatureMeta |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeaturePersistent

func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (b *boltImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplBolt,
		SupportedFeatures: supportedFeatures.List(),
	}
	if b.closed.Load() {
		return info
	}
	meta := &struct {
		Path        string `json:"path"`
		MetaEntries int    `json:"meta_entries"`
		FreePages   int    `json:"free_pages"`
	}{Path: b.path}

	_ = b.db.View(func(tx *bolt.Tx) error {
		info.SizeBytes = int(tx.Size())
		info.Entries = tx.Bucket(dataBucket).Stats().KeyN
		meta.MetaEntries = tx.Bucket(metaBucket).Stats().KeyN
		return nil
	})
	meta.FreePages = b.db.Stats().FreePageN
	info.Metadata = meta
	return info
}

// Close closes the file and removes it if the database was temporary.
func (b *boltImpl) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("could not close bolt store: %w", err)
	}
	if b.temp {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("could not remove path %s: %w", b.path, err)
		}
	}
	return nil
}

// nonNil stores empty values as zero-length slices.
func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}
