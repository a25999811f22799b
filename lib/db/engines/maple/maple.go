package maple

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/pKV/lib/db"
	"github.com/ValentinKolb/pKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/pKV/lib/db/util"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	meta      *internal.Shard   // Metadata namespace (never sharded)

	// lock is only taken exclusively by Load which swaps the shards
	lock   sync.RWMutex
	closed atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
		meta:      internal.NewShard(),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shard returns the shard responsible for key.
// The caller must hold the read lock.
func (maple *mapleImpl) shard(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// acquire takes the read lock and checks the database is still open.
func (maple *mapleImpl) acquire() error {
	maple.lock.RLock()
	if maple.closed.Load() {
		maple.lock.RUnlock()
		return db.ErrClosed
	}
	return nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
// If the key already exists, the old value is overwritten.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	maple.shard(key).Data.Store(key, clone(value))
	return nil
}

// SetIfUnset inserts an entry with the given key and value.
// If the key already exists, the old value is not updated.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetIfUnset(key string, value []byte) (bool, error) {
	if err := maple.acquire(); err != nil {
		return false, err
	}
	defer maple.lock.RUnlock()

	_, loaded := maple.shard(key).Data.LoadOrStore(key, clone(value))
	return !loaded, nil
}

// Delete removes an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	maple.shard(key).Data.Delete(key)
	return nil
}

// Update atomically applies fn to the entry of key.
// xsync runs the compute function while holding the bucket lock of the key, so fn must not call
// back into the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Update(key string, fn db.UpdateFunc) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	return compute(maple.shard(key), key, fn)
}

// Clear removes all entries from all shards. Metadata is kept.
//
// Thread-safety: This method is thread-safe and can be called concurrently. Entries written
// concurrently to a shard that was already cleared are kept.
func (maple *mapleImpl) Clear() error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	return nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Query Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool, error) {
	if err := maple.acquire(); err != nil {
		return nil, false, err
	}
	defer maple.lock.RUnlock()

	value, ok := maple.shard(key).Data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(value), true, nil
}

// Has reports whether key exists.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) (bool, error) {
	if err := maple.acquire(); err != nil {
		return false, err
	}
	defer maple.lock.RUnlock()

	_, ok := maple.shard(key).Data.Load(key)
	return ok, nil
}

// Range iterates shard by shard over all entries. fn receives copies of the values.
//
// Thread-safety: This method is thread-safe. It does not represent a consistent cut of the
// database when writes happen concurrently.
func (maple *mapleImpl) Range(fn func(key string, value []byte) bool) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	for _, shard := range maple.shards {
		stopped := false
		shard.Data.Range(func(key string, value []byte) bool {
			if !fn(key, clone(value)) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return nil
		}
	}
	return nil
}

// Size returns the sum of all shard sizes.
func (maple *mapleImpl) Size() (int, error) {
	if err := maple.acquire(); err != nil {
		return 0, err
	}
	defer maple.lock.RUnlock()

	size := 0
	for _, shard := range maple.shards {
		size += shard.Data.Size()
	}
	return size, nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (maple *mapleImpl) GetMeta(key string) ([]byte, bool, error) {
	if err := maple.acquire(); err != nil {
		return nil, false, err
	}
	defer maple.lock.RUnlock()

	value, ok := maple.meta.Data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(value), true, nil
}

func (maple *mapleImpl) SetMeta(key string, value []byte) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	maple.meta.Data.Store(key, clone(value))
	return nil
}

func (maple *mapleImpl) DeleteMeta(key string) error {
	if err := maple.acquire(); err != nil {
		return err
	}
	defer maple.lock.RUnlock()

	maple.meta.Data.Delete(key)
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer using the db snapshot format.
// Concurrent reading and writing is allowed during Save.
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the shards without blocking modifications, so the
// snapshot is fuzzy.
func (maple *mapleImpl) Save(w io.Writer) error {
	if err := maple.acquire(); err != nil {
		return err
	}

	// Collect snapshots of all shards first, the count is part of the header
	var entries []db.SnapshotEntry
	collect := func(ns db.Namespace, shard *internal.Shard) {
		shard.Data.Range(func(key string, value []byte) bool {
			entries = append(entries, db.SnapshotEntry{Namespace: ns, Key: key, Value: clone(value)})
			return true
		})
	}
	for _, shard := range maple.shards {
		collect(db.NamespaceData, shard)
	}
	collect(db.NamespaceMeta, maple.meta)
	maple.lock.RUnlock()

	return db.WriteSnapshot(w, db.ImplMaple, len(entries), func(emit func(db.SnapshotEntry) error) error {
		for _, e := range entries {
			if err := emit(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load replaces the database with the content of a snapshot.
//
// Thread-safety: Load blocks every other operation until it is done.
func (maple *mapleImpl) Load(r io.Reader) error {
	// Read into fresh shards so a corrupt snapshot leaves the database untouched
	seed := util.GenerateSeed()
	shards := newShards(maple.numShards)
	meta := internal.NewShard()

	_, err := db.ReadSnapshot(r, func(e db.SnapshotEntry) error {
		if e.Namespace == db.NamespaceMeta {
			meta.Data.Store(e.Key, e.Value)
			return nil
		}
		internal.GetShard(util.HashString(e.Key, seed), shards).Data.Store(e.Key, e.Value)
		return nil
	})
	if err != nil {
		return err
	}

	maple.lock.Lock()
	defer maple.lock.Unlock()
	if maple.closed.Load() {
		return db.ErrClosed
	}
	maple.seed = seed
	maple.shards = shards
	maple.meta = meta
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.lock.RLock()
	defer maple.lock.RUnlock()

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	// more stats
	mu := sync.Mutex{}
	entries := 0
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			s.Data.Range(func(key string, value []byte) bool {
				// track size in histogram
				histogram.AddSample(len(key) + len(value))

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()
			size := s.Data.Size()
			entries += size
			shardSizes[i] = float64(size)
		}(shardIndex, shard)
	}

	// wait for all shards to finish
	wg.Wait()

	// weighted estimate (60% median, 40% average) per entry
	entrySize := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100

	// Metadata for this specific database implementation
	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		MetaEntries       int                    `json:"meta_entries"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		MetaEntries:       maple.meta.Data.Size(),
		Info:              "SizeBytes is an estimate based on sampled entries.",
	}

	return db.DatabaseInfo{
		SizeBytes:         entrySize * entries,
		Entries:           entries,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures.List(),
		Metadata:          meta,
	}
}

var supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureUpdate |
	db.FeatureRange |
	db.FeatureMeta |
	db.FeatureSave |
	db.FeatureLoad

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close releases all entries. Every later call returns db.ErrClosed.
func (maple *mapleImpl) Close() error {
	maple.lock.Lock()
	defer maple.lock.Unlock()
	if maple.closed.Swap(true) {
		return nil
	}
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	maple.meta.Data.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// compute runs fn inside xsync's Compute so the read and the write of key are atomic.
func compute(shard *internal.Shard, key string, fn db.UpdateFunc) error {
	var fnErr error
	shard.Data.Compute(key, func(old []byte, loaded bool) ([]byte, bool) {
		value, op, err := fn(clone(old), loaded)
		if err != nil {
			fnErr = err
			op = db.UpdateKeep
		}
		switch op {
		case db.UpdateSet:
			return clone(value), false
		case db.UpdateDelete:
			return nil, true
		default:
			// keep: an absent key must stay absent
			return old, !loaded
		}
	})
	return fnErr
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
