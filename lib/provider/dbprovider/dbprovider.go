package dbprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/ValentinKolb/pKV/lib/db"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dbprovider")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Name is the implementation name of the provider.
const Name = "DBProvider"

// Version is the data layout version the provider requires.
var Version = provider.Semver{Major: 2, Minor: 0, Patch: 0}

// Metadata keys used by the provider itself.
const (
	MetaVersion      = "version"
	MetaAutoKeyCount = "autokey:count"

	// legacyMetaAutoKeyCount is where layout 1.0.0 kept the auto key counter.
	legacyMetaAutoKeyCount = "autoKeyCount"
)

// AutoKeyStrategy selects how AutoKey generates keys.
type AutoKeyStrategy string

const (
	AutoKeyCounter AutoKeyStrategy = "counter" // increasing integers kept in metadata
	AutoKeyUUID    AutoKeyStrategy = "uuid"    // random version 4 UUIDs
)

// maxCASRetries bounds the optimistic retry loop of hook based mutations.
const maxCASRetries = 64

// ErrConflict is returned when a hook based mutation lost the race for its key too often.
var ErrConflict = errors.New("dbprovider: too many concurrent modifications")

// --------------------------------------------------------------------------
// Provider
// --------------------------------------------------------------------------

// Options configures a DBProvider.
type Options struct {
	provider.Options

	// Codec encodes values before they are handed to the engine (default JSON).
	Codec provider.Codec
	// AutoKey is the key generation strategy (default AutoKeyCounter).
	AutoKey AutoKeyStrategy
	// Rand is the source used by Random and RandomKey (default: randomly seeded).
	Rand *rand.Rand
}

// DBProvider implements provider.Provider on top of any db.KVDB engine.
// Values are stored encoded by the codec; nested paths address fields of decoded maps and
// elements of decoded slices.
//
// Thread-safety: all operations are safe for concurrent use once Init returned.
type DBProvider struct {
	provider.Base

	db      db.KVDB
	codec   provider.Codec
	autoKey AutoKeyStrategy
	store   string

	autoKeyMu sync.Mutex
	rngMu     sync.Mutex
	rng       *rand.Rand
}

var _ provider.Provider = (*DBProvider)(nil)

// New creates a provider backed by database. The provider does not own the database: closing it
// is up to the caller.
func New(database db.KVDB, opts Options) *DBProvider {
	if opts.Codec == nil {
		opts.Codec = provider.NewJSONCodec()
	}
	if opts.AutoKey == "" {
		opts.AutoKey = AutoKeyCounter
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &DBProvider{
		Base:    provider.NewBase(Name, opts.Options),
		db:      database,
		codec:   opts.Codec,
		autoKey: opts.AutoKey,
		rng:     opts.Rand,
	}
}

// Version returns the data layout version the provider requires.
func (p *DBProvider) Version() provider.Semver { return Version }

// DB returns the underlying engine.
func (p *DBProvider) DB() db.KVDB { return p.db }

// --------------------------------------------------------------------------
// Initialization and migrations
// --------------------------------------------------------------------------

// migrations lists the layout upgrades, keyed by the version they start from.
func (p *DBProvider) migrations() []provider.Migration[provider.Context] {
	return []provider.Migration[provider.Context]{
		{
			// 1.0.0 kept the auto key counter under a different metadata key
			Version: provider.Semver{Major: 1, Minor: 0, Patch: 0},
			Run: func(ctx context.Context, _ provider.Context) error {
				raw, ok, err := p.db.GetMeta(legacyMetaAutoKeyCount)
				if err != nil || !ok {
					return err
				}
				if err := p.db.SetMeta(MetaAutoKeyCount, raw); err != nil {
					return err
				}
				return p.db.DeleteMeta(legacyMetaAutoKeyCount)
			},
		},
	}
}

// Init runs the migration gate against the version stored in the metadata key MetaVersion.
// A store without a stored version is either fresh (no data, no legacy metadata), which adopts
// Version, or was written by layout 1.0.0.
func (p *DBProvider) Init(ctx context.Context, pc provider.Context) (provider.Context, error) {
	p.store = pc.Name

	gate := p.NewGate(Version, p.migrations())
	gate.FetchVersion = func(ctx context.Context, _ provider.Context) (provider.Semver, error) {
		return p.storedVersion(ctx)
	}
	gate.CommitVersion = func(ctx context.Context, _ provider.Context, v provider.Semver) error {
		return p.SetMetadata(ctx, MetaVersion, v.String())
	}

	state, err := gate.Run(ctx, pc)
	if err != nil {
		return pc, err
	}
	log.Debugf("store %q initialized on %s (%s)", pc.Name, p.db.GetInfo().DbType, state)
	return pc, nil
}

func (p *DBProvider) storedVersion(ctx context.Context) (provider.Semver, error) {
	raw, ok, err := p.GetMetadata(ctx, MetaVersion)
	if err != nil {
		return provider.Semver{}, err
	}
	if ok {
		s, isString := raw.(string)
		if !isString {
			return provider.Semver{}, fmt.Errorf("stored version has type %T", raw)
		}
		return provider.ParseSemver(s)
	}

	size, err := p.db.Size()
	if err != nil {
		return provider.Semver{}, err
	}
	_, legacy, err := p.db.GetMeta(legacyMetaAutoKeyCount)
	if err != nil {
		return provider.Semver{}, err
	}
	if size == 0 && !legacy {
		log.Infof("store %q is empty, adopting version %s", p.store, Version)
		if err := p.SetMetadata(ctx, MetaVersion, Version.String()); err != nil {
			return provider.Semver{}, err
		}
		return Version, nil
	}
	return provider.Semver{Major: 1, Minor: 0, Patch: 0}, nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (p *DBProvider) GetMetadata(_ context.Context, key string) (any, bool, error) {
	raw, ok, err := p.db.GetMeta(key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := p.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("metadata %q: %w", key, err)
	}
	return v, true, nil
}

func (p *DBProvider) SetMetadata(_ context.Context, key string, value any) error {
	raw, err := p.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("metadata %q: %w", key, err)
	}
	return p.db.SetMeta(key, raw)
}

func (p *DBProvider) DeleteMetadata(_ context.Context, key string) error {
	return p.db.DeleteMeta(key)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// entry is a stored key with its encoded value.
type entry struct {
	key string
	raw []byte
}

// load returns the decoded value of key.
func (p *DBProvider) load(key string) (any, bool, error) {
	raw, ok, err := p.db.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := p.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// all collects every stored entry in key order. Hooks are always run on the collected entries,
// never while the engine iterates, so they may call back into the store.
func (p *DBProvider) all() ([]entry, error) {
	var entries []entry
	err := p.db.Range(func(key string, value []byte) bool {
		entries = append(entries, entry{key: key, raw: value})
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.key, b.key) })
	return entries, nil
}

// decodeAll decodes the collected entries in order.
func (p *DBProvider) decodeAll(entries []entry) ([]any, error) {
	values := make([]any, len(entries))
	for i, e := range entries {
		v, err := p.codec.Decode(e.raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.key, err)
		}
		values[i] = v
	}
	return values, nil
}

// mutate atomically applies fn to the decoded value of key.
// fn runs inside the engine's Update and must not block. It returns the new value, whether the
// value changed, and a data error. A data error aborts the write and is returned as *provider.Error.
func (p *DBProvider) mutate(key string, fn func(value any, loaded bool) (any, bool, *provider.Error)) (result any, dataErr *provider.Error, err error) {
	err = p.db.Update(key, func(old []byte, loaded bool) ([]byte, db.UpdateOp, error) {
		var value any
		if loaded {
			v, err := p.codec.Decode(old)
			if err != nil {
				return nil, db.UpdateKeep, fmt.Errorf("key %q: %w", key, err)
			}
			value = v
		}
		next, changed, perr := fn(value, loaded)
		if perr != nil {
			dataErr = perr
			return nil, db.UpdateKeep, nil
		}
		result = next
		if !changed {
			return nil, db.UpdateKeep, nil
		}
		raw, err := p.codec.Encode(next)
		if err != nil {
			return nil, db.UpdateKeep, fmt.Errorf("key %q: %w", key, err)
		}
		return raw, db.UpdateSet, nil
	})
	return result, dataErr, err
}

// mutateWithHooks runs compute outside of the engine lock and writes its result only if the
// stored bytes did not change in the meantime, retrying otherwise. compute may call hooks.
func (p *DBProvider) mutateWithHooks(ctx context.Context, key string, compute func(value any, loaded bool) (any, bool, *provider.Error, error)) (any, *provider.Error, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		snapshot, loaded, err := p.db.Get(key)
		if err != nil {
			return nil, nil, err
		}
		var value any
		if loaded {
			if value, err = p.codec.Decode(snapshot); err != nil {
				return nil, nil, fmt.Errorf("key %q: %w", key, err)
			}
		}

		next, changed, dataErr, err := compute(value, loaded)
		if err != nil || dataErr != nil {
			return nil, dataErr, err
		}
		if !changed {
			return next, nil, nil
		}
		raw, err := p.codec.Encode(next)
		if err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}

		conflict := false
		err = p.db.Update(key, func(old []byte, nowLoaded bool) ([]byte, db.UpdateOp, error) {
			if nowLoaded != loaded || !bytes.Equal(old, snapshot) {
				conflict = true
				return nil, db.UpdateKeep, nil
			}
			return raw, db.UpdateSet, nil
		})
		if err != nil {
			return nil, nil, err
		}
		if !conflict {
			return next, nil, nil
		}
		log.Debugf("key %q changed during hook evaluation, retrying (attempt %d)", key, attempt+1)
	}
	return nil, nil, ErrConflict
}

// normalizeCondition normalizes the comparison value of a ByValue condition.
// A non primitive value yields an InvalidValueType error.
func (p *DBProvider) normalizeCondition(method provider.Method, c provider.ConditionByValue) (any, *provider.Error, error) {
	v, err := provider.Normalize(p.codec, c.Value)
	if err != nil {
		return nil, nil, err
	}
	if !isPrimitive(v) {
		return nil, p.Error(method, provider.IdentifierInvalidValueType, map[string]any{"type": "primitive"}), nil
	}
	return v, nil, nil
}

// randomIndexes picks count indexes out of n. Without duplicates every index is used at most once.
func (p *DBProvider) randomIndexes(n, count int, duplicates bool) []int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()

	idx := make([]int, count)
	if duplicates {
		for i := range idx {
			idx[i] = p.rng.IntN(n)
		}
		return idx
	}
	perm := p.rng.Perm(n)
	copy(idx, perm[:count])
	return idx
}

// location metadata of a data error for the store as a whole.
func (p *DBProvider) storeLocation() provider.KeyPath {
	return provider.KeyPath{Key: p.store}
}
