package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplBolt   Implementation = "bolt"
	ImplSqlite Implementation = "sqlite"
)

// Implementations lists all engines shipped with this module.
func Implementations() []Implementation {
	return []Implementation{ImplMaple, ImplBolt, ImplSqlite}
}

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureHas                            // Support for Has operations
	FeatureUpdate                         // Support for atomic read-modify-write with Update
	FeatureRange                          // Support for Range, Size and Clear
	FeatureMeta                           // Support for the metadata namespace
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
	FeaturePersistent                     // Data survives Close
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureUpdate:
		return "Update"
	case FeatureRange:
		return "Range"
	case FeatureMeta:
		return "Meta"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeaturePersistent:
		return "Persistent"
	default:
		return "Unknown"
	}
}

// List splits a combined set of features into its single flags.
func (f Feature) List() []Feature {
	var features []Feature
	for bit := Feature(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit != 0 {
			features = append(features, bit)
		}
	}
	return features
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Entries           int            `json:"entries"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// ErrClosed is returned by every operation of a database after Close.
var ErrClosed = errors.New("db: database is closed")

// --------------------------------------------------------------------------
// Update Callbacks
// --------------------------------------------------------------------------

// UpdateOp tells Update what to do with the result of an UpdateFunc.
type UpdateOp uint8

const (
	UpdateKeep   UpdateOp = iota // leave the stored entry untouched
	UpdateSet                    // store the returned value
	UpdateDelete                 // remove the entry
)

// UpdateFunc computes the new state of an entry from its current state.
// old is nil and loaded false if the key does not exist. The returned error aborts the update
// and is returned from Update unchanged.
//
// The function runs while the engine holds the key (or the whole database) exclusively, so it
// must not call back into the database and should not block.
type UpdateFunc func(old []byte, loaded bool) (value []byte, op UpdateOp, err error)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations storing opaque byte values.
// It provides methods for basic operations like Set, Get, Delete, an atomic per-key Update and
// various utility functions.
// Next to the data namespace every implementation keeps a separate metadata namespace for the
// bookkeeping of the layers above it (stored versions, counters). Range, Size and Clear never
// see metadata.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value should be overwritten.
	Set(key string, value []byte) (err error)

	// SetIfUnset inserts an entry with the given key and value.
	// If the key already exists, the old value is not updated and stored is false.
	SetIfUnset(key string, value []byte) (stored bool, err error)

	// Delete removes an entry with the specified key.
	// Deleting a key that does not exist is not an error.
	Delete(key string) (err error)

	// Update atomically replaces the entry of key with the outcome of fn.
	// No other write to key can happen between the read and the write of fn's result.
	Update(key string, fn UpdateFunc) (err error)

	// Clear removes every entry of the data namespace. Metadata is kept.
	// Clear is atomic per key only.
	Clear() (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is a copy and may be modified by the caller.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool, err error)

	// Range calls fn for every entry until fn returns false.
	// The iteration order is unspecified. Writes issued while ranging may or may not be seen.
	Range(fn func(key string, value []byte) bool) (err error)

	// Size returns the number of entries in the data namespace.
	Size() (size int, err error)

	// --------------------------------------------------------------------------
	// Metadata Operations
	// --------------------------------------------------------------------------

	GetMeta(key string) (value []byte, loaded bool, err error)
	SetMeta(key string, value []byte) (err error)
	DeleteMeta(key string) (err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database (data and metadata) to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
