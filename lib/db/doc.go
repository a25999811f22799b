// Package db provides a standardized interface for byte-level key-value database engines.
// It defines the KVDB interface that the providers of this module are built on, so a provider
// can be written once and run on top of any engine.
//
// The package focuses on:
//   - A unified interface for key-value operations on opaque byte values
//   - An atomic per-key read-modify-write primitive (Update)
//   - A separate metadata namespace for the bookkeeping of the layers above
//   - Feature discovery through capability flags
//   - A portable snapshot format for Save and Load
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, SetIfUnset, Get, Has, Delete),
//     atomic updates (Update), iteration (Range, Size, Clear), metadata (GetMeta, SetMeta,
//     DeleteMeta) and persistence operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the shipped engines ("maple", "bolt", "sqlite").
//
//   - Snapshots: WriteSnapshot and ReadSnapshot implement the binary format every engine uses
//     for Save and Load. A snapshot of one engine can be loaded into another one.
//
// Note on atomicity:
//   - Every single-key write is atomic.
//   - Update holds the key exclusively while the UpdateFunc runs. Callers that need to run
//     expensive or blocking code (for example user supplied hooks) should compute outside of
//     Update and use the UpdateFunc only to verify the value did not change in the meantime.
//   - Clear is atomic per key only.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/pKV/lib/db/engines/maple) provides a
// sharded in-memory implementation on top of xsync.MapOf.
//
// The engines/bolt package (github.com/ValentinKolb/pKV/lib/db/engines/bolt) stores data in a
// single bbolt file, the engines/sqlite package (github.com/ValentinKolb/pKV/lib/db/engines/sqlite)
// in a sqlite database.
//
// The testing package (github.com/ValentinKolb/pKV/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
