// Package maple implements an in-memory key-value database (KVDB) with a focus on
// concurrent access. It provides a complete implementation of the db.KVDB interface.
//
// The package focuses on:
//   - Optimized concurrent access through sharding and lock-minimizing data structures
//   - Atomic per-key read-modify-write through xsync's Compute
//   - Snapshots in the portable db snapshot format
//   - Statistics for monitoring the shard distribution
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages the shards
//     and a separate metadata shard and provides the public API for key-value operations.
//
//   - Shard: A partition of the database that manages a subset of the key space.
//     Each shard wraps an xsync.MapOf which itself shards keys internally for efficient
//     access and minimal locking.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: Keys are distributed across shards in a two-step process:
//     1. String keys are converted to 64-bit integers using the HashString function
//     with a database-specific seed
//     2. The integer key is right-shifted by 7 bits to use higher-quality bits for
//     distribution
//
//   - Atomic Updates: Update runs the caller's db.UpdateFunc inside MapOf.Compute, which holds
//     the bucket lock of the key for the duration of the call. The function must therefore be
//     short and must not call back into the database.
//
//   - Persistence: Save takes a fuzzy snapshot of every shard (no global lock) and writes it with
//     db.WriteSnapshot. Load reads the snapshot into fresh shards and swaps them in while holding
//     the database lock, so a corrupt snapshot never leaves the database half loaded.
//
// The maple package is the default engine of pKV and the one used by tests and benchmarks.
// Data does not survive Close.
package maple
