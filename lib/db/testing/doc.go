// Package testing holds the conformance suite every db.KVDB engine runs, plus a set of benchmarks
// for comparing engines.
//
// An engine test only supplies a factory returning a fresh, empty database:
//
//	func TestBolt(t *testing.T) {
//		dbtesting.RunKVDBTests(t, "BoltDB", func() db.KVDB { ... })
//	}
//
// The suite covers namespaced data and metadata, atomic Update (also under concurrent writers),
// Range order, Save/Load snapshots and the behavior of a closed database. Tests for optional
// operations are skipped when the engine does not report the matching db.Feature.
package testing
