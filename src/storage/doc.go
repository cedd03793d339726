// Package storage is the key-value layer under the ledger.
//
// A Store offers point reads and writes, prefix iteration, atomic batches and
// point-in-time snapshots. Three engines implement it: Badger (the default),
// LevelDB (also used in-memory for tests and volatile nodes) and BoltDB.
// NewPrefixedStore restricts any Store to a sub-keyspace, which is how side
// indexes share a database with the ledger.
//
// Iteration is callback scoped. The engine iterator lives only for the
// duration of Seek, so it is always released, and the keys and values handed
// to the callback are copies the callback may keep.
package storage
