// Package lsm implements the db.KVDB interface on top of the Pebble LSM-tree
// storage engine. It is the only storage engine of aKV.
//
// The engine keeps keys in bytewise order, which lets the query layer place
// every logical database ("select") into its own key prefix and scan a whole
// select, or delete it, with one bounded range operation.
//
// Key Components:
//
//   - lsmImpl: Wraps a *pebble.DB and translates the KVDB calls. Values returned
//     by Get are copied out of Pebble's buffers, so the caller owns them.
//
//   - Options: Selects the data directory, whether the store lives only in memory
//     (useful for tests and for `akv serve --in-memory`), the block cache size and
//     whether every write is synced to disk.
//
//   - pebbleLogger: Routes Pebble's internal log output into the "lsm" logger, so
//     it shares the log format and level of the rest of the server.
//
// Thread-safety: Pebble is safe for concurrent use. Range iterates over an
// implicit snapshot, so concurrent writers never invalidate a running scan.
package lsm
