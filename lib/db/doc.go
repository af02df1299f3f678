// Package db provides the storage engine facade used by the aKV query pipeline.
// It defines the KVDB interface for ordered key-value engines and the Database
// type that binds one engine to a name and serializes mutations on it.
//
// The package focuses on:
//   - A small interface for get, put, delete and ordered iteration
//   - Feature discovery through capability flags
//   - A single execution mutex per database for read-modify-write steps
//   - Rejecting work against a database that is being closed (ErrClosing)
//
// Key Components:
//
//   - KVDB Interface: The contract every engine must satisfy. Keys are compared
//     bytewise and Range visits them in ascending order. Engines must allow
//     concurrent calls from different goroutines.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     advertise through SupportsFeature.
//
//   - Database: Wraps a KVDB. Exec runs a function under the execution mutex,
//     Scan iterates without it. After Close every call returns ErrClosing.
//
// Note on Time-Based Operations:
//   - Engines know nothing about expiration. Expiring keys and deferred writes are
//     scheduled by the schedule package and executed as ordinary delete and set
//     queries.
//
// Related Packages:
//
// The engines/lsm package (github.com/ValentinKolb/aKV/lib/db/engines/lsm) implements
// KVDB on top of the pebble LSM engine, on disk or fully in memory.
//
// The util package (github.com/ValentinKolb/aKV/lib/db/util) provides complementary
// data structures:
//   - MapHeap: A priority queue with key-based access, used as the time index of the schedulers
//   - LockFreeMPSC: A lock-free multi-producer single-consumer queue, used as worker inbox
//   - SizeHistogram / LoadStats: size and load distribution statistics
//
// The testing package (github.com/ValentinKolb/aKV/lib/db/testing) provides
// standardized tests and benchmarks for engines that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
