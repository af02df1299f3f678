package db

import (
	"sync"
	"sync/atomic"
)

// Database binds a KVDB to a name and serializes every mutation on it.
//
// All read-modify-write steps of the query pipeline run inside Exec, so at most
// one of them executes at a time no matter how many workers are running.
// Ordered scans (Scan) run outside the execution mutex on the engine's own
// snapshot.
type Database struct {
	name    string
	kv      KVDB
	mu      sync.Mutex
	scans   sync.RWMutex // held shared by running scans, exclusively by Close
	closing atomic.Bool
}

// NewDatabase wraps kv. The database takes ownership of kv and closes it in Close.
func NewDatabase(name string, kv KVDB) *Database {
	return &Database{name: name, kv: kv}
}

// Name returns the name of the database.
func (d *Database) Name() string { return d.name }

// Closing reports whether Close was called.
func (d *Database) Closing() bool { return d.closing.Load() }

// Exec runs fn while holding the execution mutex.
// It returns ErrClosing without calling fn if the database is closing.
func (d *Database) Exec(fn func(kv KVDB) error) error {
	if d.closing.Load() {
		return ErrClosing
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	// the database may have been closed while we waited for the lock
	if d.closing.Load() {
		return ErrClosing
	}
	return fn(d.kv)
}

// Scan iterates over lower <= key < upper without taking the execution mutex.
func (d *Database) Scan(lower, upper []byte, fn func(key, value []byte) bool) error {
	d.scans.RLock()
	defer d.scans.RUnlock()
	if d.closing.Load() {
		return ErrClosing
	}
	return d.kv.Range(lower, upper, fn)
}

// Info returns information about the underlying engine.
func (d *Database) Info() DatabaseInfo {
	return d.kv.GetInfo()
}

// Close marks the database as closing, waits for running Exec and Scan calls to
// finish and closes the engine. Calling Close more than once is a no-op.
func (d *Database) Close() error {
	if !d.closing.CompareAndSwap(false, true) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans.Lock()
	defer d.scans.Unlock()
	return d.kv.Close()
}
