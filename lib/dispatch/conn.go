package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/query"
)

// DeliverFunc hands a completed query to the protocol layer
type DeliverFunc func(q *query.Query)

// Conn is the dispatcher's view of one client session (or of the global
// pseudo-connection that carries server-internal work).
//
// At most one query of a Conn is in flight at any time. The busy flag is set
// when a query is handed to a worker and cleared when its final (non-partial)
// result was collected. running holds the token of the query that is still on
// a worker, a reset only clears busy once the worker let go of it.
type Conn struct {
	id       uint64
	global   bool
	database *db.Database
	deliver  DeliverFunc

	alive atomic.Bool
	sel   atomic.Uint32

	mu        sync.Mutex
	busy      bool
	running   uint64 // token of the query on a worker, 0 if none
	runs      uint64
	epoch     uint64 // incremented on every reset, results of older epochs are dropped
	pending   []*query.Query
	completed []*query.Query
}

func newConn(id uint64, database *db.Database, deliver DeliverFunc, global bool) *Conn {
	c := &Conn{
		id:       id,
		global:   global,
		database: database,
		deliver:  deliver,
	}
	c.alive.Store(true)
	c.sel.Store(uint32(query.MinSelect))
	return c
}

// ID returns the unique id of the connection
func (c *Conn) ID() uint64 { return c.id }

// Alive reports whether the connection is still connected
func (c *Conn) Alive() bool { return c.alive.Load() }

// Global reports whether this is the global pseudo-connection
func (c *Conn) Global() bool { return c.global }

// Database returns the database queries of this connection run against
func (c *Conn) Database() *db.Database { return c.database }

// Select returns the current select of the connection
func (c *Conn) Select() uint16 { return uint16(c.sel.Load()) }

// SetSelect changes the current select. Queries already posted keep their select.
func (c *Conn) SetSelect(sel uint16) { c.sel.Store(uint32(sel)) }

// IsLocked reports whether a query of this connection is in flight
func (c *Conn) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SetLock sets the in-flight flag. A locked connection is skipped by
// DispatchPending until it is unlocked.
func (c *Conn) SetLock(locked bool) {
	c.mu.Lock()
	c.busy = locked
	c.mu.Unlock()
}

// Pending returns the number of queries waiting for a worker
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Completed returns the number of results waiting for delivery
func (c *Conn) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}

// --------------------------------------------------------------------------
// Queue handling (dispatcher internal)
// --------------------------------------------------------------------------

func (c *Conn) pushPending(q *query.Query) {
	c.mu.Lock()
	c.pending = append(c.pending, q)
	c.mu.Unlock()
}

// ticket identifies one taken query
type ticket struct {
	epoch uint64
	token uint64
}

// take pops the head of the pending queue and marks the connection busy and
// running. It returns nil if the connection is busy or has nothing pending.
func (c *Conn) take() (*query.Query, ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || len(c.pending) == 0 {
		return nil, ticket{}
	}
	q := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	c.busy = true
	c.runs++
	c.running = c.runs
	return q, ticket{epoch: c.epoch, token: c.runs}
}

// finish is called once the taken query left its worker. The connection stays
// busy until the final result was collected, unless release is set or a reset
// dropped the result in the meantime.
func (c *Conn) finish(t ticket, release bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != t.token {
		return
	}
	c.running = 0
	if release || t.epoch != c.epoch {
		c.busy = false
	}
}

// completeNow pushes q straight to the completed queue if nothing else of
// this connection is pending or in flight
func (c *Conn) completeNow(q *query.Query) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || len(c.pending) > 0 {
		return false
	}
	c.busy = true
	c.completed = append(c.completed, q)
	return true
}

// fail pushes q as the result of the taken query and discards all other
// pending queries. The connection stays busy until the failure was collected.
func (c *Conn) fail(q *query.Query, t ticket) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ours := c.running == t.token
	if ours {
		c.running = 0
	}
	if t.epoch != c.epoch {
		if ours {
			c.busy = false
		}
		return 0
	}
	dropped := len(c.pending)
	c.pending = nil
	c.completed = append(c.completed, q)
	return dropped
}

// pushCompleted queues a result for delivery. Results from before the last
// reset are dropped.
func (c *Conn) pushCompleted(q *query.Query, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.completed = append(c.completed, q)
	return true
}

func (c *Conn) popCompleted() (*query.Query, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.completed) == 0 {
		return nil, 0
	}
	q := c.completed[0]
	c.completed[0] = nil
	c.completed = c.completed[1:]
	return q, c.epoch
}

// release clears the busy flag if epoch is still current
func (c *Conn) release(epoch uint64) {
	c.mu.Lock()
	if epoch == c.epoch {
		c.busy = false
	}
	c.mu.Unlock()
}

// reset drops both queues and starts a new epoch. A query still running on a
// worker keeps the connection busy until finish.
func (c *Conn) reset() {
	c.mu.Lock()
	c.pending = nil
	c.completed = nil
	c.busy = c.running != 0
	c.epoch++
	c.mu.Unlock()
}
