package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/ValentinKolb/aKV/lib/schedule"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Logger is the logger used by the dispatcher
var Logger = logger.GetLogger("dispatch")

const (
	defaultPollInterval = 10 * time.Millisecond
	schedulerInterval   = time.Second
)

// Options configures a Dispatcher
type Options struct {
	Workers      int                           // Size of the worker pool
	Env          *query.Env                    // Schedulers and chunk size (nil = query.NewEnv(0))
	Database     *db.Database                  // Database of the global connection
	PollInterval time.Duration                 // Fallback interval of the reactor loop (0 = 10ms)
	OnFailure    func(c *Conn, q *query.Query) // Called for every failed query that is not an interrupt
	OnGlobal     func(q *query.Query)          // Receives results of global queries that are not quiet
	Now          func() time.Time              // Clock of the scheduler tick (nil = time.Now)
}

// Dispatcher routes the queries of all connections to a fixed pool of workers
// and funnels their results back to the connections.
//
// Reactor side (one goroutine, see Run): DispatchPending, CollectResults and
// Tick. Any goroutine: Connect, Disconnect, Post, ResetAll, Stats.
type Dispatcher struct {
	opts    Options
	env     *query.Env
	metrics *dispatchMetrics

	poolMu  sync.RWMutex
	workers []*worker

	rndMu sync.Mutex
	rnd   *rand.Rand

	conns  *xsync.MapOf[uint64, *Conn]
	global *Conn
	nextID atomic.Uint64
	paused atomic.Bool
	notify chan struct{}
}

// New creates a dispatcher. The worker pool is empty until Start is called.
func New(opts Options) *Dispatcher {
	if opts.Env == nil {
		opts.Env = query.NewEnv(0)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Dispatcher{
		opts:   opts,
		env:    opts.Env,
		rnd:    rand.New(rand.NewSource(int64(util.GenerateSeed()))),
		conns:  xsync.NewMapOf[uint64, *Conn](),
		notify: make(chan struct{}, 1),
	}
	d.global = newConn(0, opts.Database, nil, true)
	d.metrics = newDispatchMetrics(d)
	return d
}

// Env returns the environment shared by all queries
func (d *Dispatcher) Env() *query.Env { return d.env }

// Global returns the global pseudo-connection
func (d *Dispatcher) Global() *Conn { return d.global }

// --------------------------------------------------------------------------
// Worker pool lifecycle
// --------------------------------------------------------------------------

// Start launches the worker pool
func (d *Dispatcher) Start() {
	d.poolMu.Lock()
	defer d.poolMu.Unlock()

	for i := 0; i < d.opts.Workers; i++ {
		w := newWorker(len(d.workers))
		d.workers = append(d.workers, w)
		go w.run(d.execute, d.abandon)
	}
	Logger.Infof("started %d workers", len(d.workers))
}

// Shutdown stops all workers and waits for them to terminate.
// Queries posted afterwards fail with StatusNoWorker.
func (d *Dispatcher) Shutdown() {
	d.poolMu.Lock()
	workers := d.workers
	d.workers = nil
	d.poolMu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	Logger.Infof("stopped %d workers", len(workers))
}

// Workers returns the size of the worker pool
func (d *Dispatcher) Workers() int {
	d.poolMu.RLock()
	defer d.poolMu.RUnlock()
	return len(d.workers)
}

// BusyWorkers returns the number of workers executing a query right now
func (d *Dispatcher) BusyWorkers() int {
	d.poolMu.RLock()
	defer d.poolMu.RUnlock()
	n := 0
	for _, w := range d.workers {
		if w.busy.Load() {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// Connect registers a new connection. deliver is called from the reactor
// goroutine for every result of the connection and must not block.
func (d *Dispatcher) Connect(database *db.Database, deliver DeliverFunc) *Conn {
	c := newConn(d.nextID.Add(1), database, deliver, false)
	d.conns.Store(c.id, c)
	return c
}

// Disconnect marks the connection as gone and drops its queues. A scan that is
// still running stops at its next liveness check.
func (d *Dispatcher) Disconnect(c *Conn) {
	c.alive.Store(false)
	c.reset()
	d.conns.Delete(c.id)
}

// Connections returns the number of registered connections
func (d *Dispatcher) Connections() int { return d.conns.Size() }

// --------------------------------------------------------------------------
// Posting
// --------------------------------------------------------------------------

// Post enqueues q for c. The query's owner, database and select default to
// the connection's. Writes against a closing database are rejected right away.
func (d *Dispatcher) Post(c *Conn, q *query.Query) {
	q.Owner = c
	if q.Database == nil {
		q.Database = c.database
	}
	if q.Select == 0 {
		q.Select = c.Select()
	}
	q.Posted = time.Now()
	d.metrics.posted.Inc()

	if d.rejectClosing(q) && c.completeNow(q) {
		d.wake()
		return
	}

	c.pushPending(q)
	d.wake()
}

// rejectClosing fails q if it writes to a closing database
func (d *Dispatcher) rejectClosing(q *query.Query) bool {
	if q.Database == nil || !q.Database.Closing() || !q.Write() {
		return false
	}
	q.Fail(query.StatusDatabaseBusy)
	return true
}

// wake makes the reactor loop run a dispatch and collect pass
func (d *Dispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// --------------------------------------------------------------------------
// Dispatch pass
// --------------------------------------------------------------------------

// DispatchPending assigns the head query of every idle connection to a worker.
// The global connection is serviced first. It returns the number of
// dispatched queries.
func (d *Dispatcher) DispatchPending() int {
	if d.paused.Load() {
		return 0
	}

	n := 0
	if d.dispatchConn(d.global) {
		n++
	}
	d.conns.Range(func(_ uint64, c *Conn) bool {
		if d.paused.Load() {
			return false
		}
		if d.dispatchConn(c) {
			n++
		}
		return true
	})
	return n
}

func (d *Dispatcher) dispatchConn(c *Conn) bool {
	q, t := c.take()
	if q == nil {
		return false
	}

	// rejected writes complete without a worker
	if d.rejectClosing(q) {
		c.pushCompleted(q, t.epoch)
		c.finish(t, false)
		return true
	}

	w := d.pickWorker()
	if w == nil || !w.post(&message{conn: c, q: q, ticket: t}) {
		d.failNoWorker(c, q, t)
	}
	return true
}

// failNoWorker completes q with StatusNoWorker and discards everything else
// pending on its connection
func (d *Dispatcher) failNoWorker(c *Conn, q *query.Query, t ticket) {
	q.Fail(query.StatusNoWorker)
	dropped := c.fail(q, t)
	d.metrics.noWorker.Inc()
	Logger.Warningf("no worker available for connection %d, dropped %d pending queries", c.id, dropped)
	d.wake()
}

// pickWorker returns the first idle worker or, if all are busy, a random one
func (d *Dispatcher) pickWorker() *worker {
	d.poolMu.RLock()
	defer d.poolMu.RUnlock()

	if len(d.workers) == 0 {
		return nil
	}
	for _, w := range d.workers {
		if w.idle() {
			return w
		}
	}

	d.rndMu.Lock()
	i := d.rnd.Intn(len(d.workers))
	d.rndMu.Unlock()
	return d.workers[i]
}

// --------------------------------------------------------------------------
// Execution (worker side)
// --------------------------------------------------------------------------

// execute runs one query on a worker goroutine
func (d *Dispatcher) execute(_ *worker, m *message) {
	c, q := m.conn, m.q
	inline := q.Flags.Has(query.FlagQuiet) || q.Flags.Has(query.FlagGlobal)
	start := time.Now()

	// recorded before the final result becomes visible to the reactor
	recorded := false
	record := func() {
		if !recorded {
			recorded = true
			d.metrics.executed.Inc()
			d.metrics.observe(q.Kind, start)
		}
	}

	finished := query.Execute(d.env, q, func(r *query.Query) {
		d.metrics.chunkSizes.AddSample(r.Len())
		if r.Partial {
			d.metrics.chunks.Inc()
		} else {
			record()
		}
		if inline {
			d.completeInline(c, r)
			return
		}
		c.pushCompleted(r, m.ticket.epoch)
		d.wake()
	})

	record()

	// inline results and aborted scans (owner gone) are never collected
	c.finish(m.ticket, inline || !finished)
	d.wake()
}

// abandon fails a query that was still queued on a stopping worker
func (d *Dispatcher) abandon(_ *worker, m *message) {
	d.failNoWorker(m.conn, m.q, m.ticket)
}

// completeInline finishes quiet and global queries on the worker
func (d *Dispatcher) completeInline(c *Conn, r *query.Query) {
	if r.Status.Failed() {
		d.metrics.failed.Inc()
		if !r.Flags.Has(query.FlagInterrupt) && d.opts.OnFailure != nil {
			d.opts.OnFailure(c, r)
		}
	}
	if r.Flags.Has(query.FlagGlobal) && !r.Flags.Has(query.FlagQuiet) && d.opts.OnGlobal != nil {
		d.opts.OnGlobal(r)
	}
}

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// CollectResults delivers the head of every connection's completed queue.
// It returns the number of delivered results.
func (d *Dispatcher) CollectResults() int {
	n := 0
	collect := func(c *Conn) {
		q, epoch := c.popCompleted()
		if q == nil {
			return
		}
		n++

		if q.Status.Failed() {
			d.metrics.failed.Inc()
			if !q.Flags.Has(query.FlagInterrupt) && d.opts.OnFailure != nil {
				d.opts.OnFailure(c, q)
			}
		}
		if !q.Flags.Has(query.FlagQuiet) && q.Status != query.StatusInterrupt {
			if c.global {
				if d.opts.OnGlobal != nil {
					d.opts.OnGlobal(q)
				}
			} else if c.deliver != nil {
				c.deliver(q)
			}
		}
		if !q.Partial {
			c.release(epoch)
		}
	}

	collect(d.global)
	d.conns.Range(func(_ uint64, c *Conn) bool {
		collect(c)
		return true
	})
	return n
}

// --------------------------------------------------------------------------
// Scheduler tick
// --------------------------------------------------------------------------

// Tick flushes both schedulers and queues the due entries on the global
// connection: a DEL for every expiration and a SET for every future write.
// It returns the number of queued queries.
func (d *Dispatcher) Tick(now time.Time) int {
	flags := query.FlagQuiet | query.FlagGlobal | query.FlagInterrupt
	sink := func(kind query.Kind, expiry bool, args func(e schedule.Entry) []string) func(e schedule.Entry) {
		return func(e schedule.Entry) {
			q := query.New(d.global, e.Database, e.Select, kind, args(e)...)
			q.Flags = flags
			q.Posted = now
			if expiry {
				q.Expiry = e.Trigger
			}
			d.global.pushPending(q)
		}
	}

	n := d.env.Expires.Flush(now.Unix(), sink(query.KindDel, true, func(e schedule.Entry) []string {
		return []string{e.Key}
	}))
	n += d.env.Futures.Flush(now.Unix(), sink(query.KindSet, false, func(e schedule.Entry) []string {
		return []string{e.Key, string(e.Value)}
	}))

	if n > 0 {
		d.metrics.posted.Add(n)
		d.wake()
	}
	return n
}

// --------------------------------------------------------------------------
// Reset
// --------------------------------------------------------------------------

// ResetAll pauses dispatching, drops the queues of every connection (the
// global one included), clears both schedulers and resumes.
func (d *Dispatcher) ResetAll() {
	d.paused.Store(true)

	d.global.reset()
	d.conns.Range(func(_ uint64, c *Conn) bool {
		c.reset()
		return true
	})
	d.env.Expires.Reset()
	d.env.Futures.Reset()

	d.paused.Store(false)
	d.wake()
	Logger.Infof("reset all connections and schedulers")
}

// --------------------------------------------------------------------------
// Reactor loop
// --------------------------------------------------------------------------

// Run drives the dispatcher until ctx is cancelled: it flushes the schedulers
// once per second, collects results and dispatches pending queries whenever it
// is woken up (and at least every PollInterval).
func (d *Dispatcher) Run(ctx context.Context) error {
	tick := time.NewTicker(schedulerInterval)
	defer tick.Stop()
	poll := time.NewTicker(d.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			d.Tick(d.opts.Now())
		case <-poll.C:
		case <-d.notify:
		}

		for d.CollectResults() > 0 {
		}
		d.DispatchPending()
	}
}
