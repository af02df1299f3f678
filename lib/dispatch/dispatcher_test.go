package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aKV/lib/codec"
	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/engines/lsm"
	"github.com/ValentinKolb/aKV/lib/query"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

const testEpoch = int64(1_700_000_000)

type testEnv struct {
	t   *testing.T
	d   *Dispatcher
	db  *db.Database
	now time.Time

	mu       sync.Mutex // hooks may run on worker goroutines
	failures []*query.Query
	globals  []*query.Query
}

func (te *testEnv) hooks() (failures, globals []*query.Query) {
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]*query.Query(nil), te.failures...), append([]*query.Query(nil), te.globals...)
}

func newTestEnv(t *testing.T, workers, chunkSize int) *testEnv {
	kv, err := lsm.NewLSMDB(&lsm.Options{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	database := db.NewDatabase("test", kv)

	te := &testEnv{t: t, db: database, now: time.Unix(testEpoch, 0)}
	clock := func() time.Time { return te.now }

	te.d = New(Options{
		Workers:  workers,
		Env:      query.NewEnvWithClock(chunkSize, clock),
		Database: database,
		Now:      clock,
		OnFailure: func(_ *Conn, q *query.Query) {
			te.mu.Lock()
			te.failures = append(te.failures, q)
			te.mu.Unlock()
		},
		OnGlobal: func(q *query.Query) {
			te.mu.Lock()
			te.globals = append(te.globals, q)
			te.mu.Unlock()
		},
	})
	te.d.Start()

	t.Cleanup(func() {
		te.d.Shutdown()
		_ = database.Close()
	})
	return te
}

// recorder collects the results delivered to one connection
type recorder struct {
	results []*query.Query
}

func (r *recorder) deliver(q *query.Query) { r.results = append(r.results, q) }

func (te *testEnv) connect() (*Conn, *recorder) {
	r := &recorder{}
	return te.d.Connect(te.db, r.deliver), r
}

func (te *testEnv) post(c *Conn, kind query.Kind, args ...string) *query.Query {
	q := query.New(nil, nil, 0, kind, args...)
	te.d.Post(c, q)
	return q
}

// drive runs dispatch and collect passes until done returns true
func (te *testEnv) drive(done func() bool) {
	te.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			te.t.Fatalf("timeout while driving the dispatcher")
		}
		for te.d.CollectResults() > 0 {
		}
		te.d.DispatchPending()
		time.Sleep(50 * time.Microsecond)
	}
}

// settle drives until the connection has nothing pending, in flight or undelivered
func (te *testEnv) settle(c *Conn) {
	te.t.Helper()
	te.drive(func() bool {
		return c.Pending() == 0 && c.Completed() == 0 && !c.IsLocked()
	})
}

// hold blocks the execution mutex of the database until the returned func is called
func (te *testEnv) hold() func() {
	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = te.db.Exec(func(db.KVDB) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	return func() { close(release) }
}

// run posts one query and returns its result
func (te *testEnv) run(c *Conn, r *recorder, kind query.Kind, args ...string) *query.Query {
	te.t.Helper()
	before := len(r.results)
	te.post(c, kind, args...)
	te.drive(func() bool { return len(r.results) > before && !c.IsLocked() })
	return r.results[len(r.results)-1]
}

// --------------------------------------------------------------------------
// End-to-end scenarios
// --------------------------------------------------------------------------

func TestSetRoundTrip(t *testing.T) {
	te := newTestEnv(t, 4, 0)
	c, r := te.connect()

	te.post(c, query.KindSet, "k", "v")
	te.settle(c)

	if len(r.results) != 1 {
		t.Fatalf("expected one result, got %d", len(r.results))
	}
	res := r.results[0]
	if res.Status != query.StatusOK || res.Scalar != "OK" || res.Partial {
		t.Errorf("unexpected result: status=%s scalar=%q partial=%v", res.Status, res.Scalar, res.Partial)
	}
	if res.Owner != c || res.Select != 1 {
		t.Errorf("query should be owned by the connection and use its select")
	}

	if got := te.run(c, r, query.KindGet, "k"); got.Scalar != "v" {
		t.Errorf("GET returned %q", got.Scalar)
	}
}

func TestSingleFlightAndOrder(t *testing.T) {
	te := newTestEnv(t, 8, 0)
	c, r := te.connect()

	const n = 50
	for i := 0; i < n; i++ {
		te.post(c, query.KindIncr, "counter")
	}

	check := func() {
		inflight := n - c.Pending() - len(r.results)
		if inflight > 1 {
			t.Fatalf("%d queries of one connection in flight", inflight)
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for len(r.results) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timeout, got %d of %d results", len(r.results), n)
		}
		te.d.DispatchPending()
		check()
		for te.d.CollectResults() > 0 {
			check()
		}
	}

	for i, res := range r.results {
		if res.Scalar != strconv.Itoa(i+1) {
			t.Fatalf("result %d is %q, results must arrive in submission order", i, res.Scalar)
		}
	}
	te.drive(func() bool { return !c.IsLocked() })
}

func TestChunkedScan(t *testing.T) {
	entries := 250_000
	if testing.Short() {
		entries = 25_000
	}
	const chunkSize = 1000

	te := newTestEnv(t, 4, chunkSize)
	c, r := te.connect()

	// write the map in one go
	mp := codec.NewMap()
	for i := 0; i < entries; i++ {
		mp.Set(fmt.Sprintf("field-%07d", i), strconv.Itoa(i))
	}
	err := te.db.Exec(func(kv db.KVDB) error {
		return kv.Set(query.StorageKey(1, "m"), append([]byte{query.TypeMap}, mp.Encode()...))
	})
	if err != nil {
		t.Fatalf("failed to store map: %v", err)
	}

	lockedDuringChunks := true
	c.deliver = func(q *query.Query) {
		if !c.IsLocked() {
			lockedDuringChunks = false
		}
		r.deliver(q)
	}

	te.post(c, query.KindHGetAll, "m")
	te.settle(c)

	partials := entries / chunkSize
	if len(r.results) != partials+1 {
		t.Fatalf("expected %d results, got %d", partials+1, len(r.results))
	}

	total := 0
	for i, res := range r.results {
		if res.Sub != i {
			t.Errorf("result %d has sub %d", i, res.Sub)
		}
		if res.Partial != (i < partials) {
			t.Errorf("result %d: partial=%v", i, res.Partial)
		}
		total += len(res.Pairs)
	}
	if total != entries {
		t.Errorf("expected %d elements, got %d", entries, total)
	}
	if !lockedDuringChunks {
		t.Errorf("the connection must stay busy until the final chunk was collected")
	}
	if c.IsLocked() {
		t.Errorf("the connection must be idle after the final chunk")
	}
	if stats := te.d.Stats(); stats.Chunks != uint64(partials) {
		t.Errorf("expected %d counted chunks, got %d", partials, stats.Chunks)
	}
}

func TestExpireTick(t *testing.T) {
	te := newTestEnv(t, 2, 0)
	c, r := te.connect()

	te.run(c, r, query.KindSet, "k", "v")
	if res := te.run(c, r, query.KindExpire, "k", "5"); res.Status != query.StatusOK {
		t.Fatalf("EXPIRE failed: %s", res.Status)
	}

	// not yet due
	if n := te.d.Tick(time.Unix(testEpoch+5, 0)); n != 0 {
		t.Fatalf("expected nothing to flush, got %d", n)
	}

	if n := te.d.Tick(time.Unix(testEpoch+6, 0)); n != 1 {
		t.Fatalf("expected one flushed entry, got %d", n)
	}
	g := te.d.Global()
	te.drive(func() bool { return g.Pending() == 0 && !g.IsLocked() })

	if res := te.run(c, r, query.KindGet, "k"); res.Status != query.StatusNotFound {
		t.Errorf("expected k to be deleted, GET returned %s", res.Status)
	}
	if _, ok := te.d.Env().Expires.TriggerTime("k", 1); ok {
		t.Errorf("expire entry should be gone")
	}
	if n := te.d.Tick(time.Unix(testEpoch+7, 0)); n != 0 {
		t.Errorf("expected nothing left to flush, got %d", n)
	}

	dels := int64(0)
	for _, op := range te.d.Stats().Ops {
		if op.Name == "DEL" {
			dels = op.Count
		}
	}
	if dels != 1 {
		t.Errorf("expected exactly one DEL execution, got %d", dels)
	}
	failures, globals := te.hooks()
	for _, q := range failures {
		if q.Flags.Has(query.FlagGlobal) {
			t.Errorf("synthetic %s failed with %s", q.Name(), q.Status)
		}
	}
	if len(globals) != 0 {
		t.Errorf("synthetic queries must be quiet, got %d global results", len(globals))
	}
}

func TestFutureTick(t *testing.T) {
	te := newTestEnv(t, 2, 0)
	c, r := te.connect()

	te.run(c, r, query.KindFuture, "k", "3", "later")
	if res := te.run(c, r, query.KindGet, "k"); res.Status != query.StatusNotFound {
		t.Fatalf("future write executed too early")
	}

	te.d.Tick(time.Unix(testEpoch+4, 0))
	g := te.d.Global()
	te.drive(func() bool { return g.Pending() == 0 && !g.IsLocked() })

	if res := te.run(c, r, query.KindGet, "k"); res.Scalar != "later" {
		t.Errorf("expected future value, got %s %q", res.Status, res.Scalar)
	}
}

func TestDisconnectDuringScan(t *testing.T) {
	te := newTestEnv(t, 2, 10)
	c, r := te.connect()

	values := make([]string, 1000)
	for i := range values {
		values[i] = strconv.Itoa(i)
	}
	te.run(c, r, query.KindRPush, append([]string{"l"}, values...)...)
	before := len(r.results)

	c.deliver = func(q *query.Query) {
		r.deliver(q)
		if len(r.results)-before == 2 {
			te.d.Disconnect(c)
		}
	}
	te.post(c, query.KindLGet, "l")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for te.d.CollectResults() > 0 {
		}
		te.d.DispatchPending()
		time.Sleep(time.Millisecond)
	}

	if got := len(r.results) - before; got != 2 {
		t.Errorf("expected no chunks after the disconnect, got %d chunks", got)
	}
	if te.d.Connections() != 0 {
		t.Errorf("connection should be unregistered")
	}
}

// --------------------------------------------------------------------------
// Failure paths
// --------------------------------------------------------------------------

func TestNoWorker(t *testing.T) {
	te := newTestEnv(t, 0, 0)
	c, r := te.connect()

	te.post(c, query.KindSet, "a", "1")
	te.post(c, query.KindSet, "b", "2")
	te.post(c, query.KindSet, "c", "3")

	if n := te.d.DispatchPending(); n != 1 {
		t.Fatalf("expected one dispatch attempt, got %d", n)
	}
	if c.Pending() != 0 {
		t.Errorf("pending queries should be discarded, %d left", c.Pending())
	}
	te.settle(c)

	if len(r.results) != 1 || r.results[0].Status != query.StatusNoWorker {
		t.Fatalf("expected a single no-worker result, got %d results", len(r.results))
	}
	if failures, _ := te.hooks(); len(failures) != 1 {
		t.Errorf("failure hook should be called once, got %d", len(failures))
	}
}

func TestClosingDatabase(t *testing.T) {
	te := newTestEnv(t, 2, 0)
	c, r := te.connect()
	_ = te.db.Close()

	te.post(c, query.KindSet, "k", "v")
	if c.Completed() != 1 || c.Pending() != 0 {
		t.Fatalf("write against a closing database should complete right away")
	}
	te.settle(c)

	te.run(c, r, query.KindGet, "k")
	if len(r.results) != 2 {
		t.Fatalf("expected two results, got %d", len(r.results))
	}
	for _, res := range r.results {
		if res.Status != query.StatusDatabaseBusy {
			t.Errorf("%s: expected database-busy, got %s", res.Name(), res.Status)
		}
	}
}

func TestResetAll(t *testing.T) {
	te := newTestEnv(t, 0, 0)
	c, _ := te.connect()

	for i := 0; i < 5; i++ {
		te.post(c, query.KindPing)
	}
	te.d.Global().pushPending(query.New(nil, te.db, 1, query.KindPing))
	te.d.Env().Expires.Add(10, "k", 1, te.db, nil, false)
	te.d.Env().Futures.Add(10, "k", 1, te.db, []byte("v"), false)

	te.d.ResetAll()

	if c.Pending() != 0 || te.d.Global().Pending() != 0 {
		t.Errorf("ResetAll should drop all pending queries")
	}
	if te.d.Env().Expires.Len() != 0 || te.d.Env().Futures.Len() != 0 {
		t.Errorf("ResetAll should clear both schedulers")
	}
	if c.IsLocked() {
		t.Errorf("connection should be idle after a reset")
	}
}

func TestResetAllKeepsSingleFlight(t *testing.T) {
	te := newTestEnv(t, 4, 0)
	c, r := te.connect()

	release := te.hold()
	te.post(c, query.KindSet, "k", "a")
	if n := te.d.DispatchPending(); n != 1 {
		t.Fatalf("expected one dispatched query, got %d", n)
	}

	te.d.ResetAll()
	if !c.IsLocked() {
		t.Fatalf("connection must stay busy while its query runs on a worker")
	}

	te.post(c, query.KindSet, "k", "b")
	for i := 0; i < 10; i++ {
		if n := te.d.DispatchPending(); n != 0 {
			release()
			t.Fatalf("second query of the connection dispatched while the first is in flight")
		}
		te.d.CollectResults()
	}

	release()
	te.settle(c)

	if len(r.results) != 1 || r.results[0].Scalar != "OK" {
		t.Fatalf("expected only the result of the query posted after the reset, got %d", len(r.results))
	}
	if res := te.run(c, r, query.KindGet, "k"); res.Scalar != "b" {
		t.Errorf("writes of one connection must apply in order, GET returned %q", res.Scalar)
	}
}

func TestSetLock(t *testing.T) {
	te := newTestEnv(t, 2, 0)
	c, r := te.connect()

	c.SetLock(true)
	te.post(c, query.KindPing)
	if n := te.d.DispatchPending(); n != 0 || c.Pending() != 1 {
		t.Fatalf("a locked connection must not be dispatched")
	}

	c.SetLock(false)
	te.settle(c)
	if len(r.results) != 1 || r.results[0].Scalar != "PONG" {
		t.Errorf("expected PONG after unlocking, got %d results", len(r.results))
	}
}

func TestShutdownFailsQueued(t *testing.T) {
	te := newTestEnv(t, 1, 0)
	c1, r1 := te.connect()
	c2, r2 := te.connect()
	w := te.d.workers[0]

	release := te.hold()
	te.post(c1, query.KindSet, "a", "1")
	te.d.DispatchPending()

	// the exit message overtakes a query that is posted right after it
	w.inflight.Add(1)
	w.queue.Push(&message{exit: true})
	te.post(c2, query.KindSet, "b", "2")
	if n := te.d.DispatchPending(); n != 1 {
		t.Fatalf("expected one dispatched query, got %d", n)
	}

	release()
	<-w.done

	te.settle(c1)
	te.settle(c2)
	if len(r1.results) != 1 || r1.results[0].Status != query.StatusOK {
		t.Errorf("the running query should finish normally")
	}
	if len(r2.results) != 1 || r2.results[0].Status != query.StatusNoWorker {
		t.Fatalf("the dropped query should fail with no-worker, got %d results", len(r2.results))
	}
}

func TestGlobalDelivery(t *testing.T) {
	te := newTestEnv(t, 2, 0)

	q := query.New(nil, nil, 0, query.KindPing, "hello")
	q.Flags = query.FlagGlobal
	te.d.Post(te.d.Global(), q)

	g := te.d.Global()
	te.drive(func() bool {
		_, globals := te.hooks()
		return len(globals) == 1 && !g.IsLocked()
	})

	if _, globals := te.hooks(); globals[0].Scalar != "hello" {
		t.Errorf("unexpected global result %q", globals[0].Scalar)
	}
}

func TestGlobalDispatchedFirst(t *testing.T) {
	te := newTestEnv(t, 1, 0)
	c, r := te.connect()

	te.post(c, query.KindSet, "k", "conn")
	q := query.New(nil, nil, 0, query.KindSet, "k", "global")
	q.Flags = query.FlagGlobal | query.FlagQuiet
	te.d.Post(te.d.Global(), q)

	// one pass, a single worker executes its FIFO in dispatch order
	if n := te.d.DispatchPending(); n != 2 {
		t.Fatalf("expected both queries in one pass, got %d", n)
	}
	g := te.d.Global()
	te.settle(c)
	te.drive(func() bool { return !g.IsLocked() })

	if res := te.run(c, r, query.KindGet, "k"); res.Scalar != "conn" {
		t.Errorf("the global query must run before the connection's, GET returned %q", res.Scalar)
	}
}

func TestPickWorker(t *testing.T) {
	const workers = 3
	te := newTestEnv(t, workers, 0)
	release := te.hold()

	var conns []*Conn
	dispatch := func() {
		c, _ := te.connect()
		conns = append(conns, c)
		te.post(c, query.KindSet, "k", "v")
		if n := te.d.DispatchPending(); n != 1 {
			release()
			t.Fatalf("expected one dispatched query, got %d", n)
		}
	}

	// idle workers are used in order
	for i := 0; i < workers; i++ {
		dispatch()
		for j, w := range te.d.workers {
			want := int64(0)
			if j <= i {
				want = 1
			}
			if got := w.inflight.Load(); got != want {
				release()
				t.Fatalf("after %d dispatches worker %d holds %d queries, expected %d", i+1, j, got, want)
			}
		}
	}

	// all busy, the rest is spread at random
	for i := 0; i < 30; i++ {
		dispatch()
	}
	loaded, total := 0, int64(0)
	for _, w := range te.d.workers {
		n := w.inflight.Load()
		total += n
		if n > 1 {
			loaded++
		}
	}
	release()

	if total != workers+30 {
		t.Errorf("expected %d queued queries, got %d", workers+30, total)
	}
	if loaded < 2 {
		t.Errorf("busy workers should be picked at random, only %d got extra queries", loaded)
	}
	for _, c := range conns {
		te.settle(c)
	}
}

// --------------------------------------------------------------------------
// Reactor loop and metrics
// --------------------------------------------------------------------------

func TestRun(t *testing.T) {
	te := newTestEnv(t, 2, 0)

	results := make(chan *query.Query, 1)
	c := te.d.Connect(te.db, func(q *query.Query) { results <- q })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error)
	go func() { stopped <- te.d.Run(ctx) }()

	te.d.Post(c, query.New(nil, nil, 0, query.KindSet, "k", "v"))

	select {
	case q := <-results:
		if q.Status != query.StatusOK {
			t.Errorf("unexpected status %s", q.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no result from the reactor loop")
	}

	cancel()
	if err := <-stopped; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestMetrics(t *testing.T) {
	te := newTestEnv(t, 3, 0)
	c, r := te.connect()
	te.run(c, r, query.KindSet, "k", "v")
	te.run(c, r, query.KindGet, "missing")

	stats := te.d.Stats()
	if stats.Workers != 3 || stats.Posted != 2 || stats.Executed != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	var buf bytes.Buffer
	te.d.WritePrometheus(&buf)
	for _, name := range []string{"akv_queries_posted_total 2", "akv_queries_failed_total 1", "akv_workers 3"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("metrics output misses %q:\n%s", name, buf.String())
		}
	}
}
