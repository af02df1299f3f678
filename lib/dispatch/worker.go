package dispatch

import (
	"sync/atomic"

	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/ValentinKolb/aKV/lib/query"
)

// message is an entry of a worker's FIFO
type message struct {
	conn   *Conn
	q      *query.Query
	ticket ticket
	exit   bool
}

// worker executes queries from its private FIFO strictly in order
type worker struct {
	id       int
	queue    *util.LockFreeMPSC[message]
	inflight atomic.Int64 // posted but not yet finished messages
	busy     atomic.Bool  // executing a query right now
	executed atomic.Uint64
	done     chan struct{}
}

func newWorker(id int) *worker {
	return &worker{
		id:    id,
		queue: util.NewLockFreeMPSC[message](),
		done:  make(chan struct{}),
	}
}

// idle reports whether the worker has nothing queued or running
func (w *worker) idle() bool { return w.inflight.Load() == 0 }

func (w *worker) post(m *message) bool {
	w.inflight.Add(1)
	if !w.queue.Push(m) {
		w.inflight.Add(-1)
		return false
	}
	return true
}

// run is the worker loop. It returns after an exit message and hands
// everything still queued behind it to drop.
func (w *worker) run(exec, drop func(w *worker, m *message)) {
	defer close(w.done)

	for m := range w.queue.Recv() {
		if m.exit {
			w.queue.Close()
			dropped := 0
			for m := range w.queue.Recv() {
				if m.exit {
					continue
				}
				drop(w, m)
				w.inflight.Add(-1)
				dropped++
			}
			if dropped > 0 {
				Logger.Warningf("worker %d: failed %d queued queries on exit", w.id, dropped)
			}
			return
		}

		w.busy.Store(true)
		exec(w, m)
		w.executed.Add(1)
		w.busy.Store(false)
		w.inflight.Add(-1)
	}
}

// stop posts the exit message and waits for the worker to terminate
func (w *worker) stop() {
	w.inflight.Add(1)
	if w.queue.Push(&message{exit: true}) {
		<-w.done
	}
}
