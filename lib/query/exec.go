package query

import (
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/schedule"
)

// DefaultChunkSize is the number of elements per chunk of a scan
const DefaultChunkSize = 1000

// Env carries the server-wide collaborators of the query pipeline
type Env struct {
	Expires   *schedule.Scheduler
	Futures   *schedule.Scheduler
	ChunkSize int
	Now       func() time.Time
}

// NewEnv creates an environment with fresh schedulers
func NewEnv(chunkSize int) *Env {
	return NewEnvWithClock(chunkSize, time.Now)
}

// NewEnvWithClock creates an environment whose schedulers use the given clock
func NewEnvWithClock(chunkSize int, now func() time.Time) *Env {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Env{
		Expires:   schedule.NewWithClock("expire", now),
		Futures:   schedule.NewWithClock("future", now),
		ChunkSize: chunkSize,
		Now:       now,
	}
}

func (env *Env) now() time.Time {
	if env.Now == nil {
		return time.Now()
	}
	return env.Now()
}

func (env *Env) chunkSize() int {
	if env.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return env.ChunkSize
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Execute runs q and passes its result to deliver.
//
// Queries without a scan deliver q exactly once. A scan delivers every full
// chunk as a partial copy of q (Sub counting up from 0) and finishes by
// delivering q itself with the remaining elements. Between chunks the owner's
// liveness is checked: if it disconnected, the scan stops, nothing further is
// delivered and Execute returns false.
func Execute(env *Env, q *Query, deliver func(*Query)) bool {
	if q.Owner != nil && !q.Owner.Alive() {
		q.Fail(StatusInterrupt)
		return false
	}

	spec, ok := Lookup(q.Kind)
	switch {
	case !ok:
		q.Fail(StatusInvalidFormat)
	case !spec.arity(len(q.Args)):
		q.Fail(StatusMissingArgs)
	case q.Database == nil:
		q.Fail(StatusDatabaseBusy)
	case spec.Scan != nil:
		return runScan(env, spec, q, deliver)
	default:
		run(env, spec, q)
	}

	deliver(q)
	return true
}

// run executes a non-scan query inside the execution mutex
func run(env *Env, spec *Spec, q *Query) {
	status := StatusOK
	err := q.Database.Exec(func(kv db.KVDB) error {
		status = spec.Run(&Tx{Env: env, Q: q, kv: kv})
		return nil
	})
	if err != nil {
		status = fromError(err)
	}
	if status != StatusOK {
		q.Fail(status)
		return
	}
	q.Status = StatusOK
}

// runScan drives a scan producer and cuts its output into chunks
func runScan(env *Env, spec *Spec, q *Query, deliver func(*Query)) bool {
	size := env.chunkSize()
	sub := 0
	aborted := false

	q.Items, q.Pairs = nil, nil
	status := spec.Scan(env, q, func(field, value string) bool {
		if spec.Pairs {
			q.Pairs = append(q.Pairs, Pair{Field: field, Value: value})
		} else {
			q.Items = append(q.Items, value)
		}
		if q.Len() < size {
			return true
		}

		deliver(q.chunk(sub))
		sub++

		if q.Owner != nil && !q.Owner.Alive() {
			aborted = true
			return false
		}
		return true
	})

	if aborted {
		q.Fail(StatusInterrupt)
		return false
	}

	if status != StatusOK {
		q.Fail(status)
	} else {
		q.Status = StatusOK
	}
	q.Partial = false
	q.Sub = sub
	deliver(q)
	return true
}

// view runs fn inside the execution mutex, for scans that need to load a
// composite value before streaming it
func view(env *Env, q *Query, fn func(tx *Tx) Status) Status {
	status := StatusOK
	err := q.Database.Exec(func(kv db.KVDB) error {
		status = fn(&Tx{Env: env, Q: q, kv: kv})
		return nil
	})
	if err != nil {
		return fromError(err)
	}
	return status
}
