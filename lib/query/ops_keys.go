package query

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

func init() {
	Register(Spec{Kind: KindPing, Name: "PING", MaxArgs: 1, Run: execPing})
	Register(Spec{Kind: KindSet, Name: "SET", MinArgs: 2, MaxArgs: 2, Write: true, Run: execSet})
	Register(Spec{Kind: KindSetNX, Name: "SETNX", MinArgs: 2, MaxArgs: 2, Write: true, Run: execSetNX})
	Register(Spec{Kind: KindGet, Name: "GET", MinArgs: 1, MaxArgs: 1, Run: execGet})
	Register(Spec{Kind: KindDel, Name: "DEL", MinArgs: 1, MaxArgs: 1, Write: true, Run: execDel})
	Register(Spec{Kind: KindExists, Name: "EXISTS", MinArgs: 1, MaxArgs: 1, Run: execExists})
	Register(Spec{Kind: KindStrlen, Name: "STRLEN", MinArgs: 1, MaxArgs: 1, Run: execStrlen})
	Register(Spec{Kind: KindAppend, Name: "APPEND", MinArgs: 2, MaxArgs: 2, Write: true, Run: execAppend})
	Register(Spec{Kind: KindGetSet, Name: "GETSET", MinArgs: 2, MaxArgs: 2, Write: true, Run: execGetSet})
	Register(Spec{Kind: KindIncr, Name: "INCR", MinArgs: 1, MaxArgs: 1, Write: true, Run: execIncr})
	Register(Spec{Kind: KindDecr, Name: "DECR", MinArgs: 1, MaxArgs: 1, Write: true, Run: execDecr})
	Register(Spec{Kind: KindIncrBy, Name: "INCRBY", MinArgs: 2, MaxArgs: 2, Write: true, Run: execIncrBy})
	Register(Spec{Kind: KindDecrBy, Name: "DECRBY", MinArgs: 2, MaxArgs: 2, Write: true, Run: execDecrBy})
	Register(Spec{Kind: KindIncrByFloat, Name: "INCRBYFLOAT", MinArgs: 2, MaxArgs: 2, Write: true, Run: execIncrByFloat})
	Register(Spec{Kind: KindType, Name: "TYPE", MinArgs: 1, MaxArgs: 1, Run: execType})
	Register(Spec{Kind: KindMove, Name: "MOVE", MinArgs: 2, MaxArgs: 2, Write: true, Run: execMove})
	Register(Spec{Kind: KindDBSize, Name: "DBSIZE", Run: execDBSize})
	Register(Spec{Kind: KindFlushDB, Name: "FLUSHDB", Write: true, Run: execFlushDB})
	Register(Spec{Kind: KindKeys, Name: "KEYS", MinArgs: 1, MaxArgs: 1, Scan: scanKeys})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func parseInt(s string) (int64, Status) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, StatusNotNumeric
	}
	return n, StatusOK
}

func boolScalar(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseSelect parses and validates a select number
func ParseSelect(s string) (uint16, Status) {
	n, st := parseInt(s)
	if st != StatusOK {
		return 0, st
	}
	if n < int64(MinSelect) || n > int64(MaxSelect) {
		return 0, StatusInvalidRange
	}
	return uint16(n), StatusOK
}

// --------------------------------------------------------------------------
// Strings
// --------------------------------------------------------------------------

func execPing(tx *Tx) Status {
	if len(tx.Q.Args) == 1 {
		return tx.ok(tx.Arg(0))
	}
	return tx.ok("PONG")
}

// execSet overwrites any value and keeps a pending expiration
func execSet(tx *Tx) Status {
	if st := tx.storeString(tx.Arg(0), tx.Arg(1)); st != StatusOK {
		return st
	}
	return tx.ok("OK")
}

func execSetNX(tx *Tx) Status {
	found, st := tx.exists(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	if found {
		return StatusExists
	}
	return execSet(tx)
}

func execGet(tx *Tx) Status {
	value, found, st := tx.loadString(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	if !found {
		return StatusNotFound
	}
	return tx.ok(value)
}

// execDel removes a key of any type and cancels its expiration. A DEL issued
// by the expiration scheduler does nothing if the key got a new expiration
// after the flush.
func execDel(tx *Tx) Status {
	key := tx.Arg(0)
	if tx.Q.Expiry != 0 {
		if trigger, ok := tx.Env.Expires.TriggerTime(key, tx.Q.Select); ok && trigger != tx.Q.Expiry {
			return StatusInterrupt
		}
	}
	found, st := tx.exists(key)
	if st != StatusOK {
		return st
	}
	if !found {
		return StatusNotFound
	}
	if st := tx.remove(key); st != StatusOK {
		return st
	}
	tx.Env.Expires.Delete(key, tx.Q.Select)
	return tx.ok("OK")
}

func execExists(tx *Tx) Status {
	found, st := tx.exists(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(boolScalar(found))
}

func execStrlen(tx *Tx) Status {
	value, _, st := tx.loadString(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(len(value)))
}

func execAppend(tx *Tx) Status {
	key := tx.Arg(0)
	value, _, st := tx.loadString(key)
	if st != StatusOK {
		return st
	}
	value += tx.Arg(1)
	if st := tx.storeString(key, value); st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(len(value)))
}

// execGetSet returns the previous value (empty if there was none)
func execGetSet(tx *Tx) Status {
	key := tx.Arg(0)
	old, _, st := tx.loadString(key)
	if st != StatusOK {
		return st
	}
	if st := tx.storeString(key, tx.Arg(1)); st != StatusOK {
		return st
	}
	return tx.ok(old)
}

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

func incrBy(tx *Tx, delta int64) Status {
	key := tx.Arg(0)
	value, found, st := tx.loadString(key)
	if st != StatusOK {
		return st
	}

	var current int64
	if found {
		if current, st = parseInt(value); st != StatusOK {
			return st
		}
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return StatusInvalidRange
	}
	next := strconv.FormatInt(current+delta, 10)
	if st := tx.storeString(key, next); st != StatusOK {
		return st
	}
	return tx.ok(next)
}

func execIncr(tx *Tx) Status { return incrBy(tx, 1) }

func execDecr(tx *Tx) Status { return incrBy(tx, -1) }

func execIncrBy(tx *Tx) Status {
	delta, st := parseInt(tx.Arg(1))
	if st != StatusOK {
		return st
	}
	return incrBy(tx, delta)
}

func execDecrBy(tx *Tx) Status {
	delta, st := parseInt(tx.Arg(1))
	if st != StatusOK {
		return st
	}
	if delta == math.MinInt64 {
		return StatusInvalidRange
	}
	return incrBy(tx, -delta)
}

func execIncrByFloat(tx *Tx) Status {
	delta, err := decimal.NewFromString(tx.Arg(1))
	if err != nil {
		return StatusNotNumeric
	}

	key := tx.Arg(0)
	value, found, st := tx.loadString(key)
	if st != StatusOK {
		return st
	}

	current := decimal.Zero
	if found {
		if current, err = decimal.NewFromString(value); err != nil {
			return StatusNotNumeric
		}
	}

	next := current.Add(delta).String()
	if st := tx.storeString(key, next); st != StatusOK {
		return st
	}
	return tx.ok(next)
}

// --------------------------------------------------------------------------
// Keys
// --------------------------------------------------------------------------

func execType(tx *Tx) Status {
	tag, _, found, st := tx.loadAny(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	if !found {
		return tx.ok("none")
	}
	return tx.ok(TypeName(tag))
}

// execMove moves a key into another select of the same database.
// A pending expiration moves along with the key.
func execMove(tx *Tx) Status {
	key := tx.Arg(0)
	dst, st := ParseSelect(tx.Arg(1))
	if st != StatusOK {
		return st
	}
	if dst == tx.Q.Select {
		return StatusProtected
	}

	raw, found, err := tx.kv.Get(StorageKey(tx.Q.Select, key))
	if err != nil {
		return fromError(err)
	}
	if !found {
		return StatusNotFound
	}

	taken, err := tx.kv.Has(StorageKey(dst, key))
	if err != nil {
		return fromError(err)
	}
	if taken {
		return StatusExists
	}

	if err := tx.kv.Set(StorageKey(dst, key), raw); err != nil {
		return fromError(err)
	}
	if st := tx.remove(key); st != StatusOK {
		return st
	}

	if trigger, ok := tx.Env.Expires.TriggerTime(key, tx.Q.Select); ok {
		tx.Env.Expires.Delete(key, tx.Q.Select)
		if _, err := tx.Env.Expires.Add(trigger, key, dst, tx.Q.Database, nil, true); err != nil {
			// already due, the moved key is expired
			if err := tx.kv.Delete(StorageKey(dst, key)); err != nil {
				return fromError(err)
			}
		}
	}
	return tx.ok("OK")
}

func execDBSize(tx *Tx) Status {
	lower, upper := SelectBounds(tx.Q.Select)
	n := 0
	err := tx.kv.Range(lower, upper, func(_, _ []byte) bool {
		n++
		return true
	})
	if err != nil {
		return fromError(err)
	}
	return tx.ok(strconv.Itoa(n))
}

// execFlushDB removes every key of the select together with its scheduled entries
func execFlushDB(tx *Tx) Status {
	lower, upper := SelectBounds(tx.Q.Select)
	if err := tx.kv.DeleteRange(lower, upper); err != nil {
		return fromError(err)
	}
	tx.Env.Expires.DeleteSelect(tx.Q.Select)
	tx.Env.Futures.DeleteSelect(tx.Q.Select)
	return tx.ok("OK")
}

// scanKeys streams every key of the select that matches a glob pattern
func scanKeys(_ *Env, q *Query, emit Emit) Status {
	glob, err := compileGlob(q.Args[0])
	if err != nil {
		return StatusInvalidFormat
	}

	lower, upper := SelectBounds(q.Select)
	err = q.Database.Scan(lower, upper, func(raw, _ []byte) bool {
		_, key, ok := SplitStorageKey(raw)
		if !ok {
			return true
		}
		if !glob.MatchString(key) {
			return true
		}
		return emit("", key)
	})
	return fromError(err)
}
