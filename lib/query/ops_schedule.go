package query

import (
	"strconv"

	"github.com/ValentinKolb/aKV/lib/schedule"
)

func init() {
	// expiration
	Register(Spec{Kind: KindExpire, Name: "EXPIRE", MinArgs: 2, MaxArgs: 2, Write: true, Run: execExpire})
	Register(Spec{Kind: KindExpireAt, Name: "EXPIREAT", MinArgs: 2, MaxArgs: 2, Write: true, Run: execExpireAt})
	Register(Spec{Kind: KindSetEx, Name: "SETEX", MinArgs: 3, MaxArgs: 3, Write: true, Run: execSetEx})
	Register(Spec{Kind: KindTTL, Name: "TTL", MinArgs: 1, MaxArgs: 1, Run: execTTL})
	Register(Spec{Kind: KindPersist, Name: "PERSIST", MinArgs: 1, MaxArgs: 1, Write: true, Run: execPersist})
	Register(Spec{Kind: KindExpCount, Name: "EXPCOUNT", Run: execExpCount})

	// future writes
	Register(Spec{Kind: KindFuture, Name: "FUTURE", MinArgs: 3, MaxArgs: 3, Write: true, Run: execFuture})
	Register(Spec{Kind: KindFutureAt, Name: "FUTUREAT", MinArgs: 3, MaxArgs: 3, Write: true, Run: execFutureAt})
	Register(Spec{Kind: KindTTE, Name: "TTE", MinArgs: 1, MaxArgs: 1, Run: execTTE})
	Register(Spec{Kind: KindCancel, Name: "CANCEL", MinArgs: 1, MaxArgs: 1, Write: true, Run: execCancel})
	Register(Spec{Kind: KindFutCount, Name: "FUTCOUNT", Run: execFutCount})
}

// addSchedule parses a schedule argument and adds an entry for key
func addSchedule(tx *Tx, s *schedule.Scheduler, key, arg string, value []byte, epoch bool) Status {
	n, st := parseInt(arg)
	if st != StatusOK {
		return st
	}
	trigger, err := s.Add(n, key, tx.Q.Select, tx.Q.Database, value, epoch)
	if err != nil {
		return StatusInvalidRange
	}
	return tx.ok(strconv.FormatInt(trigger, 10))
}

// remaining returns the seconds until trigger, never less than zero
func remaining(tx *Tx, trigger int64) string {
	left := trigger - tx.Env.now().Unix()
	if left < 0 {
		left = 0
	}
	return strconv.FormatInt(left, 10)
}

// --------------------------------------------------------------------------
// Expiration
// --------------------------------------------------------------------------

func expire(tx *Tx, epoch bool) Status {
	key := tx.Arg(0)
	found, st := tx.exists(key)
	if st != StatusOK {
		return st
	}
	if !found {
		return StatusNotFound
	}
	return addSchedule(tx, tx.Env.Expires, key, tx.Arg(1), nil, epoch)
}

func execExpire(tx *Tx) Status { return expire(tx, false) }

func execExpireAt(tx *Tx) Status { return expire(tx, true) }

// execSetEx validates the schedule before it writes the value
func execSetEx(tx *Tx) Status {
	n, st := parseInt(tx.Arg(1))
	if st != StatusOK {
		return st
	}
	if n < 0 {
		return StatusInvalidRange
	}
	key := tx.Arg(0)
	if st := tx.storeString(key, tx.Arg(2)); st != StatusOK {
		return st
	}
	return addSchedule(tx, tx.Env.Expires, key, tx.Arg(1), nil, false)
}

// execTTL returns the seconds until the key expires, -1 if it does not expire
func execTTL(tx *Tx) Status {
	key := tx.Arg(0)
	found, st := tx.exists(key)
	if st != StatusOK {
		return st
	}
	if !found {
		return StatusNotFound
	}
	trigger, ok := tx.Env.Expires.TriggerTime(key, tx.Q.Select)
	if !ok {
		return tx.ok("-1")
	}
	return tx.ok(remaining(tx, trigger))
}

func execPersist(tx *Tx) Status {
	if !tx.Env.Expires.Delete(tx.Arg(0), tx.Q.Select) {
		return StatusNotFound
	}
	return tx.ok("OK")
}

func execExpCount(tx *Tx) Status {
	return tx.ok(strconv.Itoa(tx.Env.Expires.Count(tx.Q.Select)))
}

// --------------------------------------------------------------------------
// Future writes
// --------------------------------------------------------------------------

func execFuture(tx *Tx) Status {
	return addSchedule(tx, tx.Env.Futures, tx.Arg(0), tx.Arg(1), []byte(tx.Arg(2)), false)
}

func execFutureAt(tx *Tx) Status {
	return addSchedule(tx, tx.Env.Futures, tx.Arg(0), tx.Arg(1), []byte(tx.Arg(2)), true)
}

// execTTE returns the seconds until the future write of the key executes
func execTTE(tx *Tx) Status {
	trigger, ok := tx.Env.Futures.TriggerTime(tx.Arg(0), tx.Q.Select)
	if !ok {
		return StatusNotFound
	}
	return tx.ok(remaining(tx, trigger))
}

func execCancel(tx *Tx) Status {
	if !tx.Env.Futures.Delete(tx.Arg(0), tx.Q.Select) {
		return StatusNotFound
	}
	return tx.ok("OK")
}

func execFutCount(tx *Tx) Status {
	return tx.ok(strconv.Itoa(tx.Env.Futures.Count(tx.Q.Select)))
}
