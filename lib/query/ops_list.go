package query

import (
	"strconv"

	"github.com/ValentinKolb/aKV/lib/codec"
)

func init() {
	Register(Spec{Kind: KindLPush, Name: "LPUSH", MinArgs: 2, MaxArgs: Variadic, Write: true, Run: execLPush})
	Register(Spec{Kind: KindRPush, Name: "RPUSH", MinArgs: 2, MaxArgs: Variadic, Write: true, Run: execRPush})
	Register(Spec{Kind: KindLPop, Name: "LPOP", MinArgs: 1, MaxArgs: 1, Write: true, Run: execLPop})
	Register(Spec{Kind: KindRPop, Name: "RPOP", MinArgs: 1, MaxArgs: 1, Write: true, Run: execRPop})
	Register(Spec{Kind: KindLLen, Name: "LLEN", MinArgs: 1, MaxArgs: 1, Run: execLLen})
	Register(Spec{Kind: KindLIndex, Name: "LINDEX", MinArgs: 2, MaxArgs: 2, Run: execLIndex})
	Register(Spec{Kind: KindLRem, Name: "LREM", MinArgs: 2, MaxArgs: 2, Write: true, Run: execLRem})
	Register(Spec{Kind: KindLExists, Name: "LEXISTS", MinArgs: 2, MaxArgs: 2, Run: execLExists})
	Register(Spec{Kind: KindLGet, Name: "LGET", MinArgs: 1, MaxArgs: 1, Scan: scanList})
}

func push(tx *Tx, front bool) Status {
	key := tx.Arg(0)
	l, _, st := tx.loadList(key)
	if st != StatusOK {
		return st
	}
	for _, v := range tx.Q.Args[1:] {
		if front {
			l.PushFront(v)
		} else {
			l.PushBack(v)
		}
	}
	if st := tx.storeComposite(key, TypeList, l); st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(l.Len()))
}

func execLPush(tx *Tx) Status { return push(tx, true) }

func execRPush(tx *Tx) Status { return push(tx, false) }

func pop(tx *Tx, front bool) Status {
	key := tx.Arg(0)
	l, _, st := tx.loadList(key)
	if st != StatusOK {
		return st
	}

	var (
		v  string
		cs codec.Status
	)
	if front {
		v, cs = l.PopFront()
	} else {
		v, cs = l.PopBack()
	}
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}

	if st := tx.storeComposite(key, TypeList, l); st != StatusOK {
		return st
	}
	return tx.ok(v)
}

func execLPop(tx *Tx) Status { return pop(tx, true) }

func execRPop(tx *Tx) Status { return pop(tx, false) }

func execLLen(tx *Tx) Status {
	l, _, st := tx.loadList(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(l.Len()))
}

func execLIndex(tx *Tx) Status {
	i, st := parseInt(tx.Arg(1))
	if st != StatusOK {
		return st
	}
	l, found, st := tx.loadList(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	if !found {
		return StatusNotFound
	}
	v, cs := l.Index(int(i))
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}
	return tx.ok(v)
}

// execLRem removes all occurrences of a value and returns their number
func execLRem(tx *Tx) Status {
	key := tx.Arg(0)
	l, _, st := tx.loadList(key)
	if st != StatusOK {
		return st
	}
	n, cs := l.Remove(tx.Arg(1))
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}
	if st := tx.storeComposite(key, TypeList, l); st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(n))
}

func execLExists(tx *Tx) Status {
	l, _, st := tx.loadList(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(boolScalar(l.Exists(tx.Arg(1))))
}

// scanList streams all values of a list in order
func scanList(env *Env, q *Query, emit Emit) Status {
	var l *codec.List
	st := view(env, q, func(tx *Tx) (st Status) {
		var found bool
		if l, found, st = tx.loadList(q.Args[0]); st == StatusOK && !found {
			return StatusNotFound
		}
		return st
	})
	if st != StatusOK {
		return st
	}

	for v := range l.All() {
		if !emit("", v) {
			break
		}
	}
	return StatusOK
}
