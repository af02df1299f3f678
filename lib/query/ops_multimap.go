package query

import (
	"strconv"

	"github.com/ValentinKolb/aKV/lib/codec"
)

func init() {
	Register(Spec{Kind: KindMPush, Name: "MPUSH", MinArgs: 3, MaxArgs: 3, Write: true, Run: execMPush})
	Register(Spec{Kind: KindMGet, Name: "MGET", MinArgs: 2, MaxArgs: 2, Run: execMGet})
	Register(Spec{Kind: KindMDel, Name: "MDEL", MinArgs: 2, MaxArgs: 2, Write: true, Run: execMDel})
	Register(Spec{Kind: KindMRem, Name: "MREM", MinArgs: 3, MaxArgs: 3, Write: true, Run: execMRem})
	Register(Spec{Kind: KindMLen, Name: "MLEN", MinArgs: 1, MaxArgs: 1, Run: execMLen})
	Register(Spec{Kind: KindMKeys, Name: "MKEYS", MinArgs: 1, MaxArgs: 1, Scan: scanMultiMapKeys})
	Register(Spec{Kind: KindMGetAll, Name: "MGETALL", MinArgs: 1, MaxArgs: 1, Pairs: true, Scan: scanMultiMap})
}

// mutateMultiMap loads the multimap of the first argument, applies fn and writes it back
func mutateMultiMap(tx *Tx, fn func(mm *codec.MultiMap) codec.Status) Status {
	key := tx.Arg(0)
	mm, _, st := tx.loadMultiMap(key)
	if st != StatusOK {
		return st
	}
	if cs := fn(mm); cs != codec.StatusOK {
		return fromCodec(cs)
	}
	if st := tx.storeComposite(key, TypeMultiMap, mm); st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(mm.Len()))
}

func execMPush(tx *Tx) Status {
	return mutateMultiMap(tx, func(mm *codec.MultiMap) codec.Status {
		return mm.Add(tx.Arg(1), tx.Arg(2))
	})
}

// execMDel removes a field with all of its values
func execMDel(tx *Tx) Status {
	return mutateMultiMap(tx, func(mm *codec.MultiMap) codec.Status {
		return mm.Delete(tx.Arg(1))
	})
}

// execMRem removes one value of a field
func execMRem(tx *Tx) Status {
	return mutateMultiMap(tx, func(mm *codec.MultiMap) codec.Status {
		return mm.Remove(tx.Arg(1), tx.Arg(2))
	})
}

// execMGet returns all values of a field. The values of a single field are
// not chunked.
func execMGet(tx *Tx) Status {
	mm, _, st := tx.loadMultiMap(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	values, cs := mm.Get(tx.Arg(1))
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}
	tx.Q.Items = values
	return StatusOK
}

func execMLen(tx *Tx) Status {
	mm, _, st := tx.loadMultiMap(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(mm.Len()))
}

func viewMultiMap(env *Env, q *Query) (mm *codec.MultiMap, st Status) {
	st = view(env, q, func(tx *Tx) (st Status) {
		var found bool
		if mm, found, st = tx.loadMultiMap(q.Args[0]); st == StatusOK && !found {
			return StatusNotFound
		}
		return st
	})
	return mm, st
}

func scanMultiMapKeys(env *Env, q *Query, emit Emit) Status {
	mm, st := viewMultiMap(env, q)
	if st != StatusOK {
		return st
	}
	for _, k := range mm.Keys() {
		if !emit("", k) {
			break
		}
	}
	return StatusOK
}

func scanMultiMap(env *Env, q *Query, emit Emit) Status {
	mm, st := viewMultiMap(env, q)
	if st != StatusOK {
		return st
	}
	for k, v := range mm.All() {
		if !emit(k, v) {
			break
		}
	}
	return StatusOK
}
