package query

import (
	"strconv"

	"github.com/ValentinKolb/aKV/lib/codec"
)

func init() {
	Register(Spec{Kind: KindHSet, Name: "HSET", MinArgs: 3, MaxArgs: 3, Write: true, Run: execHSet})
	Register(Spec{Kind: KindHSetNX, Name: "HSETNX", MinArgs: 3, MaxArgs: 3, Write: true, Run: execHSetNX})
	Register(Spec{Kind: KindHGet, Name: "HGET", MinArgs: 2, MaxArgs: 2, Run: execHGet})
	Register(Spec{Kind: KindHDel, Name: "HDEL", MinArgs: 2, MaxArgs: 2, Write: true, Run: execHDel})
	Register(Spec{Kind: KindHExists, Name: "HEXISTS", MinArgs: 2, MaxArgs: 2, Run: execHExists})
	Register(Spec{Kind: KindHLen, Name: "HLEN", MinArgs: 1, MaxArgs: 1, Run: execHLen})
	Register(Spec{Kind: KindHKeys, Name: "HKEYS", MinArgs: 1, MaxArgs: 1, Scan: scanMapKeys})
	Register(Spec{Kind: KindHGetAll, Name: "HGETALL", MinArgs: 1, MaxArgs: 1, Pairs: true, Scan: scanMap})
}

func hset(tx *Tx, onlyNew bool) Status {
	key := tx.Arg(0)
	mp, _, st := tx.loadMap(key)
	if st != StatusOK {
		return st
	}

	var cs codec.Status
	if onlyNew {
		cs = mp.Add(tx.Arg(1), tx.Arg(2))
	} else {
		cs = mp.Set(tx.Arg(1), tx.Arg(2))
	}
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}

	if st := tx.storeComposite(key, TypeMap, mp); st != StatusOK {
		return st
	}
	return tx.ok("OK")
}

func execHSet(tx *Tx) Status { return hset(tx, false) }

func execHSetNX(tx *Tx) Status { return hset(tx, true) }

func execHGet(tx *Tx) Status {
	mp, _, st := tx.loadMap(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	v, cs := mp.Get(tx.Arg(1))
	if cs != codec.StatusOK {
		return fromCodec(cs)
	}
	return tx.ok(v)
}

func execHDel(tx *Tx) Status {
	key := tx.Arg(0)
	mp, _, st := tx.loadMap(key)
	if st != StatusOK {
		return st
	}
	if cs := mp.Delete(tx.Arg(1)); cs != codec.StatusOK {
		return fromCodec(cs)
	}
	if st := tx.storeComposite(key, TypeMap, mp); st != StatusOK {
		return st
	}
	return tx.ok("OK")
}

func execHExists(tx *Tx) Status {
	mp, _, st := tx.loadMap(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(boolScalar(mp.Has(tx.Arg(1))))
}

func execHLen(tx *Tx) Status {
	mp, _, st := tx.loadMap(tx.Arg(0))
	if st != StatusOK {
		return st
	}
	return tx.ok(strconv.Itoa(mp.Len()))
}

// viewMap loads an existing map for a scan
func viewMap(env *Env, q *Query) (mp *codec.Map, st Status) {
	st = view(env, q, func(tx *Tx) (st Status) {
		var found bool
		if mp, found, st = tx.loadMap(q.Args[0]); st == StatusOK && !found {
			return StatusNotFound
		}
		return st
	})
	return mp, st
}

func scanMapKeys(env *Env, q *Query, emit Emit) Status {
	mp, st := viewMap(env, q)
	if st != StatusOK {
		return st
	}
	for _, k := range mp.Keys() {
		if !emit("", k) {
			break
		}
	}
	return StatusOK
}

func scanMap(env *Env, q *Query, emit Emit) Status {
	mp, st := viewMap(env, q)
	if st != StatusOK {
		return st
	}
	for k, v := range mp.All() {
		if !emit(k, v) {
			break
		}
	}
	return StatusOK
}
