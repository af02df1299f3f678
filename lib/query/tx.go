package query

import (
	"github.com/ValentinKolb/aKV/lib/codec"
	"github.com/ValentinKolb/aKV/lib/db"
)

// Tx is the view of a query while it runs inside the execution mutex of its
// database. It resolves user keys into the query's select and implements the
// whole-value read-modify-write of composite values.
type Tx struct {
	Env *Env
	Q   *Query
	kv  db.KVDB
}

// Arg returns the i-th argument of the query
func (tx *Tx) Arg(i int) string { return tx.Q.Args[i] }

// ok sets a scalar result
func (tx *Tx) ok(scalar string) Status {
	tx.Q.Scalar = scalar
	return StatusOK
}

// --------------------------------------------------------------------------
// Raw values
// --------------------------------------------------------------------------

// load reads key and checks that it holds a value of type want.
// A missing key is reported with found == false and StatusOK.
func (tx *Tx) load(key string, want byte) (payload []byte, found bool, st Status) {
	tag, payload, found, st := tx.loadAny(key)
	if st != StatusOK || !found {
		return nil, found, st
	}
	if tag != want {
		return nil, true, StatusInvalidType
	}
	return payload, true, StatusOK
}

// loadAny reads key regardless of its type
func (tx *Tx) loadAny(key string) (tag byte, payload []byte, found bool, st Status) {
	raw, found, err := tx.kv.Get(StorageKey(tx.Q.Select, key))
	if err != nil {
		return 0, nil, false, fromError(err)
	}
	if !found {
		return 0, nil, false, StatusOK
	}
	tag, payload, valid := decodeValue(raw)
	if !valid {
		return 0, nil, true, StatusInvalidFormat
	}
	return tag, payload, true, StatusOK
}

func (tx *Tx) exists(key string) (bool, Status) {
	found, err := tx.kv.Has(StorageKey(tx.Q.Select, key))
	if err != nil {
		return false, fromError(err)
	}
	return found, StatusOK
}

func (tx *Tx) store(key string, tag byte, payload []byte) Status {
	if err := tx.kv.Set(StorageKey(tx.Q.Select, key), encodeValue(tag, payload)); err != nil {
		return fromError(err)
	}
	return StatusOK
}

func (tx *Tx) remove(key string) Status {
	if err := tx.kv.Delete(StorageKey(tx.Q.Select, key)); err != nil {
		return fromError(err)
	}
	return StatusOK
}

// --------------------------------------------------------------------------
// Strings
// --------------------------------------------------------------------------

func (tx *Tx) loadString(key string) (string, bool, Status) {
	payload, found, st := tx.load(key, TypeString)
	return string(payload), found, st
}

func (tx *Tx) storeString(key, value string) Status {
	return tx.store(key, TypeString, []byte(value))
}

// --------------------------------------------------------------------------
// Composite values
// --------------------------------------------------------------------------

// composite is implemented by the codec containers
type composite interface {
	Len() int
	Encode() []byte
}

// loadComposite reads and decodes a composite value. A missing key yields an
// empty container.
func loadComposite[T composite](tx *Tx, key string, tag byte, empty func() T, decode func([]byte) (T, error)) (T, bool, Status) {
	payload, found, st := tx.load(key, tag)
	if st != StatusOK || !found {
		return empty(), found, st
	}
	c, err := decode(payload)
	if err != nil {
		return empty(), true, StatusInvalidFormat
	}
	return c, true, StatusOK
}

// storeComposite re-encodes the whole container and writes it back.
// An empty container removes the key.
func (tx *Tx) storeComposite(key string, tag byte, c composite) Status {
	if c.Len() == 0 {
		return tx.remove(key)
	}
	return tx.store(key, tag, c.Encode())
}

func (tx *Tx) loadList(key string) (*codec.List, bool, Status) {
	return loadComposite(tx, key, TypeList, func() *codec.List { return codec.NewList() }, codec.DecodeList)
}

func (tx *Tx) loadMap(key string) (*codec.Map, bool, Status) {
	return loadComposite(tx, key, TypeMap, codec.NewMap, codec.DecodeMap)
}

func (tx *Tx) loadMultiMap(key string) (*codec.MultiMap, bool, Status) {
	return loadComposite(tx, key, TypeMultiMap, codec.NewMultiMap, codec.DecodeMultiMap)
}
