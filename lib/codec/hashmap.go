package codec

import (
	"iter"
	"slices"
)

// Map is a set of unique keys, each with exactly one value. Iteration and
// encoding are in ascending key order.
type Map struct {
	m map[string]string
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{m: make(map[string]string)}
}

// DecodeMap decodes a map blob. An empty blob yields an empty map.
// A key repeated inside the blob keeps its last value.
func DecodeMap(blob []byte) (*Map, error) {
	mp := NewMap()
	for tok := range tokens(blob) {
		k, v, err := splitPair(tok)
		if err != nil {
			return nil, err
		}
		mp.m[k] = v
	}
	return mp, nil
}

// Encode returns the blob representation of the map.
func (mp *Map) Encode() []byte {
	var out []byte
	for _, k := range mp.Keys() {
		out = appendPair(out, k, mp.m[k])
	}
	return out
}

// Len returns the number of keys.
func (mp *Map) Len() int { return len(mp.m) }

// Set stores value under key, replacing an existing value.
func (mp *Map) Set(key, value string) Status {
	mp.m[key] = value
	return StatusOK
}

// Add stores value under key only if the key is not present yet.
func (mp *Map) Add(key, value string) Status {
	if _, ok := mp.m[key]; ok {
		return StatusExists
	}
	mp.m[key] = value
	return StatusOK
}

// Get returns the value stored under key.
func (mp *Map) Get(key string) (string, Status) {
	v, ok := mp.m[key]
	if !ok {
		return "", StatusNotFound
	}
	return v, StatusOK
}

// Delete removes key.
func (mp *Map) Delete(key string) Status {
	if _, ok := mp.m[key]; !ok {
		return StatusNotFound
	}
	delete(mp.m, key)
	return StatusOK
}

// Has reports whether key is present.
func (mp *Map) Has(key string) bool {
	_, ok := mp.m[key]
	return ok
}

// Keys returns all keys in ascending order.
func (mp *Map) Keys() []string {
	keys := make([]string, 0, len(mp.m))
	for k := range mp.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// All iterates over all key/value pairs in ascending key order.
func (mp *Map) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range mp.Keys() {
			if !yield(k, mp.m[k]) {
				return
			}
		}
	}
}
