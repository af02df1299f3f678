package codec

import (
	"iter"
	"slices"
)

// MultiMap maps a key to one or more values. Keys iterate in ascending order,
// the values of one key in insertion order.
type MultiMap struct {
	m    map[string][]string
	size int
}

// NewMultiMap creates an empty multimap.
func NewMultiMap() *MultiMap {
	return &MultiMap{m: make(map[string][]string)}
}

// DecodeMultiMap decodes a multimap blob. An empty blob yields an empty multimap.
func DecodeMultiMap(blob []byte) (*MultiMap, error) {
	mm := NewMultiMap()
	for tok := range tokens(blob) {
		k, v, err := splitPair(tok)
		if err != nil {
			return nil, err
		}
		mm.Add(k, v)
	}
	return mm, nil
}

// Encode returns the blob representation of the multimap.
func (mm *MultiMap) Encode() []byte {
	var out []byte
	for _, k := range mm.Keys() {
		for _, v := range mm.m[k] {
			out = appendPair(out, k, v)
		}
	}
	return out
}

// Len returns the total number of key/value pairs.
func (mm *MultiMap) Len() int { return mm.size }

// Add appends value to the values of key. Duplicate pairs are allowed.
func (mm *MultiMap) Add(key, value string) Status {
	mm.m[key] = append(mm.m[key], value)
	mm.size++
	return StatusOK
}

// Get returns a copy of all values stored under key.
func (mm *MultiMap) Get(key string) ([]string, Status) {
	vs, ok := mm.m[key]
	if !ok {
		return nil, StatusNotFound
	}
	return slices.Clone(vs), StatusOK
}

// Delete removes key together with all its values.
func (mm *MultiMap) Delete(key string) Status {
	vs, ok := mm.m[key]
	if !ok {
		return StatusNotFound
	}
	mm.size -= len(vs)
	delete(mm.m, key)
	return StatusOK
}

// Remove removes the first occurrence of the pair (key, value).
func (mm *MultiMap) Remove(key, value string) Status {
	vs, ok := mm.m[key]
	if !ok {
		return StatusNotFound
	}
	i := slices.Index(vs, value)
	if i < 0 {
		return StatusNotFound
	}
	vs = slices.Delete(vs, i, i+1)
	mm.size--
	if len(vs) == 0 {
		delete(mm.m, key)
	} else {
		mm.m[key] = vs
	}
	return StatusOK
}

// Has reports whether key has at least one value.
func (mm *MultiMap) Has(key string) bool {
	_, ok := mm.m[key]
	return ok
}

// Keys returns the distinct keys in ascending order.
func (mm *MultiMap) Keys() []string {
	keys := make([]string, 0, len(mm.m))
	for k := range mm.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// All iterates over every pair, keys ascending and values in insertion order.
func (mm *MultiMap) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range mm.Keys() {
			for _, v := range mm.m[k] {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}
