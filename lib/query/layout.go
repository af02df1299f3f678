package query

import (
	"encoding/binary"

	"github.com/ValentinKolb/aKV/lib/db"
)

// --------------------------------------------------------------------------
// Storage layout
//
// key   = select (2 bytes, big endian) | user key
// value = type tag (1 byte) | payload
// --------------------------------------------------------------------------

// Type tags of stored values
const (
	TypeString   byte = 's'
	TypeList     byte = 'l'
	TypeMap      byte = 'h'
	TypeMultiMap byte = 'm'
)

const selectPrefixLen = 2

// TypeName returns the name reported by TYPE
func TypeName(tag byte) string {
	switch tag {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeMap:
		return "hash"
	case TypeMultiMap:
		return "multimap"
	default:
		return "none"
	}
}

// StorageKey returns the engine key of key in select sel
func StorageKey(sel uint16, key string) []byte {
	b := make([]byte, selectPrefixLen+len(key))
	binary.BigEndian.PutUint16(b, sel)
	copy(b[selectPrefixLen:], key)
	return b
}

// SplitStorageKey is the inverse of StorageKey
func SplitStorageKey(raw []byte) (sel uint16, key string, ok bool) {
	if len(raw) < selectPrefixLen {
		return 0, "", false
	}
	return binary.BigEndian.Uint16(raw), string(raw[selectPrefixLen:]), true
}

// SelectBounds returns the engine key range [lower, upper) of select sel
func SelectBounds(sel uint16) (lower, upper []byte) {
	lower = make([]byte, selectPrefixLen)
	binary.BigEndian.PutUint16(lower, sel)
	return lower, db.PrefixEnd(lower)
}

func encodeValue(tag byte, payload []byte) []byte {
	b := make([]byte, 1+len(payload))
	b[0] = tag
	copy(b[1:], payload)
	return b
}

func decodeValue(raw []byte) (tag byte, payload []byte, ok bool) {
	if len(raw) == 0 {
		return 0, nil, false
	}
	return raw[0], raw[1:], true
}
