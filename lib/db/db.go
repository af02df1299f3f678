package db

import "github.com/cockroachdb/errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplLSM Implementation = "lsm"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet         Feature = 1 << iota // Support for Set operations
	FeatureGet                             // Support for Get operations
	FeatureHas                             // Support for Has operations
	FeatureDelete                          // Support for Delete operations
	FeatureDeleteRange                     // Support for DeleteRange operations
	FeatureRange                           // Support for ordered Range iteration
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureHas:
		return "Has"
	case FeatureDelete:
		return "Delete"
	case FeatureDeleteRange:
		return "DeleteRange"
	case FeatureRange:
		return "Range"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// ErrClosing is returned by every operation on a database that is being closed.
var ErrClosing = errors.New("db: database is closing")

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are compared bytewise, Range visits them in ascending order.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value is overwritten.
	Set(key, value []byte) (err error)

	// Delete removes the entry with the specified key.
	// Deleting a key that does not exist is not an error.
	Delete(key []byte) (err error)

	// DeleteRange removes all entries with start <= key < end.
	DeleteRange(start, end []byte) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is owned by the caller.
	Get(key []byte) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key []byte) (loaded bool, err error)

	// Range calls fn for every entry with lower <= key < upper in ascending key order
	// until fn returns false. A nil upper bound means no upper limit.
	// The slices passed to fn are only valid during the call.
	Range(lower, upper []byte, fn func(key, value []byte) bool) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Key helpers
// --------------------------------------------------------------------------

// PrefixEnd returns the smallest key that is greater than every key with the given prefix.
// It returns nil if no such key exists (the prefix consists only of 0xff bytes).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
