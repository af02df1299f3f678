package query

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies an operation
type Kind uint8

const (
	KindUnknown Kind = iota

	// keys and strings
	KindPing
	KindSet
	KindSetNX
	KindGet
	KindDel
	KindExists
	KindStrlen
	KindAppend
	KindGetSet
	KindIncr
	KindDecr
	KindIncrBy
	KindDecrBy
	KindIncrByFloat
	KindType
	KindMove
	KindDBSize
	KindFlushDB
	KindKeys

	// expiration
	KindExpire
	KindExpireAt
	KindSetEx
	KindTTL
	KindPersist
	KindExpCount

	// future writes
	KindFuture
	KindFutureAt
	KindTTE
	KindCancel
	KindFutCount

	// lists
	KindLPush
	KindRPush
	KindLPop
	KindRPop
	KindLLen
	KindLIndex
	KindLRem
	KindLExists
	KindLGet

	// maps
	KindHSet
	KindHSetNX
	KindHGet
	KindHDel
	KindHExists
	KindHLen
	KindHKeys
	KindHGetAll

	// multimaps
	KindMPush
	KindMGet
	KindMDel
	KindMRem
	KindMLen
	KindMKeys
	KindMGetAll
)

func (k Kind) String() string {
	if spec, ok := Lookup(k); ok {
		return spec.Name
	}
	return fmt.Sprintf("KIND_%d", k)
}

// --------------------------------------------------------------------------
// Registration table
// --------------------------------------------------------------------------

// Variadic marks a Spec without an upper argument limit
const Variadic = -1

// RunFunc executes a query inside the execution mutex of its database
type RunFunc func(tx *Tx) Status

// Emit passes one element of a scan to the chunking driver. A scan yields
// ("", value) for vector results and (field, value) for pair results. It must
// stop as soon as Emit returns false.
type Emit func(field, value string) bool

// ScanFunc produces the elements of a chunked scan
type ScanFunc func(env *Env, q *Query, emit Emit) Status

// Spec describes an operation. Exactly one of Run and Scan is set.
type Spec struct {
	Kind    Kind
	Name    string
	MinArgs int
	MaxArgs int  // Variadic for no limit
	Write   bool // modifies the database
	Pairs   bool // the scan yields field/value pairs
	Run     RunFunc
	Scan    ScanFunc
}

var (
	specsByKind = map[Kind]*Spec{}
	specsByName = map[string]*Spec{}
)

// Register adds an operation to the registration table.
// It panics on duplicate kinds or names and on incomplete specs, so it
// should only be called from init functions.
func Register(spec Spec) {
	spec.Name = strings.ToUpper(spec.Name)
	if (spec.Run == nil) == (spec.Scan == nil) {
		panic(fmt.Sprintf("query: %s must set exactly one of Run and Scan", spec.Name))
	}
	if _, dup := specsByKind[spec.Kind]; dup {
		panic(fmt.Sprintf("query: kind %d registered twice", spec.Kind))
	}
	if _, dup := specsByName[spec.Name]; dup {
		panic(fmt.Sprintf("query: %s registered twice", spec.Name))
	}
	s := &spec
	specsByKind[spec.Kind] = s
	specsByName[spec.Name] = s
}

// Lookup returns the spec of a kind
func Lookup(kind Kind) (*Spec, bool) {
	spec, ok := specsByKind[kind]
	return spec, ok
}

// LookupName returns the spec of a command name (case-insensitive)
func LookupName(name string) (*Spec, bool) {
	spec, ok := specsByName[strings.ToUpper(name)]
	return spec, ok
}

// Specs returns all registered specs ordered by name
func Specs() []*Spec {
	out := make([]*Spec, 0, len(specsByName))
	for _, spec := range specsByName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// arity checks the number of arguments of q against the spec
func (s *Spec) arity(n int) bool {
	if n < s.MinArgs {
		return false
	}
	return s.MaxArgs == Variadic || n <= s.MaxArgs
}
