package query

import (
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
)

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// Flags tag how the result of a query is delivered
type Flags uint8

const (
	FlagQuiet     Flags = 1 << iota // Do not deliver the result at all
	FlagGlobal                      // Deliver inline instead of via the completed queue
	FlagInterrupt                   // A failure is not reported to the failure hook
)

// Has reports whether all flags in o are set
func (f Flags) Has(o Flags) bool { return f&o == o }

// --------------------------------------------------------------------------
// Select range
// --------------------------------------------------------------------------

const (
	MinSelect uint16 = 1
	MaxSelect uint16 = 100
)

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

// Owner is the connection a query belongs to
type Owner interface {
	// ID returns the unique id of the connection
	ID() uint64
	// Alive reports whether the connection is still connected
	Alive() bool
}

// Pair is one field/value element of a map or multimap result
type Pair struct {
	Field string
	Value string
}

// Query is one unit of work. It is created by the protocol layer, executed
// once by a worker and delivered back to its owner. A query is held by exactly
// one queue at a time.
type Query struct {
	Owner    Owner
	Database *db.Database
	Select   uint16
	Kind     Kind
	Args     []string
	Flags    Flags

	// result
	Status  Status
	Scalar  string
	Items   []string
	Pairs   []Pair
	Partial bool // more chunks of this query follow
	Sub     int  // sequence number of the chunk

	Posted time.Time
	Expiry int64 // trigger time of the expiration that produced this query, 0 for client queries
}

// New creates a query of the given kind
func New(owner Owner, database *db.Database, sel uint16, kind Kind, args ...string) *Query {
	return &Query{
		Owner:    owner,
		Database: database,
		Select:   sel,
		Kind:     kind,
		Args:     args,
	}
}

// Name returns the command name of the query
func (q *Query) Name() string { return q.Kind.String() }

// Write reports whether the query modifies the database
func (q *Query) Write() bool {
	spec, ok := Lookup(q.Kind)
	return ok && spec.Write
}

// Len returns the number of result elements carried by this chunk
func (q *Query) Len() int {
	return len(q.Items) + len(q.Pairs)
}

// Vector reports whether the result is a sequence of elements rather than a
// scalar: every scan and every query that filled Items or Pairs
func (q *Query) Vector() bool {
	if spec, ok := Lookup(q.Kind); ok && spec.Scan != nil {
		return true
	}
	return q.Items != nil || q.Pairs != nil
}

// Fail sets the status and drops any result
func (q *Query) Fail(status Status) {
	q.Status = status
	q.Scalar = ""
	q.Items = nil
	q.Pairs = nil
	q.Partial = false
}

// chunk detaches the elements collected so far into a partial copy of q
func (q *Query) chunk(sub int) *Query {
	c := *q
	c.Partial = true
	c.Sub = sub
	q.Items = nil
	q.Pairs = nil
	return &c
}
