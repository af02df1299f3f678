package query

import (
	"fmt"

	"github.com/ValentinKolb/aKV/lib/codec"
	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/cockroachdb/errors"
)

// Status is the access code of a query. Failures are carried as data and
// delivered to the connection exactly like a successful result.
type Status uint8

const (
	StatusOK            Status = iota // Query succeeded
	StatusNotFound                    // Key, field or element does not exist
	StatusInvalidRange                // Index, select or schedule out of range
	StatusInvalidFormat               // Malformed argument or stored value
	StatusInvalidType                 // Key holds a value of another type
	StatusMissingArgs                 // Not enough (or too many) arguments
	StatusExists                      // Entry already exists
	StatusProtected                   // Entry may not be modified this way
	StatusDatabaseBusy                // Database is closing
	StatusUnableToWrite               // Storage engine failed
	StatusNotNumeric                  // Value or argument is not a number
	StatusNoWorker                    // No worker available to execute the query
	StatusInterrupt                   // Internal, never delivered as a notification
)

var statusNames = [...]string{
	StatusOK:            "OK",
	StatusNotFound:      "NOT_FOUND",
	StatusInvalidRange:  "INVALID_RANGE",
	StatusInvalidFormat: "INVALID_FORMAT",
	StatusInvalidType:   "INVALID_TYPE",
	StatusMissingArgs:   "MISSING_ARGS",
	StatusExists:        "EXISTS",
	StatusProtected:     "PROTECTED",
	StatusDatabaseBusy:  "DATABASE_BUSY",
	StatusUnableToWrite: "UNABLE_TO_WRITE",
	StatusNotNumeric:    "NOT_NUMERIC",
	StatusNoWorker:      "NO_WORKER",
	StatusInterrupt:     "INTERRUPT",
}

var statusTexts = [...]string{
	StatusOK:            "ok",
	StatusNotFound:      "entry not found",
	StatusInvalidRange:  "value out of range",
	StatusInvalidFormat: "invalid format",
	StatusInvalidType:   "operation against a key holding the wrong kind of value",
	StatusMissingArgs:   "wrong number of arguments",
	StatusExists:        "entry already exists",
	StatusProtected:     "entry is protected",
	StatusDatabaseBusy:  "database is busy",
	StatusUnableToWrite: "unable to write",
	StatusNotNumeric:    "value is not numeric",
	StatusNoWorker:      "no worker available",
	StatusInterrupt:     "interrupted",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("STATUS_%d", s)
}

// Text returns a human readable description of the status
func (s Status) Text() string {
	if int(s) < len(statusTexts) {
		return statusTexts[s]
	}
	return "unknown status"
}

// Failed reports whether s is anything but StatusOK
func (s Status) Failed() bool { return s != StatusOK }

// fromCodec maps the status of a container mutation
func fromCodec(s codec.Status) Status {
	switch s {
	case codec.StatusOK:
		return StatusOK
	case codec.StatusNotFound:
		return StatusNotFound
	case codec.StatusExists:
		return StatusExists
	default:
		return StatusInvalidRange
	}
}

// fromError classifies an error returned by the storage layer
func fromError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, db.ErrClosing):
		return StatusDatabaseBusy
	case errors.Is(err, codec.ErrInvalidFormat):
		return StatusInvalidFormat
	default:
		return StatusUnableToWrite
	}
}
