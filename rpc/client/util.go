package client

import (
	"fmt"

	"github.com/ValentinKolb/aKV/rpc/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// StatusError is a failure reported by the server
type StatusError struct {
	Command string
	Status  string // e.g. NOT_FOUND
	Text    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Command, e.Text, e.Status)
}

// Result is the complete answer to one command
type Result struct {
	Command string
	Value   string           // scalar results
	Items   []protocol.Reply // elements of vector results
	Vector  bool
	Err     *StatusError
}

// Len returns the number of elements of a vector result
func (r *Result) Len() int { return len(r.Items) }

// Values returns the values of all elements
func (r *Result) Values() []string {
	values := make([]string, len(r.Items))
	for i, it := range r.Items {
		values[i] = it.Value
	}
	return values
}

// Map returns the field/value elements as map
func (r *Result) Map() map[string]string {
	m := make(map[string]string, len(r.Items))
	for _, it := range r.Items {
		m[it.Field] = it.Value
	}
	return m
}

// add folds a reply into the result and reports whether it was the final one
func (r *Result) add(reply protocol.Reply) bool {
	switch reply.Type {
	case protocol.ReplyOK:
		r.Value = reply.Value
	case protocol.ReplyItem:
		r.Vector = true
		r.Items = append(r.Items, reply)
	case protocol.ReplyEnd:
		r.Vector = true
		if reply.Count != len(r.Items) {
			Logger.Warningf("%s: server announced %d elements, received %d", r.Command, reply.Count, len(r.Items))
		}
	case protocol.ReplyErr:
		r.Err = &StatusError{Command: reply.Command, Status: reply.Status, Text: reply.Value}
	}
	return reply.Final()
}
