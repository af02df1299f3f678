package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/cockroachdb/errors"
)

// ReplyType is the first token of a reply line
type ReplyType string

const (
	ReplyOK   ReplyType = "OK"   // OK <CMD> :<value>
	ReplyItem ReplyType = "ITEM" // ITEM <CMD> <sub> [<field>] :<value>
	ReplyEnd  ReplyType = "END"  // END <CMD> <count>
	ReplyErr  ReplyType = "ERR"  // ERR <CMD> <STATUS> :<text>
)

// ErrMalformedReply is returned by ParseReply for lines that are no reply
var ErrMalformedReply = errors.New("malformed reply")

// Reply is one line sent from the server to the client
type Reply struct {
	Type     ReplyType
	Command  string
	Sub      int    // ITEM: chunk the element was delivered in
	Field    string // ITEM: field of a pair element
	HasField bool
	Value    string // OK and ITEM: the value, ERR: the error text
	Status   string // ERR: the status name
	Count    int    // END: number of elements
}

// String renders the reply line without line break
func (r Reply) String() string {
	var sb strings.Builder
	sb.WriteString(string(r.Type))
	sb.WriteByte(' ')
	sb.WriteString(r.Command)

	switch r.Type {
	case ReplyItem:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(r.Sub))
		if r.HasField {
			sb.WriteByte(' ')
			sb.WriteString(r.Field)
		}
		sb.WriteString(" :")
		sb.WriteString(r.Value)
	case ReplyEnd:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(r.Count))
	case ReplyErr:
		sb.WriteByte(' ')
		sb.WriteString(r.Status)
		sb.WriteString(" :")
		sb.WriteString(r.Value)
	default:
		sb.WriteString(" :")
		sb.WriteString(r.Value)
	}
	return sb.String()
}

// Final reports whether no further line belongs to the same command
func (r Reply) Final() bool {
	return r.Type != ReplyItem
}

// ParseReply parses a reply line
func ParseReply(line string) (Reply, error) {
	tokens := tokenize(line)
	if len(tokens) < 2 {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", line)
	}
	r := Reply{Type: ReplyType(tokens[0]), Command: tokens[1]}
	args := tokens[2:]

	var err error
	switch r.Type {
	case ReplyOK:
		if len(args) != 1 {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", line)
		}
		r.Value = args[0]
	case ReplyItem:
		if len(args) < 2 || len(args) > 3 {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", line)
		}
		if r.Sub, err = strconv.Atoi(args[0]); err != nil {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "invalid chunk in %q", line)
		}
		if len(args) == 3 {
			r.Field, r.HasField = args[1], true
		}
		r.Value = args[len(args)-1]
	case ReplyEnd:
		if len(args) != 1 {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", line)
		}
		if r.Count, err = strconv.Atoi(args[0]); err != nil {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "invalid count in %q", line)
		}
	case ReplyErr:
		if len(args) < 1 || len(args) > 2 {
			return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", line)
		}
		r.Status = args[0]
		if len(args) == 2 {
			r.Value = args[1]
		}
	default:
		return Reply{}, errors.Wrapf(ErrMalformedReply, "unknown reply type in %q", line)
	}
	return r, nil
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// Writer renders replies onto a buffered stream. It is not safe for
// concurrent use; the session owns one writer per connection.
type Writer struct {
	bw    *bufio.Writer
	count int // elements of the running scan
}

// NewWriter creates a writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteReply writes one reply line
func (w *Writer) WriteReply(r Reply) error {
	if _, err := w.bw.WriteString(r.String()); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// WriteResult renders a completed query: an ERR line for failures, an OK
// line for scalar results and one ITEM line per element for vector results.
// The final chunk of a vector result is followed by an END line carrying the
// number of elements over all chunks.
func (w *Writer) WriteResult(q *query.Query) error {
	name := q.Name()

	if q.Status.Failed() {
		w.count = 0
		return w.WriteReply(Reply{Type: ReplyErr, Command: name, Status: q.Status.String(), Value: q.Status.Text()})
	}

	if !q.Vector() {
		return w.WriteReply(Reply{Type: ReplyOK, Command: name, Value: q.Scalar})
	}

	for _, item := range q.Items {
		if err := w.WriteReply(Reply{Type: ReplyItem, Command: name, Sub: q.Sub, Value: item}); err != nil {
			return err
		}
	}
	for _, p := range q.Pairs {
		if err := w.WriteReply(Reply{Type: ReplyItem, Command: name, Sub: q.Sub, Field: p.Field, HasField: true, Value: p.Value}); err != nil {
			return err
		}
	}
	w.count += q.Len()

	if q.Partial {
		return nil
	}
	count := w.count
	w.count = 0
	return w.WriteReply(Reply{Type: ReplyEnd, Command: name, Count: count})
}

// Flush writes buffered lines to the underlying stream
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Buffered returns the number of bytes not yet flushed
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}
