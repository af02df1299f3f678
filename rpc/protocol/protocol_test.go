package protocol

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/cockroachdb/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		name string
		args []string
	}{
		{"PING", "PING", nil},
		{"set k v\r\n", "SET", []string{"k", "v"}},
		{"SET  k   v", "SET", []string{"k", "v"}},
		{"SET greeting :hello world", "SET", []string{"greeting", "hello world"}},
		{"SET k :", "SET", []string{"k", ""}},
		{"SET k ::colon", "SET", []string{"k", ":colon"}},
		{"SET k :a :b", "SET", []string{"k", "a :b"}},
		{":weird name", ":WEIRD", []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Name != tt.name || !reflect.DeepEqual(cmd.Args, tt.args) {
				t.Errorf("got %s %q, want %s %q", cmd.Name, cmd.Args, tt.name, tt.args)
			}
		})
	}

	for _, line := range []string{"", "   ", "\r\n"} {
		if _, err := Parse(line); !errors.Is(err, ErrEmptyLine) {
			t.Errorf("Parse(%q): expected ErrEmptyLine, got %v", line, err)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"PING", nil, "PING"},
		{"SET", []string{"k", "v"}, "SET k v"},
		{"SET", []string{"k", "hello world"}, "SET k :hello world"},
		{"SET", []string{"k", ""}, "SET k :"},
		{"SET", []string{"k", ":x"}, "SET k ::x"},
	}
	for _, tt := range tests {
		got, err := Format(tt.name, tt.args...)
		if err != nil || got != tt.want {
			t.Errorf("Format(%s, %q) = %q, %v; want %q", tt.name, tt.args, got, err, tt.want)
		}

		// the line must parse back into the same arguments
		cmd, err := Parse(got)
		if err != nil {
			t.Fatalf("Parse(%q): %v", got, err)
		}
		if len(cmd.Args) != len(tt.args) || (len(tt.args) > 0 && !reflect.DeepEqual(cmd.Args, tt.args)) {
			t.Errorf("Parse(Format(...)) = %q, want %q", cmd.Args, tt.args)
		}
	}

	if _, err := Format("HSET", "my key", "f", "v"); !errors.Is(err, ErrSpaceInArgument) {
		t.Errorf("expected ErrSpaceInArgument, got %v", err)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	replies := []Reply{
		{Type: ReplyOK, Command: "GET", Value: "hello world"},
		{Type: ReplyOK, Command: "SET", Value: ""},
		{Type: ReplyItem, Command: "LGET", Sub: 3, Value: "v"},
		{Type: ReplyItem, Command: "HGETALL", Sub: 0, Field: "f", HasField: true, Value: "a b"},
		{Type: ReplyEnd, Command: "KEYS", Count: 42},
		{Type: ReplyErr, Command: "GET", Status: "NOT_FOUND", Value: "entry not found"},
	}
	for _, r := range replies {
		line := r.String()
		got, err := ParseReply(line)
		if err != nil {
			t.Fatalf("ParseReply(%q): %v", line, err)
		}
		if got != r {
			t.Errorf("round trip of %q: got %+v, want %+v", line, got, r)
		}
	}

	for _, line := range []string{"", "OK", "FOO BAR :x", "ITEM X :v", "ITEM X y :v", "END X", "END X y"} {
		if _, err := ParseReply(line); !errors.Is(err, ErrMalformedReply) {
			t.Errorf("ParseReply(%q): expected ErrMalformedReply, got %v", line, err)
		}
	}
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	write := func(q *query.Query) {
		t.Helper()
		if err := w.WriteResult(q); err != nil {
			t.Fatalf("WriteResult: %v", err)
		}
	}

	// scalar
	write(&query.Query{Kind: query.KindGet, Scalar: "hello world"})

	// failure
	write(&query.Query{Kind: query.KindGet, Status: query.StatusNotFound})

	// scan in two chunks
	write(&query.Query{Kind: query.KindHGetAll, Partial: true, Sub: 0, Pairs: []query.Pair{{Field: "a", Value: "1"}, {Field: "b", Value: "2"}}})
	write(&query.Query{Kind: query.KindHGetAll, Sub: 1, Pairs: []query.Pair{{Field: "c", Value: "3"}}})

	// empty scan
	write(&query.Query{Kind: query.KindKeys})

	// vector result that is no scan
	write(&query.Query{Kind: query.KindMGet, Items: []string{"x", "y"}})

	if w.Buffered() == 0 {
		t.Fatalf("expected buffered output before Flush")
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := strings.Join([]string{
		"OK GET :hello world",
		"ERR GET NOT_FOUND :entry not found",
		"ITEM HGETALL 0 a :1",
		"ITEM HGETALL 0 b :2",
		"ITEM HGETALL 1 c :3",
		"END HGETALL 3",
		"END KEYS 0",
		"ITEM MGET 0 :x",
		"ITEM MGET 0 :y",
		"END MGET 2",
	}, "\n") + "\n"

	if buf.String() != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
