package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/aKV/rpc/client"
	"github.com/ValentinKolb/aKV/rpc/protocol"
)

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name string
		res  *client.Result
		want string
	}{
		{
			name: "scalar",
			res:  &client.Result{Command: "GET", Value: "John Doe"},
			want: "\"John Doe\"\n",
		},
		{
			name: "error",
			res:  &client.Result{Command: "GET", Err: &client.StatusError{Command: "GET", Status: "NOT_FOUND", Text: "no such key"}},
			want: "(error) NOT_FOUND no such key\n",
		},
		{
			name: "empty vector",
			res:  &client.Result{Command: "KEYS", Vector: true},
			want: "(empty)\n",
		},
		{
			name: "pairs",
			res: &client.Result{Command: "HGETALL", Vector: true, Items: []protocol.Reply{
				{Type: protocol.ReplyItem, Command: "HGETALL", Field: "a", HasField: true, Value: "1"},
				{Type: protocol.ReplyItem, Command: "HGETALL", Field: "b", HasField: true, Value: "2"},
			}},
			want: "1) a => \"1\"\n2) b => \"2\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printResult(&buf, tt.res)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHelpListsCommands(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf)
	out := buf.String()
	for _, name := range []string{"SET", "HGETALL", "EXPIRE", "FUTURE", "RESETALL"} {
		if !strings.Contains(out, name) {
			t.Errorf("help does not mention %s", name)
		}
	}
}
