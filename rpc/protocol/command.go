package protocol

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrEmptyLine is returned for lines without any token
	ErrEmptyLine = errors.New("empty command line")
	// ErrSpaceInArgument is returned when an argument other than the last one
	// contains a space and can therefore not be encoded
	ErrSpaceInArgument = errors.New("only the last argument may contain spaces")
)

// Command is one parsed request line
type Command struct {
	Name string // upper case
	Args []string
}

// tokenize splits a line into space separated tokens. A token starting with
// ':' (other than the first) swallows the rest of the line, spaces included.
func tokenize(line string) []string {
	line = strings.TrimRight(line, "\r\n")

	var tokens []string
	for {
		line = strings.TrimLeft(line, " ")
		if line == "" {
			return tokens
		}
		if line[0] == ':' && len(tokens) > 0 {
			return append(tokens, line[1:])
		}
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			return append(tokens, line)
		}
		tokens = append(tokens, line[:i])
		line = line[i+1:]
	}
}

// Parse reads a request line of the form
//
//	COMMAND arg arg :trailing argument
func Parse(line string) (Command, error) {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return Command{}, ErrEmptyLine
	}
	return Command{Name: strings.ToUpper(tokens[0]), Args: tokens[1:]}, nil
}

// Format builds a request line (without line break). The last argument is
// sent as trailing argument when it is empty, contains a space or starts
// with ':'.
func Format(name string, args ...string) (string, error) {
	var sb strings.Builder
	sb.WriteString(name)

	for i, arg := range args {
		sb.WriteByte(' ')
		if i == len(args)-1 {
			if arg == "" || arg[0] == ':' || strings.ContainsAny(arg, " ") {
				sb.WriteByte(':')
			}
			sb.WriteString(arg)
			break
		}
		if arg == "" || arg[0] == ':' || strings.ContainsAny(arg, " ") {
			return "", errors.Wrapf(ErrSpaceInArgument, "argument %d of %s", i+1, name)
		}
		sb.WriteString(arg)
	}
	return sb.String(), nil
}
