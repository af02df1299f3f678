package codec

import (
	"encoding/base64"
	"fmt"
	"iter"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Separators and errors
// --------------------------------------------------------------------------

const (
	ElementSep byte = ':' // terminates every element
	PairSep    byte = '/' // separates key and value inside a pair element
)

// ErrInvalidFormat is returned when a blob can not be decoded.
var ErrInvalidFormat = errors.New("codec: invalid format")

// Status is the result of the last mutation on a container.
type Status uint8

const (
	StatusOK       Status = iota // mutation applied
	StatusNotFound               // element or key does not exist
	StatusInvalid                // index out of range or otherwise invalid argument
	StatusExists                 // element or key already exists
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NotFound"
	case StatusInvalid:
		return "Invalid"
	case StatusExists:
		return "Exists"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// --------------------------------------------------------------------------
// Binary-safe transform
// --------------------------------------------------------------------------

var enc = base64.RawURLEncoding

// appendEscaped appends the binary-safe form of s to dst.
func appendEscaped(dst []byte, s string) []byte {
	n := enc.EncodedLen(len(s))
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	enc.Encode(dst[start:], []byte(s))
	return dst
}

// unescape reverses appendEscaped for a single token.
func unescape(tok []byte) (string, error) {
	if len(tok) == 0 {
		return "", nil
	}
	out := make([]byte, enc.DecodedLen(len(tok)))
	n, err := enc.Decode(out, tok)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidFormat, "%v", err)
	}
	return string(out[:n]), nil
}

// --------------------------------------------------------------------------
// Streaming tokenizer
// --------------------------------------------------------------------------

// tokens yields the raw (still escaped) elements of blob. A trailing element
// without terminator is yielded as well.
func tokens(blob []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		start := 0
		for i := 0; i < len(blob); i++ {
			if blob[i] != ElementSep {
				continue
			}
			if !yield(blob[start:i]) {
				return
			}
			start = i + 1
		}
		if start < len(blob) {
			yield(blob[start:])
		}
	}
}

// splitPair splits a pair token into its escaped key and value parts.
func splitPair(tok []byte) (key, value string, err error) {
	for i, b := range tok {
		if b != PairSep {
			continue
		}
		if key, err = unescape(tok[:i]); err != nil {
			return "", "", err
		}
		if value, err = unescape(tok[i+1:]); err != nil {
			return "", "", err
		}
		return key, value, nil
	}
	return "", "", errors.Wrap(ErrInvalidFormat, "pair without separator")
}

// appendPair appends one key/value element to dst.
func appendPair(dst []byte, key, value string) []byte {
	dst = appendEscaped(dst, key)
	dst = append(dst, PairSep)
	dst = appendEscaped(dst, value)
	return append(dst, ElementSep)
}
