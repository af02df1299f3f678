package query

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	errTrailingEscape = errors.New("glob: pattern ends with escape")
	errOpenClass      = errors.New("glob: unterminated character class")
)

// compileGlob translates a glob pattern into an anchored regular expression.
//
//	*      any sequence of bytes (including '/')
//	?      any single character
//	[abc]  character class, [^abc] negates it
//	\x     the literal character x
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)

	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\':
			if i == len(pattern)-1 {
				return nil, errTrailingEscape
			}
			i++
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		case inClass:
			switch {
			case ch == ']':
				inClass = false
				b.WriteByte(']')
			case ch == '^' && pattern[i-1] == '[':
				b.WriteByte('^')
			case ch == '[':
				b.WriteString(`\[`)
			default:
				b.WriteByte(ch)
			}
		case ch == '[':
			inClass = true
			b.WriteByte('[')
		case ch == '*':
			b.WriteString(".*")
		case ch == '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	if inClass {
		return nil, errOpenClass
	}

	b.WriteByte('$')
	return regexp.Compile(b.String())
}
