// Package expr implements the side-effect-free expression language used for
// guard conditions, branch predicates and computed decision outputs.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOperator
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var operators = []string{
	"==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "!",
}

// tokenize splits the source into tokens. It fails on characters outside the
// language rather than guessing.
func tokenize(src string) ([]token, error) {
	var tokens []token

	i := 0
	for i < len(src) {
		c := rune(src[i])

		switch {
		case unicode.IsSpace(c):
			i++

		case unicode.IsDigit(c):
			start := i
			seenDot := false

			for i < len(src) && (unicode.IsDigit(rune(src[i])) || (src[i] == '.' && !seenDot && i+1 < len(src) && unicode.IsDigit(rune(src[i+1])))) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}

			tokens = append(tokens, token{tokNumber, src[start:i], start})

		case c == '\'' || c == '"':
			quote := src[i]
			start := i
			i++

			var sb strings.Builder

			for i < len(src) && src[i] != quote {
				if src[i] == '\\' && i+1 < len(src) {
					i++
					switch src[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(src[i])
					}
				} else {
					sb.WriteByte(src[i])
				}
				i++
			}

			if i >= len(src) {
				return nil, fmt.Errorf("unterminated string at position %d", start)
			}

			i++ // closing quote
			tokens = append(tokens, token{tokString, sb.String(), start})

		case unicode.IsLetter(c) || c == '_':
			start := i

			for i < len(src) && (unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i])) || src[i] == '_') {
				i++
			}

			tokens = append(tokens, token{tokIdent, src[start:i], start})

		default:
			matched := false

			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					tokens = append(tokens, token{tokOperator, op, i})
					i += len(op)
					matched = true

					break
				}
			}

			if matched {
				continue
			}

			if strings.ContainsRune("()[]{},.:?", c) {
				tokens = append(tokens, token{tokPunct, string(c), i})
				i++

				continue
			}

			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}

	tokens = append(tokens, token{tokEOF, "", len(src)})

	return tokens, nil
}
