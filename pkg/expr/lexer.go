package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits the expression into tokens. References keep their dotted path as
// a single token ("nodes.fetch.output.status").
func lex(input string) ([]token, error) {
	var tokens []token

	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenLeftParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenRightParen, text: ")", pos: i})
			i++
		case r == '\'' || r == '"':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokenString, text: text, pos: i})
			i = next
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++

			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i]), pos: start})
		case isIdentStart(r):
			start := i
			for i < len(runes) && (isIdentPart(runes[i]) || runes[i] == '.') {
				i++
			}

			text := string(runes[start:i])
			if strings.HasSuffix(text, ".") || strings.Contains(text, "..") {
				return nil, fmt.Errorf("malformed reference %q at position %d", text, start)
			}

			tokens = append(tokens, token{kind: tokenIdent, text: text, pos: start})
		default:
			op, next, err := lexOperator(runes, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokenOperator, text: op, pos: i})
			i = next
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})

	return tokens, nil
}

func lexString(runes []rune, start int) (string, int, error) {
	quote := runes[start]

	var sb strings.Builder

	i := start + 1
	for i < len(runes) {
		r := runes[i]

		if r == '\\' && i+1 < len(runes) {
			sb.WriteRune(runes[i+1])

			i += 2

			continue
		}

		if r == quote {
			return sb.String(), i + 1, nil
		}

		sb.WriteRune(r)
		i++
	}

	return "", 0, fmt.Errorf("unterminated string literal at position %d", start)
}

func lexOperator(runes []rune, start int) (string, int, error) {
	rest := string(runes[start:])

	for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!"} {
		if strings.HasPrefix(rest, op) {
			return op, start + len(op), nil
		}
	}

	return "", 0, fmt.Errorf("unexpected character %q at position %d", runes[start], start)
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
