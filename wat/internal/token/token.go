package token

import (
	"strings"
	"unicode"

	"github.com/forgelab/wasmforge/errors"
)

type Type int

const (
	LParen Type = iota
	RParen
	Keyword // bare atom: module, func, i32.add, block labels by number
	Ident   // $-prefixed name
	Number
	String
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Keyword:
		return "keyword"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	case String:
		return "string"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
	Col   int
}

// IsFloat reports whether a number token carries a fractional or exponent
// part and therefore lowers to a float constant.
func (t Token) IsFloat() bool {
	if t.Type != Number {
		return false
	}
	if strings.HasPrefix(t.Value, "0x") || strings.HasPrefix(t.Value, "-0x") {
		return strings.ContainsAny(t.Value, ".pP")
	}
	return strings.ContainsAny(t.Value, ".eE")
}

// Tokenize scans WAT source into tokens. Whitespace, ;; line comments, and
// depth-tracked (; ... ;) block comments are skipped. Every token carries
// its line and column. An unrecognized character is a lexical error.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	runes := []rune(input)
	line, col := 1, 1

	advance := func(r rune) {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	for i := 0; i < len(runes); {
		r := runes[i]

		if unicode.IsSpace(r) {
			advance(r)
			i++
			continue
		}

		// Line comment
		if r == ';' && i+1 < len(runes) && runes[i+1] == ';' {
			for i < len(runes) && runes[i] != '\n' {
				i++
				col++
			}
			continue
		}

		// Block comment, depth tracked
		if r == '(' && i+1 < len(runes) && runes[i+1] == ';' {
			startLine, startCol := line, col
			depth := 1
			advance(runes[i])
			advance(runes[i+1])
			i += 2
			for i < len(runes) && depth > 0 {
				if runes[i] == '(' && i+1 < len(runes) && runes[i+1] == ';' {
					depth++
					advance(runes[i])
					advance(runes[i+1])
					i += 2
					continue
				}
				if runes[i] == ';' && i+1 < len(runes) && runes[i+1] == ')' {
					depth--
					advance(runes[i])
					advance(runes[i+1])
					i += 2
					continue
				}
				advance(runes[i])
				i++
			}
			if depth > 0 {
				return nil, errors.Unterminated("block comment", startLine, startCol)
			}
			continue
		}

		if r == '(' {
			tokens = append(tokens, Token{"(", LParen, line, col})
			col++
			i++
			continue
		}
		if r == ')' {
			tokens = append(tokens, Token{")", RParen, line, col})
			col++
			i++
			continue
		}

		// String literal with escapes
		if r == '"' {
			startLine, startCol := line, col
			col++
			i++
			var sb strings.Builder
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' && i+1 < len(runes) {
					sb.WriteRune(runes[i])
					advance(runes[i])
					i++
				}
				if runes[i] == '\n' {
					return nil, errors.Unterminated("string literal", startLine, startCol)
				}
				sb.WriteRune(runes[i])
				advance(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, errors.Unterminated("string literal", startLine, startCol)
			}
			col++
			i++
			tokens = append(tokens, Token{sb.String(), String, startLine, startCol})
			continue
		}

		// Number: decimal or 0x hex, optional sign, float on . / e / p
		if unicode.IsDigit(r) || ((r == '-' || r == '+') && i+1 < len(runes) && unicode.IsDigit(runes[i+1])) {
			start := i
			startCol := col
			if r == '-' || r == '+' {
				i++
				col++
			}
			for i < len(runes) && isNumberRune(runes, start, i) {
				i++
				col++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line, startCol})
			continue
		}

		// $identifier
		if r == '$' {
			start := i
			startCol := col
			i++
			col++
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
				col++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line, startCol})
			continue
		}

		// Keyword: letters plus ._= for forms like i32.load and offset=4
		if unicode.IsLetter(r) {
			start := i
			startCol := col
			for i < len(runes) && isKeywordRune(runes[i]) {
				i++
				col++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Keyword, line, startCol})
			continue
		}

		return nil, errors.UnexpectedChar(r, line, col)
	}

	return tokens, nil
}

func isNumberRune(runes []rune, start, i int) bool {
	c := runes[i]
	switch {
	case unicode.IsDigit(c):
		return true
	case c == '.' || c == '_':
		return true
	case c == 'x' || c == 'X':
		return true
	case (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
		return true
	case c == 'p' || c == 'P':
		return true
	case c == '-' || c == '+':
		// Sign is part of the number only directly after an exponent marker.
		prev := runes[i-1]
		return i > start && (prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P')
	}
	return false
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) ||
		c == '_' || c == '.' || c == '$' || c == '-'
}

func isKeywordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) ||
		c == '.' || c == '_' || c == '='
}
