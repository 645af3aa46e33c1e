// Package token lexes TypeScript-subset source into a token stream.
package token

import (
	"fmt"

	"github.com/forgelab/wasmforge/errors"
)

type Type string

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"

	Ident  Type = "IDENT"
	Number Type = "NUMBER"
	String Type = "STRING"

	Assign   Type = "="
	Plus     Type = "+"
	Minus    Type = "-"
	Star     Type = "*"
	Slash    Type = "/"
	Percent  Type = "%"
	Bang     Type = "!"
	Amp      Type = "&"
	Pipe     Type = "|"
	Caret    Type = "^"
	Shl      Type = "<<"
	Shr      Type = ">>"
	ShrU     Type = ">>>"
	AmpAmp   Type = "&&"
	PipePipe Type = "||"

	Eq Type = "=="
	Ne Type = "!="
	Lt Type = "<"
	Gt Type = ">"
	Le Type = "<="
	Ge Type = ">="

	PlusAssign  Type = "+="
	MinusAssign Type = "-="
	StarAssign  Type = "*="
	SlashAssign Type = "/="

	Inc Type = "++"
	Dec Type = "--"

	Comma     Type = ","
	Semicolon Type = ";"
	Colon     Type = ":"
	Question  Type = "?"
	Dot       Type = "."

	LParen Type = "("
	RParen Type = ")"
	LBrace Type = "{"
	RBrace Type = "}"

	Function Type = "FUNCTION"
	Class    Type = "CLASS"
	Const    Type = "CONST"
	Let      Type = "LET"
	Var      Type = "VAR"
	If       Type = "IF"
	Else     Type = "ELSE"
	While    Type = "WHILE"
	For      Type = "FOR"
	Return   Type = "RETURN"
	True     Type = "TRUE"
	False    Type = "FALSE"
	Export   Type = "EXPORT"
)

type Token struct {
	Type    Type
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Line, t.Column)
}

var keywords = map[string]Type{
	"function": Function,
	"class":    Class,
	"const":    Const,
	"let":      Let,
	"var":      Var,
	"if":       If,
	"else":     Else,
	"while":    While,
	"for":      For,
	"return":   Return,
	"true":     True,
	"false":    False,
	"export":   Export,
}

// LookupIdent maps an identifier to its keyword type, or Ident.
func LookupIdent(ident string) Type {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return Ident
}

// Lexer scans source text one token at a time.
type Lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			line, col := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return errors.Unterminated("block comment", line, col)
			}
		default:
			return nil
		}
	}
	return nil
}

// Next returns the next token. After the input is exhausted it returns
// EOF tokens indefinitely.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: line, Column: col}, nil
	}

	r := l.peek()
	switch {
	case isLetter(r):
		start := l.pos
		for l.pos < len(l.src) && (isLetter(l.peek()) || isDigit(l.peek())) {
			l.advance()
		}
		lit := string(l.src[start:l.pos])
		return Token{Type: LookupIdent(lit), Literal: lit, Line: line, Column: col}, nil

	case isDigit(r):
		return l.number(line, col)

	case r == '"' || r == '\'':
		return l.str(line, col)
	}

	return l.operator(line, col)
}

// Tokenize scans the whole input, appending a trailing EOF token.
func Tokenize(src string) ([]Token, error) {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) number(line, col int) (Token, error) {
	start := l.pos
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' && isDigit(l.peekAt(1)) {
			l.advance()
			for l.pos < len(l.src) && isDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for l.pos < len(l.src) && isDigit(l.peek()) {
				l.advance()
			}
		}
	}
	return Token{Type: Number, Literal: string(l.src[start:l.pos]), Line: line, Column: col}, nil
}

func (l *Lexer) str(line, col int) (Token, error) {
	quote := l.advance()
	var out []rune
	for {
		if l.pos >= len(l.src) || l.peek() == '\n' {
			return Token{}, errors.Unterminated("string literal", line, col)
		}
		r := l.advance()
		if r == quote {
			return Token{Type: String, Literal: string(out), Line: line, Column: col}, nil
		}
		if r == '\\' && l.pos < len(l.src) {
			switch e := l.advance(); e {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			default:
				out = append(out, e)
			}
			continue
		}
		out = append(out, r)
	}
}

// operator scans punctuation, longest match first.
func (l *Lexer) operator(line, col int) (Token, error) {
	two := string(l.peek()) + string(l.peekAt(1))
	three := two + string(l.peekAt(2))

	if three == ">>>" {
		l.advance()
		l.advance()
		l.advance()
		return Token{Type: ShrU, Literal: three, Line: line, Column: col}, nil
	}
	switch two {
	case "==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "+=", "-=", "*=", "/=", "++", "--":
		l.advance()
		l.advance()
		return Token{Type: Type(two), Literal: two, Line: line, Column: col}, nil
	}

	r := l.advance()
	switch r {
	case '=', '+', '-', '*', '/', '%', '!', '&', '|', '^', '<', '>',
		',', ';', ':', '?', '.', '(', ')', '{', '}':
		s := string(r)
		return Token{Type: Type(s), Literal: s, Line: line, Column: col}, nil
	}
	return Token{}, errors.UnexpectedChar(r, line, col)
}

func isLetter(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
