// Package sexpr parses a WAT token stream into an S-expression tree.
// A node's type is its first keyword child; the remaining children are
// nested nodes or bare atoms (numbers, strings, identifiers, keywords).
package sexpr

import (
	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/wat/internal/token"
)

// Node is one parenthesized form.
type Node struct {
	Type  string
	Items []Item
	Line  int
	Col   int
}

// Item is a child of a node: either a nested node or an atom token.
type Item struct {
	Node *Node
	Atom *token.Token
}

// IsNode reports whether the item is a nested form.
func (it Item) IsNode() bool { return it.Node != nil }

// IsAtom reports whether the item is a bare token.
func (it Item) IsAtom() bool { return it.Atom != nil }

// Parse consumes the whole token stream as a single top-level form.
func Parse(tokens []token.Token) (*Node, error) {
	p := &parser{tokens: tokens}
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, errors.UnexpectedToken(errors.PhaseParse, t.Value, "end of input", t.Line, t.Col)
	}
	return node, nil
}

type parser struct {
	tokens []token.Token
	pos    int
}

func (p *parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) next() *token.Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *parser) parseNode() (*Node, error) {
	open := p.next()
	if open == nil {
		return nil, errors.UnexpectedEOF(errors.PhaseParse)
	}
	if open.Type != token.LParen {
		return nil, errors.UnexpectedToken(errors.PhaseParse, open.Value, "'('", open.Line, open.Col)
	}

	node := &Node{Line: open.Line, Col: open.Col}

	head := p.peek()
	if head == nil {
		return nil, errors.UnexpectedEOF(errors.PhaseParse)
	}
	if head.Type == token.Keyword {
		node.Type = head.Value
		p.pos++
	}

	for {
		t := p.peek()
		if t == nil {
			return nil, errors.UnexpectedEOF(errors.PhaseParse)
		}
		switch t.Type {
		case token.RParen:
			p.pos++
			return node, nil
		case token.LParen:
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			node.Items = append(node.Items, Item{Node: child})
		default:
			p.pos++
			node.Items = append(node.Items, Item{Atom: t})
		}
	}
}
