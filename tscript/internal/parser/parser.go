// Package parser builds a syntax tree from a TypeScript-subset token
// stream by recursive descent with precedence climbing for expressions.
package parser

import (
	"strconv"
	"strings"

	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/tscript/internal/ast"
	"github.com/forgelab/wasmforge/tscript/internal/token"
)

// Binding powers for binary operators, tightest last. Assignment and
// the ternary sit below all of these and are handled separately.
var precedence = map[token.Type]int{
	token.PipePipe: 1,
	token.AmpAmp:   2,
	token.Pipe:     3,
	token.Caret:    4,
	token.Amp:      5,
	token.Eq:       6,
	token.Ne:       6,
	token.Lt:       7,
	token.Gt:       7,
	token.Le:       7,
	token.Ge:       7,
	token.Shl:      8,
	token.Shr:      8,
	token.ShrU:     8,
	token.Plus:     9,
	token.Minus:    9,
	token.Star:     10,
	token.Slash:    10,
	token.Percent:  10,
}

type Parser struct {
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the whole token stream into a program.
func Parse(source string) (*ast.Program, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return New(tokens).Program()
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) next() token.Token {
	tok := p.cur()
	p.pos++
	return tok
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	tok := p.cur()
	if tok.Type != t {
		return tok, errors.UnexpectedToken(errors.PhaseParse,
			describe(tok), string(t), tok.Line, tok.Column)
	}
	p.pos++
	return tok, nil
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return strconv.Quote(tok.Literal)
}

// accept consumes the current token if it has the given type.
func (p *Parser) accept(t token.Type) bool {
	if p.cur().Type == t {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) Program() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur().Type != token.EOF {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch p.cur().Type {
	case token.Export:
		// export prefix is accepted; top-level declarations are
		// exported either way.
		p.next()
		return p.statement()
	case token.Function:
		return p.funcDecl()
	case token.Class:
		return p.classDecl()
	case token.Const, token.Let, token.Var:
		return p.varDecl()
	case token.If:
		return p.ifStmt()
	case token.While:
		return p.whileStmt()
	case token.For:
		return p.forStmt()
	case token.Return:
		return p.returnStmt()
	case token.LBrace:
		return p.block()
	}
	return p.exprStmt()
}

func (p *Parser) funcDecl() (*ast.FuncDecl, error) {
	kw := p.next() // function
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	decl := &ast.FuncDecl{Name: name.Literal, Line: kw.Line, Col: kw.Column}

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	for p.cur().Type != token.RParen {
		pname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: pname.Literal, Line: pname.Line, Col: pname.Column}
		if p.accept(token.Colon) {
			tname, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			param.Type = tname.Literal
		}
		decl.Params = append(decl.Params, param)
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	if p.accept(token.Colon) {
		tname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		decl.Result = tname.Literal
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

func (p *Parser) classDecl() (ast.Stmt, error) {
	kw := p.next() // class
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	decl := &ast.ClassDecl{Name: name.Literal, Line: kw.Line, Col: kw.Column}

	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	for p.cur().Type != token.RBrace && p.cur().Type != token.EOF {
		member, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if p.cur().Type == token.LParen {
			m, err := p.method(member)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, m)
			continue
		}
		prop := ast.PropDecl{Name: member.Literal, Line: member.Line, Col: member.Column}
		if p.accept(token.Colon) {
			tname, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			prop.Type = tname.Literal
		}
		if p.accept(token.Assign) {
			init, err := p.expression()
			if err != nil {
				return nil, err
			}
			prop.Init = init
		}
		p.accept(token.Semicolon)
		decl.Props = append(decl.Props, prop)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return decl, nil
}

// method parses a class method after its name token; the body grammar
// is identical to a function declaration.
func (p *Parser) method(name token.Token) (*ast.FuncDecl, error) {
	decl := &ast.FuncDecl{Name: name.Literal, Line: name.Line, Col: name.Column}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	for p.cur().Type != token.RParen {
		pname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: pname.Literal, Line: pname.Line, Col: pname.Column}
		if p.accept(token.Colon) {
			tname, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			param.Type = tname.Literal
		}
		decl.Params = append(decl.Params, param)
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if p.accept(token.Colon) {
		tname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		decl.Result = tname.Literal
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

func (p *Parser) varDecl() (ast.Stmt, error) {
	kw := p.next()
	kind := ast.KindVar
	switch kw.Type {
	case token.Const:
		kind = ast.KindConst
	case token.Let:
		kind = ast.KindLet
	}

	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{Name: name.Literal, Kind: kind, Line: kw.Line, Col: kw.Column}

	if p.accept(token.Colon) {
		tname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		decl.Type = tname.Literal
	}
	if p.accept(token.Assign) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	p.accept(token.Semicolon)
	return decl, nil
}

func (p *Parser) block() (*ast.BlockStmt, error) {
	lb, err := p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}
	blk := &ast.BlockStmt{Line: lb.Line, Col: lb.Column}
	for p.cur().Type != token.RBrace && p.cur().Type != token.EOF {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, stmt)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) ifStmt() (ast.Stmt, error) {
	kw := p.next() // if
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Cond: cond, Then: then, Line: kw.Line, Col: kw.Column}
	if p.accept(token.Else) {
		if p.cur().Type == token.If {
			els, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		} else {
			els, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		}
	}
	return stmt, nil
}

func (p *Parser) whileStmt() (ast.Stmt, error) {
	kw := p.next() // while
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Line: kw.Line, Col: kw.Column}, nil
}

func (p *Parser) forStmt() (ast.Stmt, error) {
	kw := p.next() // for
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	stmt := &ast.ForStmt{Line: kw.Line, Col: kw.Column}

	if !p.accept(token.Semicolon) {
		switch p.cur().Type {
		case token.Const, token.Let, token.Var:
			init, err := p.varDecl() // consumes the semicolon
			if err != nil {
				return nil, err
			}
			stmt.Init = init
		default:
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			stmt.Init = &ast.ExprStmt{X: x}
			if _, err := p.expect(token.Semicolon); err != nil {
				return nil, err
			}
		}
	}
	if !p.accept(token.Semicolon) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
	}
	if p.cur().Type != token.RParen {
		post, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Post = post
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) returnStmt() (ast.Stmt, error) {
	kw := p.next() // return
	stmt := &ast.ReturnStmt{Line: kw.Line, Col: kw.Column}
	if p.cur().Type != token.Semicolon && p.cur().Type != token.RBrace &&
		p.cur().Type != token.EOF {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Value = v
	}
	p.accept(token.Semicolon)
	return stmt, nil
}

func (p *Parser) exprStmt() (ast.Stmt, error) {
	tok := p.cur()
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.accept(token.Semicolon)
	return &ast.ExprStmt{X: x, Line: tok.Line, Col: tok.Column}, nil
}

// expression parses assignment, the lowest-binding form.
func (p *Parser) expression() (ast.Expr, error) {
	// Assignment needs one token of lookahead to distinguish a target
	// from an ordinary identifier expression.
	if p.cur().Type == token.Ident && isAssignOp(p.peek().Type) {
		target := p.next()
		op := p.next()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{
			Op:     op.Literal,
			Target: &ast.Ident{Name: target.Literal, Line: target.Line, Col: target.Column},
			Value:  value,
			Line:   op.Line,
			Col:    op.Column,
		}, nil
	}
	return p.ternary()
}

func isAssignOp(t token.Type) bool {
	switch t {
	case token.Assign, token.PlusAssign, token.MinusAssign,
		token.StarAssign, token.SlashAssign:
		return true
	}
	return false
}

func (p *Parser) ternary() (ast.Expr, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.accept(token.Question) {
		return cond, nil
	}
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	els, err := p.expression()
	if err != nil {
		return nil, err
	}
	line, col := cond.Pos()
	return &ast.CondExpr{Cond: cond, Then: then, Else: els, Line: line, Col: col}, nil
}

// binary is the precedence climber: it consumes operators binding at
// least as tightly as minPrec.
func (p *Parser) binary(minPrec int) (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur()
		prec, ok := precedence[op.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op.Literal, X: left, Y: right, Line: op.Line, Col: op.Column}
	}
}

func (p *Parser) unary() (ast.Expr, error) {
	tok := p.cur()
	if tok.Type == token.Minus || tok.Type == token.Bang {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: tok.Literal, X: x, Line: tok.Line, Col: tok.Column}, nil
	}
	return p.postfix()
}

// postfix handles x++ and x-- as sugar for compound assignment.
func (p *Parser) postfix() (ast.Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	tok := p.cur()
	if tok.Type == token.Inc || tok.Type == token.Dec {
		ident, ok := x.(*ast.Ident)
		if !ok {
			return nil, errors.UnexpectedToken(errors.PhaseParse,
				strconv.Quote(tok.Literal), "identifier before "+tok.Literal,
				tok.Line, tok.Column)
		}
		p.next()
		op := "+="
		if tok.Type == token.Dec {
			op = "-="
		}
		return &ast.AssignExpr{
			Op:     op,
			Target: ident,
			Value:  &ast.NumberLit{Value: 1, IsInt: true, Line: tok.Line, Col: tok.Column},
			Line:   tok.Line,
			Col:    tok.Column,
		}, nil
	}
	return x, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case token.Number:
		p.next()
		lit := strings.ReplaceAll(tok.Literal, "_", "")
		v, err := parseNumber(lit)
		if err != nil {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
				At(tok.Line, tok.Column).
				Detail("invalid number %q", tok.Literal).Cause(err).Build()
		}
		isInt := !strings.ContainsAny(lit, ".eE") || strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X")
		return &ast.NumberLit{Value: v, IsInt: isInt, Line: tok.Line, Col: tok.Column}, nil

	case token.String:
		p.next()
		return &ast.StringLit{Value: tok.Literal, Line: tok.Line, Col: tok.Column}, nil

	case token.True, token.False:
		p.next()
		return &ast.BoolLit{Value: tok.Type == token.True, Line: tok.Line, Col: tok.Column}, nil

	case token.Ident:
		p.next()
		if p.cur().Type == token.LParen {
			return p.callArgs(tok)
		}
		return &ast.Ident{Name: tok.Literal, Line: tok.Line, Col: tok.Column}, nil

	case token.LParen:
		p.next()
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, errors.UnexpectedToken(errors.PhaseParse,
		describe(tok), "an expression", tok.Line, tok.Column)
}

func (p *Parser) callArgs(callee token.Token) (ast.Expr, error) {
	call := &ast.CallExpr{Callee: callee.Literal, Line: callee.Line, Col: callee.Column}
	p.next() // (
	for p.cur().Type != token.RParen {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return call, nil
}

func parseNumber(lit string) (float64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		n, err := strconv.ParseUint(lit[2:], 16, 64)
		return float64(n), err
	}
	return strconv.ParseFloat(lit, 64)
}
