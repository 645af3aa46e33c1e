// Package ast defines the syntax tree for the TypeScript subset.
//
// Nodes form a closed sum: every statement satisfies Stmt and every
// expression satisfies Expr through unexported marker methods, so a
// type switch over node kinds is exhaustive by construction.
package ast

// Node is the common interface of all syntax tree nodes.
type Node interface {
	Pos() (line, col int)
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Program is the root: an ordered list of top-level statements
// (function declarations, class declarations, variable declarations,
// and bare statements).
type Program struct {
	Stmts []Stmt
}

// Param is one function parameter with an optional type annotation.
type Param struct {
	Name string
	Type string
	Line int
	Col  int
}

// FuncDecl declares a named function. Result is empty for void
// functions. Top-level functions are exported under their own name;
// a leading `export` keyword is accepted and has the same effect.
type FuncDecl struct {
	Name   string
	Params []Param
	Result string
	Body   *BlockStmt
	Line   int
	Col    int
}

func (d *FuncDecl) stmt()           {}
func (d *FuncDecl) Pos() (int, int) { return d.Line, d.Col }

// PropDecl is one class property with an optional initializer.
type PropDecl struct {
	Name string
	Type string
	Init Expr
	Line int
	Col  int
}

// ClassDecl declares a class. Methods compile to plain functions named
// ClassName_method; properties become module globals.
type ClassDecl struct {
	Name    string
	Props   []PropDecl
	Methods []*FuncDecl
	Line    int
	Col     int
}

func (d *ClassDecl) stmt()           {}
func (d *ClassDecl) Pos() (int, int) { return d.Line, d.Col }

// VarKind distinguishes const from let/var declarations.
type VarKind int

const (
	KindConst VarKind = iota
	KindLet
	KindVar
)

// VarDecl declares one variable, optionally typed and initialized.
type VarDecl struct {
	Name string
	Type string
	Init Expr
	Kind VarKind
	Line int
	Col  int
}

func (d *VarDecl) stmt()           {}
func (d *VarDecl) Pos() (int, int) { return d.Line, d.Col }

type BlockStmt struct {
	Stmts []Stmt
	Line  int
	Col   int
}

func (s *BlockStmt) stmt()           {}
func (s *BlockStmt) Pos() (int, int) { return s.Line, s.Col }

type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else Stmt // *BlockStmt or *IfStmt, nil when absent
	Line int
	Col  int
}

func (s *IfStmt) stmt()           {}
func (s *IfStmt) Pos() (int, int) { return s.Line, s.Col }

type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
	Line int
	Col  int
}

func (s *WhileStmt) stmt()           {}
func (s *WhileStmt) Pos() (int, int) { return s.Line, s.Col }

// ForStmt is a C-style for loop. Init, Cond, and Post may each be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body *BlockStmt
	Line int
	Col  int
}

func (s *ForStmt) stmt()           {}
func (s *ForStmt) Pos() (int, int) { return s.Line, s.Col }

type ReturnStmt struct {
	Value Expr // nil for bare return
	Line  int
	Col   int
}

func (s *ReturnStmt) stmt()           {}
func (s *ReturnStmt) Pos() (int, int) { return s.Line, s.Col }

type ExprStmt struct {
	X    Expr
	Line int
	Col  int
}

func (s *ExprStmt) stmt()           {}
func (s *ExprStmt) Pos() (int, int) { return s.Line, s.Col }

// NumberLit is a numeric literal. IsInt records whether the source form
// had no fractional part, which drives integer vs float const lowering.
type NumberLit struct {
	Value float64
	IsInt bool
	Line  int
	Col   int
}

func (e *NumberLit) expr()           {}
func (e *NumberLit) Pos() (int, int) { return e.Line, e.Col }

type BoolLit struct {
	Value bool
	Line  int
	Col   int
}

func (e *BoolLit) expr()           {}
func (e *BoolLit) Pos() (int, int) { return e.Line, e.Col }

type StringLit struct {
	Value string
	Line  int
	Col   int
}

func (e *StringLit) expr()           {}
func (e *StringLit) Pos() (int, int) { return e.Line, e.Col }

type Ident struct {
	Name string
	Line int
	Col  int
}

func (e *Ident) expr()           {}
func (e *Ident) Pos() (int, int) { return e.Line, e.Col }

// BinaryExpr covers arithmetic, bitwise, relational, and logical
// operators; Op is the source operator text.
type BinaryExpr struct {
	Op   string
	X    Expr
	Y    Expr
	Line int
	Col  int
}

func (e *BinaryExpr) expr()           {}
func (e *BinaryExpr) Pos() (int, int) { return e.Line, e.Col }

type UnaryExpr struct {
	Op   string // "-" or "!"
	X    Expr
	Line int
	Col  int
}

func (e *UnaryExpr) expr()           {}
func (e *UnaryExpr) Pos() (int, int) { return e.Line, e.Col }

// AssignExpr is a simple or compound assignment to a named target.
// Op is "=", "+=", "-=", "*=", or "/=".
type AssignExpr struct {
	Op     string
	Target *Ident
	Value  Expr
	Line   int
	Col    int
}

func (e *AssignExpr) expr()           {}
func (e *AssignExpr) Pos() (int, int) { return e.Line, e.Col }

// CondExpr is the ternary conditional.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Line int
	Col  int
}

func (e *CondExpr) expr()           {}
func (e *CondExpr) Pos() (int, int) { return e.Line, e.Col }

type CallExpr struct {
	Callee string
	Args   []Expr
	Line   int
	Col    int
}

func (e *CallExpr) expr()           {}
func (e *CallExpr) Pos() (int, int) { return e.Line, e.Col }
