package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the toolchain the error occurred
type Phase string

const (
	PhaseLex       Phase = "lex"       // tokenizing source text
	PhaseParse     Phase = "parse"     // grammar parsing
	PhaseTranslate Phase = "translate" // WAT AST to module definition
	PhaseCodegen   Phase = "codegen"   // TS-subset AST lowering
	PhaseEncode    Phase = "encode"    // module definition to binary
	PhaseOptimize  Phase = "optimize"  // binary optimizer passes
	PhaseValidate  Phase = "validate"  // host binary validation
)

// Kind categorizes the error
type Kind string

const (
	KindUnexpectedChar  Kind = "unexpected_char"
	KindUnterminated    Kind = "unterminated"
	KindUnexpectedToken Kind = "unexpected_token"
	KindUnexpectedEOF   Kind = "unexpected_eof"
	KindUnresolvedName  Kind = "unresolved_name"
	KindUnknownOperator Kind = "unknown_operator"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidModule   Kind = "invalid_module"
	KindInvalidData     Kind = "invalid_data"
	KindPassFailed      Kind = "pass_failed"
	KindUnsupported     Kind = "unsupported"
	KindOverflow        Kind = "overflow"
	KindHostRejected    Kind = "host_rejected"
)

// Error is the structured error type used throughout the toolchain
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Line   int // 1-based, 0 when unknown
	Column int // 1-based, 0 when unknown
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Line > 0 {
		if e.Column > 0 {
			fmt.Fprintf(&b, " at %d:%d", e.Line, e.Column)
		} else {
			fmt.Fprintf(&b, " at line %d", e.Line)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// At sets the source position
func (b *Builder) At(line, column int) *Builder {
	b.err.Line = line
	b.err.Column = column
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnexpectedChar creates a lexical error for an unrecognized character
func UnexpectedChar(r rune, line, column int) *Error {
	return &Error{
		Phase:  PhaseLex,
		Kind:   KindUnexpectedChar,
		Line:   line,
		Column: column,
		Detail: fmt.Sprintf("unexpected character %q", r),
	}
}

// Unterminated creates a lexical error for an unterminated literal or comment
func Unterminated(what string, line, column int) *Error {
	return &Error{
		Phase:  PhaseLex,
		Kind:   KindUnterminated,
		Line:   line,
		Column: column,
		Detail: fmt.Sprintf("unterminated %s", what),
	}
}

// UnexpectedToken creates a syntax error for a grammar mismatch
func UnexpectedToken(phase Phase, got, want string, line, column int) *Error {
	detail := fmt.Sprintf("unexpected %s", got)
	if want != "" {
		detail = fmt.Sprintf("expected %s, got %s", want, got)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedToken,
		Line:   line,
		Column: column,
		Detail: detail,
	}
}

// UnexpectedEOF creates a syntax error for premature end of input
func UnexpectedEOF(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEOF,
		Detail: "unexpected end of input",
	}
}

// UnresolvedName creates an error for a name that does not resolve to an index
func UnresolvedName(phase Phase, space, name string, line int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolvedName,
		Line:   line,
		Detail: fmt.Sprintf("unknown %s %q", space, name),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, what string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s index %d out of bounds (length %d)", what, index, length),
	}
}

// InvalidModule creates a structural validation error
func InvalidModule(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidModule,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// HostRejected wraps a host validator rejection
func HostRejected(cause error) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindHostRejected,
		Detail: "host validator rejected module",
		Cause:  cause,
	}
}

// PassFailed wraps an error raised inside one optimizer pass
func PassFailed(pass string, cause error) *Error {
	return &Error{
		Phase:  PhaseOptimize,
		Kind:   KindPassFailed,
		Detail: fmt.Sprintf("pass %q failed", pass),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}
