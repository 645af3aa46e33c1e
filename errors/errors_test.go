package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseParse,
				Kind:   KindUnexpectedToken,
				Line:   3,
				Column: 14,
				Detail: "expected ')'",
			},
			contains: []string{"[parse]", "unexpected_token", "3:14", "expected ')'"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseEncode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[encode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindHostRejected,
				Detail: "host validator rejected module",
				Cause:  errors.New("invalid section order"),
			},
			contains: []string{"[validate]", "host_rejected", "caused by", "invalid section order"},
		},
		{
			name: "line only",
			err: &Error{
				Phase:  PhaseLex,
				Kind:   KindUnexpectedChar,
				Line:   7,
				Detail: `unexpected character '@'`,
			},
			contains: []string{"[lex]", "line 7", "'@'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("message %q missing %q", msg, s)
				}
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseOptimize, KindPassFailed).
		Detail("pass %q failed", "constfold").
		Cause(cause).
		Build()

	if err.Phase != PhaseOptimize || err.Kind != KindPassFailed {
		t.Errorf("unexpected phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if err.Detail != `pass "constfold" failed` {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
}

func TestIs(t *testing.T) {
	a := UnresolvedName(PhaseTranslate, "label", "$x", 2)
	b := &Error{Phase: PhaseTranslate, Kind: KindUnresolvedName}
	c := &Error{Phase: PhaseCodegen, Kind: KindUnresolvedName}

	if !errors.Is(a, b) {
		t.Error("expected match on phase+kind")
	}
	if errors.Is(a, c) {
		t.Error("expected mismatch on different phase")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("engine says no")
	err := HostRejected(cause)
	if errors.Unwrap(err) != cause {
		t.Error("unwrap did not return cause")
	}
}

func TestConstructors(t *testing.T) {
	t.Run("unexpected_char", func(t *testing.T) {
		err := UnexpectedChar('@', 1, 5)
		if err.Kind != KindUnexpectedChar || err.Line != 1 || err.Column != 5 {
			t.Errorf("unexpected fields: %+v", err)
		}
	})
	t.Run("unexpected_token_with_want", func(t *testing.T) {
		err := UnexpectedToken(PhaseParse, `"foo"`, "')'", 2, 3)
		if !strings.Contains(err.Detail, "expected ')'") {
			t.Errorf("detail %q", err.Detail)
		}
	})
	t.Run("unexpected_token_without_want", func(t *testing.T) {
		err := UnexpectedToken(PhaseParse, `"foo"`, "", 2, 3)
		if !strings.Contains(err.Detail, "unexpected") {
			t.Errorf("detail %q", err.Detail)
		}
	})
	t.Run("pass_failed", func(t *testing.T) {
		err := PassFailed("peephole", errors.New("x"))
		if err.Phase != PhaseOptimize {
			t.Errorf("phase %v", err.Phase)
		}
	})
}
