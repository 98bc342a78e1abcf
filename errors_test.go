// errors_test.go
package simple

import (
	"strings"
	"testing"
)

func Test_Errors_SnippetHasCaret(t *testing.T) {
	src := "int x = 1;\nreturn y;\nint z = 2;"
	_, err := Parse(src)
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	wrapped := WrapErrorWithSource(err, src)
	msg := wrapped.Error()
	for _, want := range []string{"PARSE ERROR", "return y;", "^", "   1 |", "   2 |", "   3 |"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("snippet missing %q:\n%s", want, msg)
		}
	}
}

func Test_Errors_WrapWithName(t *testing.T) {
	src := "return ;"
	_, err := Parse(src)
	wrapped := WrapErrorWithName(err, "prog.smp", src)
	if !strings.Contains(wrapped.Error(), "in prog.smp at ") {
		t.Fatalf("named snippet missing source name:\n%s", wrapped.Error())
	}
}

func Test_Errors_NonParseErrorsPassThrough(t *testing.T) {
	plain := errFixture{}
	if WrapErrorWithSource(plain, "src") != error(plain) {
		t.Fatalf("non-parse errors must pass through unchanged")
	}
}

type errFixture struct{}

func (errFixture) Error() string { return "boom" }

func Test_Errors_ClampOutOfRangePosition(t *testing.T) {
	pe := &ParseError{Line: 99, Col: 99, Msg: "off the end"}
	msg := WrapErrorWithSource(pe, "one line").Error()
	if !strings.Contains(msg, "one line") || !strings.Contains(msg, "^") {
		t.Fatalf("clamped rendering broken:\n%s", msg)
	}
}

func Test_Errors_IncompleteFlag(t *testing.T) {
	if IsIncomplete(&ParseError{Msg: "x"}) {
		t.Fatalf("plain parse error is not incomplete")
	}
	if !IsIncomplete(&ParseError{Msg: "x", Incomplete: true}) {
		t.Fatalf("incomplete flag not honored")
	}
	if IsIncomplete(nil) {
		t.Fatalf("nil is not incomplete")
	}
}
