// errors.go — user-facing error wrapping and caret-snippet rendering.
//
// Every failure in the front end is a *ParseError carrying a 1-based line
// and column plus a human-readable message. There is exactly one error kind:
// the first syntactic or semantic failure aborts the parse, so nothing
// downstream needs to distinguish categories programmatically.
//
// WrapErrorWithSource turns a *ParseError into a multi-line snippet with a
// caret pointing at the offending column:
//
//	PARSE ERROR at 3:1: Syntax error, expected ;: return
//
//	   2 | int x = 1
//	   3 | return x;
//	     | ^
//
// Other error values pass through unchanged.
package simple

import (
	"fmt"
	"strings"
)

// ParseError is the single error kind of the front end. Incomplete marks
// errors caused by hitting EOF in interactive mode, so a REPL can prompt for
// a continuation line instead of reporting a failure.
type ParseError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// IsIncomplete reports whether err is a ParseError produced by running out
// of input in interactive mode.
func IsIncomplete(err error) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Incomplete
}

// WrapErrorWithSource returns an error whose message is a caret-annotated
// snippet of src, if err is a *ParseError. Other errors are returned as-is.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with an optional source name
// (file path or "<repl>") included in the header.
func WrapErrorWithName(err error, srcName, src string) error {
	pe, ok := err.(*ParseError)
	if !ok {
		return err
	}
	return fmt.Errorf("%s", prettySnippet(src, srcName, pe.Line, pe.Col, pe.Msg))
}

// prettySnippet builds the header plus up to one line of context before and
// after the error line, with a caret under the 1-based column. Coordinates
// are clamped so a bad position can never crash rendering.
func prettySnippet(src, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "PARSE ERROR in %s at %d:%d: %s\n\n", name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "PARSE ERROR at %d:%d: %s\n\n", line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
