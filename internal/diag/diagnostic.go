// Package diag collects and renders compiler diagnostics. Grounded on
// original_source/lib/error_collector.hpp/.cpp's ErrorCollector hierarchy,
// translating its throw-on-exceeded-limit behavior into Go's returned-error
// idiom instead of a panic, matching the teacher's own split between
// compilerError's panic (for internal invariant failures) and a plain
// returned error at the CLI boundary.
package diag

import "fmt"

// Severity is how serious a Diagnostic is. Grounded on the three-method
// error/warn/info split in error_collector.hpp.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Pos locates a Diagnostic within a compile. There is no source-text
// position here (no lexer/parser is in scope, see SPEC_FULL.md §6.1);
// instead a Pos names which pass produced the diagnostic and which
// function/instruction it concerns, the same context
// compilerError's formatted panic message embeds inline.
type Pos struct {
	Pass     string
	Function string
	Detail   string
}

func (p Pos) String() string {
	switch {
	case p.Pass == "" && p.Function == "":
		return p.Detail
	case p.Function == "":
		return fmt.Sprintf("%s: %s", p.Pass, p.Detail)
	default:
		return fmt.Sprintf("%s: %s: %s", p.Pass, p.Function, p.Detail)
	}
}

// Diagnostic is one reported condition: a severity, where it came from,
// and a human-readable message.
type Diagnostic struct {
	Severity Severity
	Pos      Pos
	Message  string
}

func (d Diagnostic) Error() string {
	if d.Pos.Pass == "" && d.Pos.Function == "" && d.Pos.Detail == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

// New builds a Diagnostic without a Pos, for callers that have nothing
// more specific than a message.
func New(sev Severity, message string) Diagnostic {
	return Diagnostic{Severity: sev, Message: message}
}

// At builds a Diagnostic with a Pos attached.
func At(sev Severity, pos Pos, message string) Diagnostic {
	return Diagnostic{Severity: sev, Pos: pos, Message: message}
}
