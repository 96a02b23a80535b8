package diag

import (
	"io"

	"github.com/pkg/errors"
)

// NewStandard wires together the collector cyanc actually drives: a
// LimitCollector (which counts diagnostics through its embedded
// CounterCollector) so a runaway pass can't flood the terminal
// past maxErrors (0 disables the limit), and a ScreenOutputCollector
// for the colorized rendering, chained via a Builder. Warnings are
// dropped unless verbose is set, mirroring the teacher's VerboseMode
// gate around diagnostic noise in cli.go.
func NewStandard(out io.Writer, maxErrors int, verbose bool) *ChainCollector {
	screen := NewScreenOutputCollector(out)

	warn := Collector(EmptyCollector{})
	if verbose {
		warn = screen
	}

	filtered := FilterCollector{
		ErrorCollector: screen,
		WarnCollector:  warn,
		InfoCollector:  warn,
	}

	limit := NewLimitCollector(maxErrors, 0, 0)

	return NewChainBuilder().
		Add(limit).
		Add(filtered).
		Build()
}

// WrapPass attaches which pass/function produced a fatal condition to
// err's cause chain using github.com/pkg/errors, so a -d run can print
// the full "who asked for the pass, which function, which instruction"
// trail instead of a bare message — the returned-error analogue of the
// context compilerError's panic message formats inline.
func WrapPass(pass, function string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s: %s", pass, function)
}
