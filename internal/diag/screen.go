package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ScreenOutputCollector writes each diagnostic to a stream as a
// colorized "ERR!"/"WARN"/"INFO" tag followed by its message,
// grounded on ScreenOutputErrorCollector's rlutil-based
// saveDefaultColor/setColor/resetColor sequence around std::cout.
// fatih/color replaces rlutil; color only renders when the
// destination is a real terminal, checked with go-isatty the way
// kanso-lang-kanso pairs those two dependencies, rather than relying
// on color's own global NoColor default so piping cyanc's stderr to a
// file never produces ANSI escapes that a log viewer mangles.
type ScreenOutputCollector struct {
	out io.Writer

	errTag  *color.Color
	warnTag *color.Color
	infoTag *color.Color
}

// NewScreenOutputCollector builds a collector writing to out, with
// color enabled only when out is a terminal (go-isatty checks fd-ness
// against *os.File; any other io.Writer is treated as non-terminal).
func NewScreenOutputCollector(out io.Writer) *ScreenOutputCollector {
	isTerm := false
	if f, ok := out.(*os.File); ok {
		isTerm = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	c := &ScreenOutputCollector{
		out:     out,
		errTag:  color.New(color.FgRed, color.Bold),
		warnTag: color.New(color.FgYellow, color.Bold),
		infoTag: color.New(color.FgGreen, color.Bold),
	}
	c.errTag.EnableColor()
	c.warnTag.EnableColor()
	c.infoTag.EnableColor()
	if !isTerm {
		c.errTag.DisableColor()
		c.warnTag.DisableColor()
		c.infoTag.DisableColor()
	}
	return c
}

func (c *ScreenOutputCollector) Error(d Diagnostic) error {
	c.errTag.Fprint(c.out, "ERR!")
	fmt.Fprintf(c.out, ": %s\n", d.Error())
	return nil
}

func (c *ScreenOutputCollector) Warn(d Diagnostic) error {
	c.warnTag.Fprint(c.out, "WARN")
	fmt.Fprintf(c.out, ": %s\n", d.Error())
	return nil
}

func (c *ScreenOutputCollector) Info(d Diagnostic) error {
	c.infoTag.Fprint(c.out, "INFO")
	fmt.Fprintf(c.out, ": %s\n", d.Error())
	return nil
}
