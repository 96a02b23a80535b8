package ir

import (
	"fmt"
	"io"
)

// Dump writes a textual snapshot of m to w, labeled by stage — the
// per-pass IR snapshot format spec.md §6.2's -d flag calls for.
// Grounded on the teacher's VerboseMode-gated trace printing (e.g.
// arm64_codegen.go's "if VerboseMode { ... }" blocks): a cheap,
// human-read diagnostic dump rather than a re-parseable format, since
// no round-trip IR text format is in this port's scope.
func Dump(w io.Writer, stage string, m *Module) {
	fmt.Fprintf(w, "; ==== %s ====\n", stage)
	for _, fn := range m.Functions() {
		dumpFunction(w, fn)
	}
}

func dumpFunction(w io.Writer, fn *Function) {
	fmt.Fprintf(w, "function %s {\n", fn.Name)
	for _, b := range fn.Blocks() {
		fmt.Fprintf(w, "%s:\n", b.Name)
		for _, inst := range b.Insts() {
			fmt.Fprintf(w, "\t%s\n", inst.String())
		}
		switch {
		case b.Condition != nil:
			fmt.Fprintf(w, "\tbr %s, %s, %s\n", b.Condition.Name(), b.Then.Name, b.Else.Name)
		case b.Then != nil:
			fmt.Fprintf(w, "\tjump %s\n", b.Then.Name)
		}
	}
	fmt.Fprintln(w, "}")
}
