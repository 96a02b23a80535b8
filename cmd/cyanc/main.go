// Command cyanc is the compiler's CLI entry point: flag parsing,
// pipeline selection, and artifact emission, grounded on the teacher's
// main.go (flag.String/flag.Bool, a VerboseMode-style global,
// log.Fatalf on usage errors) and cli.go's temp-file-compile-then-run
// pattern for invoking an external toolchain. Parsing the input
// files themselves is explicitly out of this port's scope (spec.md
// §1's "Lexing and parsing... feed the middle-end through the IR
// builder interface"); frontend plugs in the one seam a real lexer and
// parser would occupy.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cyanlang/cyanc/internal/config"
	"github.com/cyanlang/cyanc/internal/diag"
	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/transform"
	"github.com/cyanlang/cyanc/internal/vm"
	"github.com/cyanlang/cyanc/internal/x64"
)

const versionString = "cyanc (cyan compiler middle/back-end) dev"

// EmitMode selects what -e produces.
type EmitMode string

const (
	EmitGCC EmitMode = "GCC"
	EmitIR  EmitMode = "IR"
	EmitX64 EmitMode = "X64"
)

// frontend builds an *ir.Module from a list of source paths. The real
// lexer/parser is an external collaborator (spec.md §1); this default
// only exists so the CLI skeleton below is itself runnable end to end
// against IR assembled via internal/ir's builder surface (§6.1) in
// tests, and reports a clear diagnostic for anyone invoking cyanc on
// actual .cyan files before a front end is wired in.
var frontend = func(paths []string) (*ir.Module, error) {
	return nil, fmt.Errorf("cyanc: no front end wired in; construct an *ir.Module via internal/ir.Builder and call compile() directly")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cyanc", flag.ContinueOnError)

	outFlag := fs.String("o", "", "output path (defaults: a.out for GCC mode, a.s for X64, a.ir for IR)")
	emitFlag := fs.String("e", "GCC", "emit mode: GCC, IR, or X64")
	opt0 := fs.Bool("O0", false, "optimization level 0 (no transforms)")
	opt1 := fs.Bool("O1", false, "optimization level 1")
	opt2 := fs.Bool("O2", false, "optimization level 2")
	opt3 := fs.Bool("O3", true, "optimization level 3 (default)")
	runFlag := fs.Bool("r", false, "run via VM instead of emitting, exit with main's return value")
	debugFlag := fs.Bool("d", false, "write per-pass IR snapshots to stderr")
	versionFlag := fs.Bool("v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		fmt.Println(versionString)
		return 0
	}

	cfg := config.Load()
	debug := *debugFlag || cfg.Debug

	inputFiles := fs.Args()
	if len(inputFiles) == 0 {
		fmt.Fprintln(os.Stderr, "cyanc: warning: no input files")
	}

	collector := diag.NewStandard(os.Stderr, cfg.MaxErrors, debug)

	module, err := frontend(inputFiles)
	if err != nil {
		collector.Error(diag.New(diag.Error, err.Error()))
		return 1
	}

	level := optLevel(*opt0, *opt1, *opt2, *opt3)

	mode := EmitMode(*emitFlag)
	outPath := *outFlag
	if outPath == "" {
		outPath = defaultOutput(mode)
	}

	if *runFlag {
		return runVM(module, level, collector)
	}

	if err := compile(module, level, mode, outPath, debug, cfg); err != nil {
		collector.Error(diag.New(diag.Error, err.Error()))
		return 1
	}
	return 0
}

func optLevel(o0, o1, o2, o3 bool) transform.Level {
	switch {
	case o0:
		return transform.L0
	case o1:
		return transform.L1
	case o2:
		return transform.L2
	default:
		_ = o3
		return transform.L3
	}
}

func defaultOutput(mode EmitMode) string {
	switch mode {
	case EmitIR:
		return "a.ir"
	case EmitX64:
		return "a.s"
	default:
		return "a.out"
	}
}

// compile runs the optimization pipeline and emits the requested
// artifact, dumping an IR snapshot before/after the pipeline when
// debug is set (spec.md §6.2's -d).
func compile(m *ir.Module, level transform.Level, mode EmitMode, outPath string, debug bool, cfg config.Config) error {
	if debug {
		ir.Dump(os.Stderr, "before optimization", m)
	}

	transform.Run(m, level)

	if debug {
		ir.Dump(os.Stderr, "after optimization", m)
	}

	switch mode {
	case EmitIR:
		return writeFile(outPath, []byte(dumpString(m)))
	case EmitX64:
		asm := assemble(m)
		return writeFile(outPath, []byte(asm))
	case EmitGCC:
		return compileGCC(m, outPath, cfg)
	default:
		return fmt.Errorf("cyanc: unknown emit mode %q", mode)
	}
}

func dumpString(m *ir.Module) string {
	var b strings.Builder
	ir.Dump(&b, "module", m)
	return b.String()
}

// assemble lowers every function through instruction selection,
// register allocation, and the two-memory-operand fixer-up, then
// emits Intel-syntax assembly for the whole module (spec.md §4.9,
// §6.3).
func assemble(m *ir.Module) string {
	var fns []*x64.Func
	for _, fn := range m.Functions() {
		lowered := x64.SelectFunction(fn)
		x64.Allocate(lowered, lowered.LocalBytes)
		x64.FixupTwoMemoryOperands(lowered)
		fns = append(fns, lowered)
	}
	return x64.Emit(m, fns)
}

// compileGCC writes assembly to a temp file, invokes the system C
// compiler against it plus CYAN_RUNTIME_DIR's runtime object, then
// removes the temp file (spec.md §6.2), grounded on the teacher's
// cli.go temp-file-compile-then-exec-then-cleanup shape (tmpExec,
// defer os.Remove, cmd.Stdout/Stderr = os.Stdout/os.Stderr).
func compileGCC(m *ir.Module, outPath string, cfg config.Config) error {
	asm := assemble(m)

	tmp, err := os.CreateTemp("", "cyanc_*.s")
	if err != nil {
		return fmt.Errorf("cyanc: creating temp assembly file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(asm); err != nil {
		tmp.Close()
		return fmt.Errorf("cyanc: writing temp assembly file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cyanc: closing temp assembly file: %w", err)
	}

	ccArgs := []string{tmpPath, "-o", outPath}
	if cfg.RuntimeDir != "" {
		ccArgs = append(ccArgs, filepath.Join(cfg.RuntimeDir, "runtime.o"))
	}

	cmd := exec.Command("cc", ccArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cyanc: invoking system C compiler: %w", err)
	}
	return nil
}

// runVM lowers the module to bytecode and interprets it directly
// (spec.md §6.4), the fast path -r takes instead of -e.
func runVM(m *ir.Module, level transform.Level, collector *diag.ChainCollector) int {
	transform.Run(m, level)

	program := vm.Generate(m, nil)
	defer program.Mem.Close()
	result, err := vm.Interp(program)
	if err != nil {
		collector.Error(diag.New(diag.Error, err.Error()))
		return 1
	}
	return int(int64(result))
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
