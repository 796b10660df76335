// cmd/lumen/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/llir/llvm/ir"
	"github.com/mattn/go-isatty"

	"lumen/internal/backend"
	"lumen/internal/diag"
	"lumen/internal/parser"
	"lumen/internal/sema"
	"lumen/internal/source"
)

const version = "0.1.0"

// CLI is the flag surface kong parses into. The four mode flags share the
// "mode" xor group, so kong rejects combinations like -S --jit before any
// compilation work starts; main additionally rejects giving none of them,
// since kong's xor group only forbids more than one.
var CLI struct {
	Input  string `arg:"" optional:"" help:"Source file to compile ('-' or omitted reads standard input)."`
	Output string `short:"o" name:"out" help:"Output file for -S/-c (default: standard output)."`

	EmitIRText    bool `short:"S" help:"Emit textual LLVM IR." xor:"mode"`
	EmitContainer bool `short:"c" help:"Emit the lumen IR container (a versioned binary envelope around the IR text, not real LLVM bitcode)." xor:"mode"`
	Print         bool `help:"Print the generated IR to standard output." xor:"mode"`
	JIT           bool `help:"JIT-execute the program via lli and exit with its return value." xor:"mode"`

	Color   string `help:"Diagnostic color mode." enum:"auto,always,never" default:"auto"`
	Version bool   `help:"Print the version and exit."`
}

func main() {
	k := kong.Parse(&CLI, kong.Name("lumen"), kong.Description("compiler and JIT driver for the lumen language"))

	if CLI.Version {
		fmt.Println("lumen " + version)
		return
	}

	if !CLI.EmitIRText && !CLI.EmitContainer && !CLI.Print && !CLI.JIT {
		k.Fatalf("exactly one of -S, -c, --print, --jit is required")
	}

	useColor := shouldColor(CLI.Color)

	if CLI.Input == "-" {
		CLI.Input = ""
	}
	src, err := loadSource(CLI.Input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	prog, err := parser.ParseProgram(src)
	if err != nil {
		reportDiag(err, useColor)
		os.Exit(1)
	}

	if err := sema.Analyze(prog, src); err != nil {
		reportDiag(err, useColor)
		os.Exit(1)
	}

	mod, err := backend.Lower(prog)
	if err != nil {
		reportDiag(err, useColor)
		os.Exit(1)
	}

	switch {
	case CLI.EmitContainer:
		writeOutput(CLI.Output, backend.EmitContainer(mod))
	case CLI.JIT:
		runJIT(mod)
	default:
		// -S writes IR text to --out (or standard output); --print always
		// writes to standard output.
		target := CLI.Output
		if CLI.Print {
			target = ""
		}
		writeOutput(target, backend.EmitIRText(mod))
	}
}

func loadSource(path string) (source.Source, error) {
	var (
		src source.Source
		err error
	)
	if path == "" {
		src, err = source.FromStdin()
	} else {
		src, err = source.FromFile(path)
	}
	if err != nil {
		return nil, diag.NewSourceError(err.Error())
	}
	return src, nil
}

func writeOutput(path string, data []byte) {
	if path == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "writing '"+path+"': "+err.Error())
		os.Exit(1)
	}
}

func runJIT(mod *ir.Module) {
	exitCode, stderr, err := backend.JIT(context.Background(), mod)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}
	os.Exit(exitCode)
}

func shouldColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == ""
	}
}

func reportDiag(err error, useColor bool) {
	de, ok := err.(*diag.Error)
	if !useColor || !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	red := color.New(color.FgRed, color.Bold)
	bold := color.New(color.Bold)
	if de.HasPos {
		red.Fprintf(os.Stderr, "%s: ", de.Pos)
	} else {
		red.Fprintf(os.Stderr, "%s: ", de.Family)
	}
	bold.Fprintln(os.Stderr, de.Message)
	if de.Excerpt != "" {
		col := de.Pos.Column
		if col < 1 {
			col = 1
		}
		fmt.Fprintln(os.Stderr, de.Excerpt)
		fmt.Fprintln(os.Stderr, strings.Repeat(" ", col-1)+"^")
	}
}
