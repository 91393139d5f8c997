// Command rvcc drives the compiler pipeline end to end: parse, lower to
// MIR, and either emit that MIR directly or parse it back and generate
// RV32 assembly. Argument handling uses the standard `flag` package rather
// than a manual positional scan, with an -o output path and a -dump-ast
// debugging switch alongside the two output modes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinyrange/rvcc/internal/ast"
	"github.com/tinyrange/rvcc/internal/codegen/riscv32"
	"github.com/tinyrange/rvcc/internal/lower"
	"github.com/tinyrange/rvcc/internal/mirparse"
	"github.com/tinyrange/rvcc/internal/parser"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("rvcc", flag.ContinueOnError)
	koopaMode := fs.Bool("koopa", false, "emit MIR instead of assembly")
	riscvMode := fs.Bool("riscv", false, "emit RV32 assembly (default)")
	dumpAST := fs.Bool("dump-ast", false, "print the parsed AST to stderr and continue")
	outPath := fs.String("o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	positional := fs.Args()
	if len(positional) > 1 {
		// Flags may also follow the input file, as in the usage line.
		if err := fs.Parse(positional[1:]); err != nil {
			return 2
		}
		positional = append([]string{positional[0]}, fs.Args()...)
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rvcc (-koopa|-riscv) <input-file> -o <output-file>")
		return 2
	}
	srcPath := positional[0]

	data, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
		return 1
	}

	file, err := parser.ParseFile(srcPath, string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
		return 1
	}
	if *dumpAST {
		fmt.Fprint(os.Stderr, ast.Dump(file))
	}

	mir, err := lower.LowerFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
		return 1
	}

	var output string
	switch {
	case *koopaMode && *riscvMode:
		fmt.Fprintln(os.Stderr, "rvcc: -koopa and -riscv are mutually exclusive")
		return 2
	case *koopaMode:
		output = mir
	default:
		prog, err := mirparse.Parse(mir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
			return 1
		}
		asm, err := riscv32.Emit(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
			return 1
		}
		output = asm
	}

	if *outPath == "" {
		fmt.Print(output)
		return 0
	}
	if err := os.WriteFile(*outPath, []byte(output), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "rvcc: %v\n", err)
		return 1
	}
	return 0
}
