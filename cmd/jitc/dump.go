// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package main

import (
	"fmt"
	"os"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jitlang/internal/compiler"
	"jitlang/internal/config"
)

var dumpStage string

var dumpCmd = &cobra.Command{
	Use:   "dump <source.jl>",
	Short: "compile a program and print one of its intermediate forms",
	Long: `dump prints the AST, HLIR, LLIR, or emitted machine code for a source
file without running it. Without --stage, the first of the
JITLANG_DEBUG_AST / _HLIR / _LLIR / _ASM environment variables that is set
selects the stage (AST when none is). "run" does not read these variables.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrapf(err, "read %s", args[0])
		}

		result, err := compiler.Compile(string(src))
		if err != nil {
			return err
		}
		defer result.Exec.Release()

		debug, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "read debug config")
		}

		stage := dumpStage
		if stage == "" {
			stage = firstRequestedStage(debug)
		}

		if stage == "asm" {
			printMachineCode(result.Code, result.EntryOffset)
			return nil
		}

		var v interface{}
		switch stage {
		case "ast":
			v = result.AST
		case "hlir":
			v = result.HLIR
		case "llir":
			v = result.LLIR
		default:
			return errors.Errorf("unknown dump stage %q (want ast, hlir, llir, or asm)", stage)
		}

		printDump(v, debug.NoColor)
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpStage, "stage", "", "which stage to dump: ast, hlir, llir, asm")
}

func firstRequestedStage(d config.Debug) string {
	switch {
	case d.DumpAST:
		return "ast"
	case d.DumpHLIR:
		return "hlir"
	case d.DumpLLIR:
		return "llir"
	case d.DumpAsm:
		return "asm"
	default:
		return "ast"
	}
}

// printMachineCode hex-dumps the emitted function stream, marking the byte
// offset jitc's entry point starts at. There is no disassembler in this
// pipeline's dependency set (a decoder is the wrong direction for an
// emitter), so this is the raw encoding, not mnemonics.
func printMachineCode(code []byte, entryOffset int) {
	fmt.Printf("entry offset: 0x%x (%d bytes total)\n", entryOffset, len(code))
	for i := 0; i < len(code); i += 16 {
		end := i + 16
		if end > len(code) {
			end = len(code)
		}
		marker := "  "
		if entryOffset >= i && entryOffset < end {
			marker = "->"
		}
		fmt.Printf("%s%08x  % x\n", marker, i, code[i:end])
	}
}

// printDump uses kr/pretty's multi-line form when stdout is an interactive
// terminal and JITLANG_NO_COLOR is unset, and a single-line %#v otherwise.
// Neither form contains ANSI escape codes.
func printDump(v interface{}, noColor bool) {
	if !noColor && term.IsTerminal(int(os.Stdout.Fd())) {
		pretty.Println(v)
		return
	}
	fmt.Printf("%#v\n", v)
}
