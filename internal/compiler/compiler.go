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

// Package compiler wires the pipeline together end to end: lexer, parser,
// HLIR builder, LLIR lowerer, machine emitter, and the JIT host. It is the
// one package that knows about all of the others (spec.md §2, §5).
package compiler

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"jitlang/internal/ast"
	"jitlang/internal/codegen"
	"jitlang/internal/hlir"
	"jitlang/internal/jit"
	"jitlang/internal/llir"
	"jitlang/internal/parser"
)

// Result is everything a caller might want out of a successful compile:
// the intermediate representations for dump commands, and the loaded
// executable ready to invoke.
type Result struct {
	AST  *ast.GlobalScope
	HLIR *hlir.GlobalScope
	LLIR []*llir.Function

	Code        []byte
	EntryOffset int
	Exec        *jit.Executable
}

// entryPointName matches hlir's own constant; duplicated here rather than
// exported from hlir, since "what counts as the program entry point" is a
// pipeline-level policy, not an HLIR concern.
const entryPointName = "main"

// Compile runs the full pipeline over source and loads the result into
// executable memory. Callers own the returned Result's Exec and must
// Release it.
func Compile(source string) (*Result, error) {
	root, err := parser.ParseProgram(source)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	hprog, err := hlir.NewBuilder().Build(root)
	if err != nil {
		return nil, errors.Wrap(err, "semantic analysis")
	}

	llirFuncs := llir.Lower(hprog)

	code, entryOffset, err := emit(llirFuncs)
	if err != nil {
		return nil, errors.Wrap(err, "code generation")
	}

	exec, err := jit.Load(code, entryOffset)
	if err != nil {
		return nil, errors.Wrap(err, "load executable")
	}

	return &Result{
		AST:         root,
		HLIR:        hprog,
		LLIR:        llirFuncs,
		Code:        code,
		EntryOffset: entryOffset,
		Exec:        exec,
	}, nil
}

// emit runs the Machine Emitter over every function and locates the
// program's entry point (the function named "main").
func emit(llirFuncs []*llir.Function) ([]byte, int, error) {
	e := codegen.NewEmitter()
	for i, fn := range llirFuncs {
		e.Emit(i, fn)
	}
	e.ResolveCalls()

	entryFn := slices.IndexFunc(llirFuncs, func(fn *llir.Function) bool { return fn.IsEntryPoint })
	if entryFn < 0 {
		return nil, 0, errors.Errorf("no %q function defined", entryPointName)
	}
	return e.Code(), e.EntryOffset(entryFn), nil
}

// Run compiles and immediately invokes the program's entry point,
// releasing the executable memory before returning (spec.md §6: "released
// on every exit path").
func Run(source string) (int64, error) {
	res, err := Compile(source)
	if err != nil {
		return 0, err
	}
	defer res.Exec.Release()
	return res.Exec.Call(), nil
}
