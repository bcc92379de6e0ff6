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
package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jitlang/internal/jit"
	"jitlang/internal/llir"
)

// build emits a single-function program by hand and loads it, bypassing
// the higher-level pipeline so the emitter's byte encodings are exercised
// directly.
func build(t *testing.T, fn *llir.Function) *jit.Executable {
	t.Helper()
	e := NewEmitter()
	e.Emit(0, fn)
	e.ResolveCalls()
	exec, err := jit.Load(e.Code(), e.EntryOffset(0))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, exec.Release()) })
	return exec
}

func TestEmitReturnImmediate(t *testing.T) {
	fn := &llir.Function{
		Name:          "main",
		RegisterCount: 1,
		Body: []llir.Instr{
			{Op: llir.OpMoveImmI64, Dst: 0, Imm: 7},
			{Op: llir.OpReturn, Value: 0, HasVal: true},
		},
	}
	exec := build(t, fn)
	require.EqualValues(t, 7, exec.Call())
}

func TestEmitArithmetic(t *testing.T) {
	fn := &llir.Function{
		Name:          "main",
		RegisterCount: 3,
		Body: []llir.Instr{
			{Op: llir.OpMoveImmI64, Dst: 0, Imm: 6},
			{Op: llir.OpMoveImmI64, Dst: 1, Imm: 7},
			{Op: llir.OpMul, Dst: 2, L: 0, R: 1},
			{Op: llir.OpReturn, Value: 2, HasVal: true},
		},
	}
	exec := build(t, fn)
	require.EqualValues(t, 42, exec.Call())
}

func TestEmitJumpOnZeroSkipsThen(t *testing.T) {
	// cond = 0, then region stores 111, after-region stores 222: cond
	// being false must land on the after-region.
	fn := &llir.Function{
		Name:          "main",
		RegisterCount: 2,
		Body: []llir.Instr{
			{Op: llir.OpMoveImmI64, Dst: 0, Imm: 0},       // 0: cond
			{Op: llir.OpJumpOnZero, Cond: 0, Target: 3},   // 1: -> skip to 3
			{Op: llir.OpMoveImmI64, Dst: 1, Imm: 111},     // 2: then (skipped)
			{Op: llir.OpMoveImmI64, Dst: 1, Imm: 222},     // 3: after
			{Op: llir.OpReturn, Value: 1, HasVal: true},   // 4
		},
	}
	exec := build(t, fn)
	require.EqualValues(t, 222, exec.Call())
}

func TestEmitCallWithStackSpilledArguments(t *testing.T) {
	// callee(a0..a6): returns the 7th argument (the only one spilled to
	// the stack under the System V ABI).
	callee := &llir.Function{
		Name:          "callee",
		RegisterCount: 7,
		Parameters:    []int{8, 8, 8, 8, 8, 8, 8},
		Body: []llir.Instr{
			{Op: llir.OpReturn, Value: 6, HasVal: true},
		},
	}
	caller := &llir.Function{
		Name:          "main",
		RegisterCount: 8,
		Body: []llir.Instr{
			{Op: llir.OpMoveImmI64, Dst: 0, Imm: 1},
			{Op: llir.OpMoveImmI64, Dst: 1, Imm: 2},
			{Op: llir.OpMoveImmI64, Dst: 2, Imm: 3},
			{Op: llir.OpMoveImmI64, Dst: 3, Imm: 4},
			{Op: llir.OpMoveImmI64, Dst: 4, Imm: 5},
			{Op: llir.OpMoveImmI64, Dst: 5, Imm: 6},
			{Op: llir.OpMoveImmI64, Dst: 6, Imm: 77},
			{Op: llir.OpCall, Dst: 7, FnIdx: 0, Args: []llir.Register{0, 1, 2, 3, 4, 5, 6}},
			{Op: llir.OpReturn, Value: 7, HasVal: true},
		},
	}

	e := NewEmitter()
	e.Emit(0, callee)
	e.Emit(1, caller)
	e.ResolveCalls()
	exec, err := jit.Load(e.Code(), e.EntryOffset(1))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, exec.Release()) })

	require.EqualValues(t, 77, exec.Call())
}
