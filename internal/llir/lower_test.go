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
package llir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jitlang/internal/hlir"
	"jitlang/internal/parser"
)

func lower(t *testing.T, src string) []*Function {
	t.Helper()
	root, err := parser.ParseProgram(src)
	require.NoError(t, err)
	prog, err := hlir.NewBuilder().Build(root)
	require.NoError(t, err)
	return Lower(prog)
}

func TestLowerReturnLiteral(t *testing.T) {
	funcs := lower(t, `fn main() { return 42; }`)
	require.Len(t, funcs, 1)
	body := funcs[0].Body
	require.Equal(t, OpMoveImmI64, body[0].Op)
	require.EqualValues(t, 42, body[0].Imm)
	require.Equal(t, OpReturn, body[len(body)-1].Op)
	require.True(t, body[len(body)-1].HasVal)
}

func TestLowerIfWithoutElsePatchesSingleTarget(t *testing.T) {
	funcs := lower(t, `
fn main() {
	if (1 == 1) {
		return 1;
	}
	return 0;
}`)
	body := funcs[0].Body
	var jz *Instr
	for i := range body {
		if body[i].Op == OpJumpOnZero {
			jz = &body[i]
		}
	}
	require.NotNil(t, jz)
	require.Equal(t, len(body)-2, jz.Target) // lands just before the trailing `return 0;`
}

func TestLowerIfElsePatchesBothTargets(t *testing.T) {
	funcs := lower(t, `
fn main() {
	if (1 == 2) {
		return 1;
	} else {
		return 2;
	}
}`)
	body := funcs[0].Body
	var jz, jmp *Instr
	for i := range body {
		switch body[i].Op {
		case OpJumpOnZero:
			jz = &body[i]
		case OpJump:
			jmp = &body[i]
		}
	}
	require.NotNil(t, jz)
	require.NotNil(t, jmp)
	require.Less(t, jz.Target, len(body))
	require.Equal(t, len(body)-1, jmp.Target) // the closing bare return after the else
}

func TestLowerRegistersNeverReused(t *testing.T) {
	funcs := lower(t, `
fn main() {
	let a = 1;
	let b = 2;
	let c = a + b;
	return c;
}`)
	seen := map[Register]bool{}
	for _, instr := range funcs[0].Body {
		if instr.Op == OpMoveImmI64 || instr.Op == OpAdd {
			require.False(t, seen[instr.Dst], "register %d reused", instr.Dst)
			seen[instr.Dst] = true
		}
	}
}

func TestLowerCallCollectsArguments(t *testing.T) {
	funcs := lower(t, `
fn add(a: i64, b: i64) { return a + b; }
fn main() { return add(1, 2); }
`)
	var call *Instr
	for i := range funcs[1].Body {
		if funcs[1].Body[i].Op == OpCall {
			call = &funcs[1].Body[i]
		}
	}
	require.NotNil(t, call)
	require.Equal(t, 0, call.FnIdx)
	require.Len(t, call.Args, 2)
}
