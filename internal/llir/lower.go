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
	"jitlang/internal/hlir"
	"jitlang/internal/utils"
)

func byteWidth(t hlir.Type) int {
	switch t {
	case hlir.I64:
		return 8
	case hlir.Boolean:
		return 1
	case hlir.Unit:
		return 0
	default:
		utils.ShouldNotReachHere()
		return 0
	}
}

// Lower runs the HLIR->LLIR pass (spec.md §4.3, C3) over a whole program.
func Lower(program *hlir.GlobalScope) []*Function {
	funcs := make([]*Function, 0, len(program.Functions))
	for _, fn := range program.Functions {
		funcs = append(funcs, lowerFunction(fn))
	}
	return funcs
}

// fnLowerer holds the per-function state of the Lowerer: the
// hlir-local-index -> virtual-register map, cleared at function end
// (spec.md §3's lifecycle rule), plus the register counter and the
// in-progress instruction list.
type fnLowerer struct {
	locals   map[int]Register
	nextReg  Register
	body     []Instr
}

func lowerFunction(fn *hlir.FunctionDefinition) *Function {
	l := &fnLowerer{locals: make(map[int]Register)}

	params := make([]int, len(fn.Parameters))
	for i, p := range fn.Parameters {
		l.locals[i] = Register(i)
		params[i] = byteWidth(p.Type)
	}
	l.nextReg = Register(len(fn.Parameters))

	l.lowerBlock(fn.Body)

	// a branch patched to the end of the body (an if that closes the
	// function) needs an instruction to land on: close the body with a bare
	// return so every target stays a valid index into Body.
	for _, in := range l.body {
		if (in.Op == OpJump || in.Op == OpJumpOnZero) && in.Target == len(l.body) {
			l.emit(Instr{Op: OpReturn, Value: NoRegister})
			break
		}
	}

	return &Function{
		Name:          fn.Name,
		IsEntryPoint:  fn.IsEntryPoint,
		Parameters:    params,
		Body:          l.body,
		RegisterCount: int(l.nextReg),
	}
}

func (l *fnLowerer) freshReg() Register {
	r := l.nextReg
	l.nextReg++
	return r
}

func (l *fnLowerer) emit(i Instr) int {
	l.body = append(l.body, i)
	return len(l.body) - 1
}

// regOf returns the virtual register holding a local's value, allocating
// one on first use (spec.md §4.3: "reg mapped from i (fresh on first
// use)").
func (l *fnLowerer) regOf(index int) Register {
	if r, ok := l.locals[index]; ok {
		return r
	}
	r := l.freshReg()
	l.locals[index] = r
	return r
}

func (l *fnLowerer) lowerBlock(b *hlir.Block) {
	for _, stmt := range b.Stmts {
		l.lowerStmt(stmt)
	}
}

func (l *fnLowerer) lowerStmt(n hlir.Node) {
	switch v := n.(type) {
	case *hlir.Block:
		l.lowerBlock(v)
	case *hlir.If:
		l.lowerIf(v)
	case *hlir.Ret:
		l.lowerReturn(v)
	case *hlir.Assignment:
		l.lowerAssignment(v)
	default:
		// an expression used as a statement; lower for effect, discard
		// the result register
		l.lowerExpr(n)
	}
}

// lowerIf implements spec.md §4.3's If rule, extended per SPEC_FULL.md §4
// to wire through the else branch using the previously-reserved Jump
// instruction:
//
//	lower cond -> Rc
//	emit JumpOnZero Rc, 0          (J)
//	lower then
//	if else present:
//	  emit Jump 0                  (E)
//	  patch J -> here (start of else)
//	  lower else
//	  patch E -> here (end of else)
//	else:
//	  patch J -> here (end of then)
func (l *fnLowerer) lowerIf(n *hlir.If) {
	cond := l.lowerExpr(n.Cond)
	jz := l.emit(Instr{Op: OpJumpOnZero, Cond: cond})
	l.lowerBlock(n.Then)
	if n.Else == nil {
		l.body[jz].Target = len(l.body)
		return
	}
	jmp := l.emit(Instr{Op: OpJump})
	l.body[jz].Target = len(l.body)
	l.lowerBlock(n.Else)
	l.body[jmp].Target = len(l.body)
}

func (l *fnLowerer) lowerReturn(n *hlir.Ret) {
	if n.Value == nil {
		l.emit(Instr{Op: OpReturn, Value: NoRegister})
		return
	}
	v := l.lowerExpr(n.Value)
	l.emit(Instr{Op: OpReturn, Value: v, HasVal: true})
}

func (l *fnLowerer) lowerAssignment(n *hlir.Assignment) {
	dst := l.lowerExpr(n.Target)
	src := l.lowerExpr(n.Value)
	l.emit(Instr{Op: OpMove, Dst: dst, Src: src})
}

// lowerExpr lowers an HLIR expression node and returns the register
// holding its value, per the table in spec.md §4.3.
func (l *fnLowerer) lowerExpr(n hlir.Node) Register {
	switch v := n.(type) {
	case *hlir.I64Literal:
		r := l.freshReg()
		l.emit(Instr{Op: OpMoveImmI64, Dst: r, Imm: v.Value})
		return r
	case *hlir.Local:
		return l.regOf(v.Index)
	case *hlir.Add:
		return l.lowerBinary(OpAdd, v.Operands())
	case *hlir.Sub:
		return l.lowerBinary(OpSub, v.Operands())
	case *hlir.Mul:
		return l.lowerBinary(OpMul, v.Operands())
	case *hlir.Div:
		return l.lowerBinary(OpDiv, v.Operands())
	case *hlir.Equals:
		return l.lowerBinary(OpEquals, v.Operands())
	case *hlir.NotEqual:
		return l.lowerBinary(OpNotEqual, v.Operands())
	case *hlir.Call:
		return l.lowerCall(v)
	case *hlir.Assignment:
		l.lowerAssignment(v)
		return NoRegister
	default:
		utils.ShouldNotReachHere()
		return NoRegister
	}
}

func (l *fnLowerer) lowerBinary(op Op, lhs, rhs hlir.Node) Register {
	lr := l.lowerExpr(lhs)
	rr := l.lowerExpr(rhs)
	dst := l.freshReg()
	l.emit(Instr{Op: op, Dst: dst, L: lr, R: rr})
	return dst
}

func (l *fnLowerer) lowerCall(c *hlir.Call) Register {
	fn, ok := c.Callee.(*hlir.Function)
	utils.Assert(ok, "Call.Callee must resolve to a Function")
	args := make([]Register, len(c.Args))
	for i, a := range c.Args {
		args[i] = l.lowerExpr(a)
	}
	dst := l.freshReg()
	l.emit(Instr{Op: OpCall, Dst: dst, FnIdx: fn.Index, Args: args})
	return dst
}
