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

// Package hlir is the typed high-level IR: a tree mirroring the source
// structure with every name resolved and every node's value type
// statically known (spec.md §3-4.2). This is one of the three core passes
// (spec.md §1, §2's C1/C2).
package hlir

import "jitlang/internal/utils"

// Type is the closed value-type enumeration from spec.md §3.
type Type int

const (
	Unit Type = iota
	I64
	Boolean
)

func (t Type) String() string {
	switch t {
	case Unit:
		return "unit"
	case I64:
		return "i64"
	case Boolean:
		return "bool"
	default:
		return "?"
	}
}

// Node is any HLIR tree node. GetType implements spec.md §3's
// statically-derivable value type rule.
type Node interface {
	GetType() Type
}

// -----------------------------------------------------------------------------
// Program structure

type GlobalScope struct {
	Functions []*FunctionDefinition
}

func (*GlobalScope) GetType() Type { return Unit }

type FunctionDefinition struct {
	Name         string
	Body         *Block
	Parameters   []*ParameterDefinition
	Result       Type // result type; the builder sets I64 for every function, whether or not its body returns a value
	Locals       []Type
	IsEntryPoint bool
}

func (*FunctionDefinition) GetType() Type { return Unit }

type ParameterDefinition struct {
	Type Type
}

func (p *ParameterDefinition) GetType() Type { return p.Type }

// -----------------------------------------------------------------------------
// Statements (value type is always Unit)

type Block struct {
	Stmts []Node
}

func (*Block) GetType() Type { return Unit }

type If struct {
	Cond Node
	Then *Block
	Else *Block // nil when there is no else clause
}

func (*If) GetType() Type { return Unit }

type Ret struct {
	Value Node // nil for a bare return
}

func (*Ret) GetType() Type { return Unit }

type Assignment struct {
	Target Node // Local
	Value  Node
}

func (*Assignment) GetType() Type { return Unit }

// -----------------------------------------------------------------------------
// Expressions

type Call struct {
	Callee Node // Function
	Args   []Node
}

func (*Call) GetType() Type { return I64 }

// binary is the shared shape of Add/Sub/Mul/Div/Equals/NotEqual; each
// variant below is a distinct type so the lowerer can switch on it, per
// spec.md §3's tagged-variant HLIR node set.
type binary struct {
	L, R Node
}

type Add struct{ binary }
type Sub struct{ binary }
type Mul struct{ binary }
type Div struct{ binary }

func NewAdd(l, r Node) *Add { return &Add{binary{l, r}} }
func NewSub(l, r Node) *Sub { return &Sub{binary{l, r}} }
func NewMul(l, r Node) *Mul { return &Mul{binary{l, r}} }
func NewDiv(l, r Node) *Div { return &Div{binary{l, r}} }

// GetType for Add/Sub/Mul/Div propagates the (invariant-equal) operand
// type, per spec.md §3: "arithmetic propagates operand type".
func (a *Add) GetType() Type {
	utils.Assert(a.L.GetType() == a.R.GetType(), "arithmetic operand type mismatch")
	return a.L.GetType()
}
func (s *Sub) GetType() Type {
	utils.Assert(s.L.GetType() == s.R.GetType(), "arithmetic operand type mismatch")
	return s.L.GetType()
}
func (m *Mul) GetType() Type {
	utils.Assert(m.L.GetType() == m.R.GetType(), "arithmetic operand type mismatch")
	return m.L.GetType()
}
func (d *Div) GetType() Type {
	utils.Assert(d.L.GetType() == d.R.GetType(), "arithmetic operand type mismatch")
	return d.L.GetType()
}

func (a *Add) Operands() (Node, Node) { return a.L, a.R }
func (s *Sub) Operands() (Node, Node) { return s.L, s.R }
func (m *Mul) Operands() (Node, Node) { return m.L, m.R }
func (d *Div) Operands() (Node, Node) { return d.L, d.R }

type Equals struct{ binary }
type NotEqual struct{ binary }

func NewEquals(l, r Node) *Equals     { return &Equals{binary{l, r}} }
func NewNotEqual(l, r Node) *NotEqual { return &NotEqual{binary{l, r}} }

func (*Equals) GetType() Type   { return Boolean }
func (*NotEqual) GetType() Type { return Boolean }

func (e *Equals) Operands() (Node, Node)   { return e.L, e.R }
func (n *NotEqual) Operands() (Node, Node) { return n.L, n.R }

type I64Literal struct{ Value int64 }

func (*I64Literal) GetType() Type { return I64 }

// Function references a function by its pre-declared index (spec.md §4.2's
// declare pass).
type Function struct{ Index int }

func (*Function) GetType() Type { return I64 }

// Local references a local variable (or parameter) by its per-function
// slot index.
type Local struct {
	Index int
	Type  Type
}

func (l *Local) GetType() Type { return l.Type }
