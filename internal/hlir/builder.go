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
package hlir

import (
	"github.com/pkg/errors"

	"jitlang/internal/ast"
)

// Semantic error sentinels (spec.md §7's failure taxonomy), wrapped with
// position/name context at the call site and compared with errors.Is in
// tests.
var (
	ErrUnknownIdentifier   = errors.New("unknown identifier")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrExpectedBoolean     = errors.New("expected Boolean")
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

const entryPointName = "main"

// Builder runs the two-pass AST->HLIR transformation of spec.md §4.2.
type Builder struct {
	ctx *Context
}

func NewBuilder() *Builder {
	return &Builder{ctx: NewContext()}
}

// Build runs DefineFunctions then Generate, the two passes of spec.md
// §4.2 over the same AST, so mutually-recursive functions can forward
// reference each other.
func (b *Builder) Build(root *ast.GlobalScope) (*GlobalScope, error) {
	b.defineFunctions(root)
	return b.generateGlobalScope(root)
}

// defineFunctions is the declare pass: register every function's name
// before generating any body.
func (b *Builder) defineFunctions(root *ast.GlobalScope) {
	for _, fn := range root.Functions {
		b.ctx.DefineFunction(fn.Name)
	}
}

func (b *Builder) generateGlobalScope(root *ast.GlobalScope) (*GlobalScope, error) {
	out := &GlobalScope{}
	for _, fn := range root.Functions {
		hfn, err := b.generateFunction(fn)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, hfn)
	}
	return out, nil
}

func (b *Builder) generateFunction(fn *ast.FunctionDefinition) (*FunctionDefinition, error) {
	b.ctx.PushScope()

	params := make([]*ParameterDefinition, 0, len(fn.Params))
	for _, p := range fn.Params {
		// every declared parameter is I64 (spec.md §4.2, §6; type
		// annotations other than i64 are rejected at parse time, see
		// SPEC_FULL.md §4)
		b.ctx.DefineVariable(p.Name, I64)
		params = append(params, &ParameterDefinition{Type: I64})
	}

	body, err := b.generateBlock(fn.Body)
	if err != nil {
		return nil, err
	}

	locals := b.ctx.LocalVariables()
	b.ctx.PopScope()

	return &FunctionDefinition{
		Name:         fn.Name,
		Body:         body,
		Parameters:   params,
		Result:       I64,
		Locals:       locals,
		IsEntryPoint: fn.Name == entryPointName,
	}, nil
}

func (b *Builder) generateBlock(s *ast.Scope) (*Block, error) {
	b.ctx.PushScope()
	block := &Block{}
	for _, stmt := range s.Stmts {
		n, err := b.generateStmt(stmt)
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, n)
	}
	b.ctx.PopScope()
	return block, nil
}

func (b *Builder) generateStmt(stmt ast.Stmt) (Node, error) {
	switch s := stmt.(type) {
	case *ast.Scope:
		return b.generateBlock(s)
	case *ast.VariableDefinition:
		return b.generateVariableDefinition(s)
	case *ast.Return:
		return b.generateReturn(s)
	case *ast.If:
		return b.generateIf(s)
	case *ast.ExprStmt:
		return b.generateExpr(s.Value)
	default:
		panic("unhandled statement kind")
	}
}

func (b *Builder) generateVariableDefinition(s *ast.VariableDefinition) (Node, error) {
	// value first, binding after: the initializer cannot reference the
	// variable being defined (spec.md §4.2).
	value, err := b.generateExpr(s.Value)
	if err != nil {
		return nil, err
	}
	index := b.ctx.DefineVariable(s.Name, value.GetType())
	return &Assignment{Target: &Local{Index: index, Type: value.GetType()}, Value: value}, nil
}

func (b *Builder) generateReturn(s *ast.Return) (Node, error) {
	if s.Value == nil {
		return &Ret{}, nil
	}
	value, err := b.generateExpr(s.Value)
	if err != nil {
		return nil, err
	}
	return &Ret{Value: value}, nil
}

func (b *Builder) generateIf(s *ast.If) (Node, error) {
	cond, err := b.generateExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	if cond.GetType() != Boolean {
		return nil, errors.Wrapf(ErrExpectedBoolean, "%s: if condition has type %s", s.Cond.Pos(), cond.GetType())
	}
	then, err := b.generateBlock(s.Then)
	if err != nil {
		return nil, err
	}
	node := &If{Cond: cond, Then: then}
	if s.Else != nil {
		elseBlock, err := b.generateBlock(s.Else)
		if err != nil {
			return nil, err
		}
		node.Else = elseBlock
	}
	return node, nil
}

func (b *Builder) generateExpr(expr ast.Expr) (Node, error) {
	switch e := expr.(type) {
	case *ast.Integer:
		return &I64Literal{Value: e.Value}, nil
	case *ast.VariableLookup:
		return b.generateVariableLookup(e)
	case *ast.BinaryOperation:
		return b.generateBinaryOperation(e)
	case *ast.Call:
		return b.generateCall(e)
	default:
		panic("unhandled expression kind")
	}
}

func (b *Builder) generateVariableLookup(v *ast.VariableLookup) (Node, error) {
	if index, typ, ok := b.ctx.FindVariable(v.Name); ok {
		return &Local{Index: index, Type: typ}, nil
	}
	if index, ok := b.ctx.FindFunction(v.Name); ok {
		return &Function{Index: index}, nil
	}
	return nil, errors.Wrapf(ErrUnknownIdentifier, "%s: %q", v.NamePos, v.Name)
}

func (b *Builder) generateBinaryOperation(bop *ast.BinaryOperation) (Node, error) {
	lhs, err := b.generateExpr(bop.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := b.generateExpr(bop.Rhs)
	if err != nil {
		return nil, err
	}
	if bop.Op == ast.OpAssignment {
		// the target of an assignment is itself a Local produced by
		// generateExpr(bop.Lhs); spec.md §3's Assignment{target, value}
		return &Assignment{Target: lhs, Value: rhs}, nil
	}
	if lhs.GetType() != rhs.GetType() {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s: %s vs %s", bop.OpPos, lhs.GetType(), rhs.GetType())
	}
	switch bop.Op {
	case ast.OpAdd:
		return NewAdd(lhs, rhs), nil
	case ast.OpSub:
		return NewSub(lhs, rhs), nil
	case ast.OpMul:
		return NewMul(lhs, rhs), nil
	case ast.OpDiv:
		return NewDiv(lhs, rhs), nil
	case ast.OpEqual:
		return NewEquals(lhs, rhs), nil
	case ast.OpNotEqual:
		return NewNotEqual(lhs, rhs), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedOperator, "%s: %s", bop.OpPos, bop.Op)
	}
}

func (b *Builder) generateCall(c *ast.Call) (Node, error) {
	callee, err := b.generateExpr(c.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]Node, 0, len(c.Args))
	for _, a := range c.Args {
		arg, err := b.generateExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &Call{Callee: callee, Args: args}, nil
}
