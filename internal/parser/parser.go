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

// Package parser is a recursive-descent parser with operator-precedence
// climbing over ast.Operator's table (spec.md §3). Like the lexer, it is
// mechanical text processing (spec.md §1) — the interesting passes are
// downstream in hlir and llir.
package parser

import (
	"fmt"

	"github.com/pkg/errors"

	"jitlang/internal/ast"
	"jitlang/internal/lexer"
	"jitlang/internal/token"
)

// Error is a parse error: an unexpected token at a known position.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

type Parser struct {
	lex  *lexer.Lexer
	tok  token.Token
	next token.Token
	have bool // true when next has been filled by peek
}

func New(src string) (*Parser, error) {
	p := &Parser{lex: lexer.New(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	if p.have {
		p.tok = p.next
		p.have = false
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *Parser) peek() (token.Token, error) {
	if !p.have {
		tok, err := p.lex.Next()
		if err != nil {
			return token.Token{}, err
		}
		p.next = tok
		p.have = true
	}
	return p.next, nil
}

func (p *Parser) expect(k token.Kind) error {
	if p.tok.Kind != k {
		return errors.WithStack(&Error{Pos: p.tok.Pos, Msg: fmt.Sprintf("expected %s, got %s", k, p.tok.Kind)})
	}
	return p.advance()
}

// ParseProgram parses a whole source file into a GlobalScope, the root of
// the untyped AST that hlir.Builder consumes.
func ParseProgram(src string) (*ast.GlobalScope, error) {
	p, err := New(src)
	if err != nil {
		return nil, err
	}
	root := &ast.GlobalScope{}
	for p.tok.Kind != token.EOF {
		fn, err := p.parseFunctionDefinition()
		if err != nil {
			return nil, err
		}
		root.Functions = append(root.Functions, fn)
	}
	return root, nil
}

func (p *Parser) parseFunctionDefinition() (*ast.FunctionDefinition, error) {
	pos := p.tok.Pos
	if err := p.expect(token.KW_FN); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.IDENT {
		return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: "expected function name"})
	}
	name := p.tok.Lexeme
	if err := p.advance(); err != nil {
		return nil, err
	}
	params, err := p.parseParameters()
	if err != nil {
		return nil, err
	}
	body, err := p.parseScope()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDefinition{FnPos: pos, Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseParameters() ([]*ast.ParameterDefinition, error) {
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []*ast.ParameterDefinition
	for p.tok.Kind != token.RPAREN {
		if len(params) > 0 {
			if err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind != token.IDENT {
			return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: "expected parameter name"})
		}
		namePos := p.tok.Pos
		name := p.tok.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		if p.tok.Kind != token.IDENT {
			return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: "expected parameter type"})
		}
		typ := p.tok.Lexeme
		// spec.md §6: only i64 parameters are recognized; completion in
		// SPEC_FULL.md §4 turns "ignored" into "rejected" for anything else.
		if typ != "i64" {
			return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: fmt.Sprintf("unsupported parameter type %q, only i64 is recognized", typ)})
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		params = append(params, &ast.ParameterDefinition{NamePos: namePos, Name: name, Type: typ})
	}
	return params, p.advance()
}

func (p *Parser) parseScope() (*ast.Scope, error) {
	pos := p.tok.Pos
	if err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	scope := &ast.Scope{BracePos: pos}
	for p.tok.Kind != token.RBRACE {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		scope.Stmts = append(scope.Stmts, stmt)
	}
	return scope, p.advance()
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.tok.Kind {
	case token.LBRACE:
		return p.parseScope()
	case token.KW_LET:
		return p.parseVariableDefinition()
	case token.KW_RETURN:
		return p.parseReturn()
	case token.KW_IF:
		return p.parseIf()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseVariableDefinition() (ast.Stmt, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume `let`
		return nil, err
	}
	if p.tok.Kind != token.IDENT {
		return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: "expected identifier after let"})
	}
	name := p.tok.Lexeme
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.VariableDefinition{LetPos: pos, Name: name, Value: value}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume `return`
		return nil, err
	}
	var value ast.Expr
	if p.tok.Kind != token.SEMICOLON {
		v, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		value = v
	}
	if err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Return{RetPos: pos, Value: value}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume `if`
		return nil, err
	}
	cond, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	then, err := p.parseScope()
	if err != nil {
		return nil, err
	}
	node := &ast.If{IfPos: pos, Cond: cond, Then: then}
	if p.tok.Kind == token.KW_ELSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elseScope, err := p.parseScope()
		if err != nil {
			return nil, err
		}
		node.Else = elseScope
	}
	return node, nil
}

func (p *Parser) parseExprStatement() (ast.Stmt, error) {
	expr, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Value: expr}, nil
}

// parseExpression implements precedence climbing per spec.md §3:
// associativity is right-recursive, i.e. an operator continues parsing the
// right-hand side for any following operator whose precedence is >= its
// own, not just strictly greater.
func (p *Parser) parseExpression(minPrec int) (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ast.OperatorFromToken(p.tok.Kind)
		if !ok || op.Precedence() < minPrec {
			return left, nil
		}
		opPos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpression(op.Precedence())
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{OpPos: opPos, Lhs: left, Op: op, Rhs: right}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.Kind {
	case token.INT:
		pos := p.tok.Pos
		var value int64
		for _, c := range p.tok.Lexeme {
			value = value*10 + int64(c-'0')
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Integer{IntPos: pos, Value: value}, nil
	case token.IDENT:
		pos := p.tok.Pos
		name := p.tok.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		lookup := &ast.VariableLookup{NamePos: pos, Name: name}
		if p.tok.Kind == token.LPAREN {
			return p.parseCall(pos, lookup)
		}
		return lookup, nil
	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, errors.WithStack(&Error{Pos: p.tok.Pos, Msg: fmt.Sprintf("unexpected token %s in expression", p.tok.Kind)})
	}
}

func (p *Parser) parseCall(pos token.Pos, callee ast.Expr) (ast.Expr, error) {
	if err := p.advance(); err != nil { // consume `(`
		return nil, err
	}
	var args []ast.Expr
	for p.tok.Kind != token.RPAREN {
		if len(args) > 0 {
			if err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if err := p.advance(); err != nil { // consume `)`
		return nil, err
	}
	return &ast.Call{CallPos: pos, Callee: callee, Args: args}, nil
}
