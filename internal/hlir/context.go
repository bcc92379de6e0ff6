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
	"github.com/dolthub/swiss"

	"jitlang/internal/utils"
)

// binding is what a name resolves to within a scope: a local slot index
// and its type (spec.md §4.1).
type binding struct {
	index int
	typ   Type
}

// scope is one frame of the lexical scope stack: a name -> binding table
// for one `{ ... }` block or function parameter list.
type scope struct {
	names *swiss.Map[string, binding]
}

func newScope() *scope {
	return &scope{names: swiss.NewMap[string, binding](8)}
}

// Context is the Symbol Context of spec.md §4.1 (C1): a two-level name
// table, functions global and monotonic, locals lexically scoped and
// per-function. Function name lookup is backed by a swiss-table map
// rather than a builtin Go map, the same hash map family mna-nenuphar
// depends on for its own resolver.
type Context struct {
	functions   *swiss.Map[string, int]
	nextFnIndex int

	scopes []*scope
	locals []Type // current function's local-type vector
}

func NewContext() *Context {
	return &Context{functions: swiss.NewMap[string, int](16)}
}

// DefineFunction assigns name the next monotonically increasing id,
// shadowing any prior definition of the same name, and returns it.
// Function ids never reset across the program (spec.md §4.1).
func (c *Context) DefineFunction(name string) int {
	idx := c.nextFnIndex
	c.nextFnIndex++
	c.functions.Put(name, idx)
	return idx
}

// FindFunction returns the id of the most recent definition of name, or
// (0, false) if name was never defined.
func (c *Context) FindFunction(name string) (int, bool) {
	idx, ok := c.functions.Get(name)
	return idx, ok
}

// PushScope opens a new lexical scope (function entry or block entry).
func (c *Context) PushScope() {
	c.scopes = append(c.scopes, newScope())
}

// PopScope closes the innermost lexical scope. When the scope stack
// becomes empty (the outermost scope of a function just popped), the
// function-wide local-type vector is cleared, giving the next function an
// independent 0-based slot index space (spec.md §4.1's policy).
func (c *Context) PopScope() {
	utils.Assert(len(c.scopes) > 0, "PopScope on empty scope stack")
	c.scopes = c.scopes[:len(c.scopes)-1]
	if len(c.scopes) == 0 {
		c.locals = nil
	}
}

// DefineVariable appends a new local of the given type to the current
// function's local-type vector and binds name to it in the innermost
// scope, returning the new slot index. Requires a non-empty scope stack
// (spec.md §4.1: "fatal invariant violation otherwise").
func (c *Context) DefineVariable(name string, typ Type) int {
	utils.Assert(len(c.scopes) > 0, "DefineVariable requires an open scope")
	index := len(c.locals)
	c.locals = append(c.locals, typ)
	top := c.scopes[len(c.scopes)-1]
	top.names.Put(name, binding{index: index, typ: typ})
	return index
}

// FindVariable searches the scope stack from innermost outward and
// returns the nearest binding for name, or (0, Unit, false) on a miss —
// the caller decides whether that is an error.
func (c *Context) FindVariable(name string) (int, Type, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if b, ok := c.scopes[i].names.Get(name); ok {
			return b.index, b.typ, true
		}
	}
	return 0, Unit, false
}

// LocalVariables snapshots the current function's local-type vector.
func (c *Context) LocalVariables() []Type {
	out := make([]Type, len(c.locals))
	copy(out, c.locals)
	return out
}
