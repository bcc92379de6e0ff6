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
package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) int64 {
	t.Helper()
	result, err := Run(src)
	require.NoError(t, err)
	return result
}

func TestReturnLiteral(t *testing.T) {
	require.EqualValues(t, 42, run(t, `fn main() { return 42; }`))
}

func TestArithmetic(t *testing.T) {
	require.EqualValues(t, 14, run(t, `fn main() { return 2 + 3 * 4; }`))
	require.EqualValues(t, 20, run(t, `fn main() { return (2 + 3) * 4; }`))
	// operators of equal precedence nest to the right, so this is 7-(3-3), not (7-3)-3.
	require.EqualValues(t, 7, run(t, `fn main() { return 7 - 3 - 3; }`))
	require.EqualValues(t, 3, run(t, `fn main() { return 10 / 3; }`))
}

func TestVariablesAndAssignment(t *testing.T) {
	src := `
fn main() {
	let x = 10;
	let y = 20;
	x = x + y;
	return x;
}`
	require.EqualValues(t, 30, run(t, src))
}

func TestIfWithoutElse(t *testing.T) {
	src := `
fn main() {
	let x = 5;
	if (x == 5) {
		return 1;
	}
	return 0;
}`
	require.EqualValues(t, 1, run(t, src))
}

func TestIfElseTakesElseBranch(t *testing.T) {
	src := `
fn main() {
	let x = 4;
	if (x == 5) {
		return 1;
	} else {
		return 2;
	}
}`
	require.EqualValues(t, 2, run(t, src))
}

func TestNotEqual(t *testing.T) {
	src := `
fn main() {
	if (1 != 2) {
		return 9;
	} else {
		return 8;
	}
}`
	require.EqualValues(t, 9, run(t, src))
}

func TestFunctionCallSingleArgument(t *testing.T) {
	src := `
fn square(n: i64) {
	return n * n;
}
fn main() {
	return square(6);
}`
	require.EqualValues(t, 36, run(t, src))
}

func TestMutualRecursion(t *testing.T) {
	src := `
fn is_even(n: i64) {
	if (n == 0) {
		return 1;
	}
	return is_odd(n - 1);
}
fn is_odd(n: i64) {
	if (n == 0) {
		return 0;
	}
	return is_even(n - 1);
}
fn main() {
	return is_even(10);
}`
	require.EqualValues(t, 1, run(t, src))
}

func TestMultiArgumentCall(t *testing.T) {
	src := `
fn add3(a: i64, b: i64, c: i64) {
	return a + b + c;
}
fn main() {
	return add3(1, 2, 3);
}`
	require.EqualValues(t, 6, run(t, src))
}

// TestStackSpilledArguments exercises the seventh-and-beyond argument path,
// which the System V ABI spills to the caller's stack instead of a
// register.
func TestStackSpilledArguments(t *testing.T) {
	src := `
fn sum8(a: i64, b: i64, c: i64, d: i64, e: i64, f: i64, g: i64, h: i64) {
	return a + b + c + d + e + f + g + h;
}
fn main() {
	return sum8(1, 2, 3, 4, 5, 6, 7, 8);
}`
	require.EqualValues(t, 36, run(t, src))
}

func TestUnknownIdentifierFails(t *testing.T) {
	_, err := Run(`fn main() { return nope; }`)
	require.Error(t, err)
}

func TestParseErrorFails(t *testing.T) {
	_, err := Run(`fn main() { return`)
	require.Error(t, err)
}

func TestMissingMainFails(t *testing.T) {
	_, err := Run(`fn notmain() { return 1; }`)
	require.Error(t, err)
}
