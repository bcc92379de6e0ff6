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
package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jitlang/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexFunctionSignature(t *testing.T) {
	toks := scanAll(t, "fn add(a: i64, b: i64) { return a + b; }")
	require.Equal(t, []token.Kind{
		token.KW_FN, token.IDENT, token.LPAREN,
		token.IDENT, token.COLON, token.IDENT, token.COMMA,
		token.IDENT, token.COLON, token.IDENT, token.RPAREN,
		token.LBRACE, token.KW_RETURN, token.IDENT, token.PLUS, token.IDENT,
		token.SEMICOLON, token.RBRACE, token.EOF,
	}, kinds(toks))
}

func TestLexTwoCharOperators(t *testing.T) {
	toks := scanAll(t, "a == b != c")
	require.Equal(t, []token.Kind{token.IDENT, token.EQ, token.IDENT, token.NE, token.IDENT, token.EOF}, kinds(toks))
}

func TestLexSkipsLineComments(t *testing.T) {
	toks := scanAll(t, "let x = 1; // trailing comment\nlet y = 2;")
	require.Equal(t, []token.Kind{
		token.KW_LET, token.IDENT, token.ASSIGN, token.INT, token.SEMICOLON,
		token.KW_LET, token.IDENT, token.ASSIGN, token.INT, token.SEMICOLON,
		token.EOF,
	}, kinds(toks))
}

func TestLexTracksPosition(t *testing.T) {
	toks := scanAll(t, "let x = 1;\nlet y = 2;")
	require.Equal(t, 1, toks[0].Pos.Line)
	// the second `let` starts the second line
	var secondLet token.Token
	for _, tk := range toks {
		if tk.Kind == token.KW_LET && tk.Pos.Line == 2 {
			secondLet = tk
		}
	}
	require.Equal(t, 2, secondLet.Pos.Line)
}

func TestLexInvalidByte(t *testing.T) {
	l := New("let x = 1 $ 2;")
	for {
		tok, err := l.Next()
		if err != nil {
			var lexErr *Error
			require.ErrorAs(t, err, &lexErr)
			return
		}
		if tok.Kind == token.EOF {
			t.Fatal("expected a lexer error before EOF")
		}
	}
}
