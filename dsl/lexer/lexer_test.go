package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/federator/dsl/lexer"
)

func TestTokenizeBasicStatement(t *testing.T) {
	t.Parallel()

	toks := lexer.New([]byte(`import hello_world; hello_world.print("hi");`)).Tokenize()

	require.NotEmpty(t, toks)
	assert.Equal(t, lexer.KwImport, toks[0].Kind)
	assert.Equal(t, lexer.Ident, toks[1].Kind)
	assert.Equal(t, "hello_world", toks[1].Text)
	assert.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
}

func TestTokenizeAttributes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		kind lexer.Kind
	}{
		{"outer", `#[on("L1")] let x := 1;`, lexer.Attribute},
		{"inner", `#![unchecked]`, lexer.InnerAttribute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			toks := lexer.New([]byte(tc.src)).Tokenize()
			require.NotEmpty(t, toks)
			assert.Equal(t, tc.kind, toks[0].Kind)
		})
	}
}

func TestTokenizeOperators(t *testing.T) {
	t.Parallel()

	toks := lexer.New([]byte(`i < 3 && r != 0`)).Tokenize()
	var kinds []lexer.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, lexer.Lt)
	assert.Contains(t, kinds, lexer.AndAnd)
	assert.Contains(t, kinds, lexer.Neq)
}

func TestTokenizeLineTracking(t *testing.T) {
	t.Parallel()

	toks := lexer.New([]byte("let x := 1;\nlet y := 2;")).Tokenize()
	var secondLetLine int
	seen := 0
	for _, tok := range toks {
		if tok.Kind == lexer.KwLet {
			seen++
			if seen == 2 {
				secondLetLine = tok.Line
			}
		}
	}
	assert.Equal(t, 2, secondLetLine)
}
