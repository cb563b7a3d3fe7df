package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsOf(tokens []token) []tokenKind {
	out := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.kind
	}
	return out
}

func TestTokenizeDeclaration(t *testing.T) {
	tokens := newTokenizer("c : Clock at (400, 300) // comment", "test.agl").tokenize()
	assert.Equal(t, []tokenKind{
		identifier, colon, identifier, atKeyword,
		leftParen, numberLiteral, comma, numberLiteral, rightParen,
	}, kindsOf(tokens))
	assert.Equal(t, "c", tokens[0].payload)
	assert.Equal(t, "Clock", tokens[2].payload)
	assert.Equal(t, "400", tokens[5].payload)
}

func TestTokenizeModelDeclaration(t *testing.T) {
	tokens := newTokenizer("Clock :: { angle : Number = 0 }", "test.agl").tokenize()
	assert.Equal(t, []tokenKind{
		identifier, doubleColon, leftBrace,
		identifier, colon, identifier, assign, numberLiteral,
		rightBrace,
	}, kindsOf(tokens))
}

func TestTokenizeTimeLiterals(t *testing.T) {
	tokens := newTokenizer("50ms 2s 1.5s", "test.agl").tokenize()
	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		assert.Equal(t, timeLiteral, tok.kind)
	}
	assert.Equal(t, "50", tokens[0].payload)
	assert.Equal(t, "2000", tokens[1].payload)
	assert.Equal(t, "1500", tokens[2].payload)
}

func TestTokenizePolarLiteral(t *testing.T) {
	tokens := newTokenizer("90:10", "test.agl").tokenize()
	assert.Equal(t, []tokenKind{numberLiteral, colon, numberLiteral}, kindsOf(tokens))
}

func TestTokenizeRange(t *testing.T) {
	// the range dots must not be eaten as a decimal point
	tokens := newTokenizer("0..10..3", "test.agl").tokenize()
	assert.Equal(t, []tokenKind{
		numberLiteral, dotdot, numberLiteral, dotdot, numberLiteral,
	}, kindsOf(tokens))
	assert.Equal(t, "10", tokens[2].payload)
}

func TestTokenizeOperators(t *testing.T) {
	tokens := newTokenizer("a <= b and c != d or not e", "test.agl").tokenize()
	assert.Equal(t, []tokenKind{
		identifier, leq, identifier, andKeyword,
		identifier, neq, identifier, orKeyword,
		notKeyword, identifier,
	}, kindsOf(tokens))
}

func TestTokenizeString(t *testing.T) {
	tokens := newTokenizer(`title = "Cl\"ock"`, "test.agl").tokenize()
	require.Len(t, tokens, 3)
	assert.Equal(t, stringLiteral, tokens[2].kind)
	assert.Equal(t, `Cl"ock`, tokens[2].payload)
}

func TestTokenPositions(t *testing.T) {
	tokens := newTokenizer("a = 1\nb = 2", "test.agl").tokenize()
	require.Len(t, tokens, 6)
	assert.Equal(t, 1, tokens[0].pos.line)
	assert.Equal(t, 2, tokens[3].pos.line)
	assert.Equal(t, "test.agl", tokens[3].pos.filename)
}

func TestTokenizeCommentsSkipped(t *testing.T) {
	tokens := newTokenizer("// whole line\na = 1 // trailing\n// another", "t.agl").tokenize()
	assert.Equal(t, []tokenKind{identifier, assign, numberLiteral}, kindsOf(tokens))
}
