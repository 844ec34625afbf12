package nominal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapLiteralExplicitKeys(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate(`{ "zero" -> 0, "one" -> 1, two := 2 }.two`)
	require.NoError(t, err)
	require.Equal(t, 2.0, v.AsNumber())
}

// TestMapLiteralPositionalCounterSkipsExplicitItems pins the parser's
// positional-key rule (spec §4.6: "the implicit counter advances at
// each positional item"): an explicitly keyed item must not consume a
// position, so `b` below lands at index 1, not 2.
func TestMapLiteralPositionalCounterSkipsExplicitItems(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate(`m := { "a", "x" -> 99, "b" }, m[1]`)
	require.NoError(t, err)
	require.True(t, v.IsInternedString())
	content, ok := s.stringContent(v)
	require.True(t, ok)
	require.Equal(t, "b", content)
}

// TestColonCallStopsAtNewline pins spec §4.5/§4.6's rule that a
// colon-call's argument list terminates at a newline, even when the
// following line begins with a token that could otherwise parse as
// another argument.
func TestColonCallStopsAtNewline(t *testing.T) {
	s := NewState()
	installTestIf(s)
	v, err := s.Evaluate("f := [ a b | if: (b == nil) [ a ] [ a + b ] ]\ng := 9\nf: 1\ng")
	require.NoError(t, err)
	require.Equal(t, 9.0, v.AsNumber(), "`f: 1` must not swallow `g` from the next line as a second argument")
}

func TestUnaryMinusForbidsTrailingWhitespace(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate("- 1")
	require.Error(t, err)
}

func TestCommentsAreSkipped(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate("1 + 1 -- this is a comment\n{- a block comment -} + 0")
	require.NoError(t, err)
	require.Equal(t, 2.0, v.AsNumber())
}

func TestFunctionLiteralZeroParams(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate("f := [ 1 + 1 ], f:")
	require.NoError(t, err)
	require.Equal(t, 2.0, v.AsNumber())
}

// TestNewlineSeparatesTopLevelExprs pins spec §4.6's grammar rule that
// Exprs accepts a bare newline as an alternative to ',' between
// statements, with no comma required.
func TestNewlineSeparatesTopLevelExprs(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate("a := 1\nb := 2\na + b")
	require.NoError(t, err)
	require.Equal(t, 3.0, v.AsNumber())
}

// TestNewlineBeforeClosingBraceIsNotASeparator makes sure trailing
// whitespace before a closing '}' does not make the parser expect one
// more item.
func TestNewlineBeforeClosingBraceIsNotASeparator(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate("{\n  1,\n  2\n}[1]")
	require.NoError(t, err)
	require.Equal(t, 2.0, v.AsNumber())
}

func TestMaxParamCountEnforced(t *testing.T) {
	s := NewState()
	params := "a b c d e f g h i j k l m n o p q"
	_, err := s.Evaluate("[ " + params + " | 1 ]")
	require.Error(t, err, "17 parameters exceeds the spec's 16-parameter limit")
}
