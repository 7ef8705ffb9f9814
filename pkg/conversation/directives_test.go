package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectivesAuthorAndTarget(t *testing.T) {
	d := ParseDirectives("_AUTHOR=A\n_TARGET=B\nhi there")
	require.NotNil(t, d)
	assert.Equal(t, "A", d.Author)
	require.NotNil(t, d.Target)
	assert.Equal(t, "B", *d.Target)
	assert.False(t, d.IsFinal())
}

func TestParseDirectivesOrderInsensitive(t *testing.T) {
	a := ParseDirectives("_TARGET=B\nhello\n_AUTHOR=A")
	b := ParseDirectives("_AUTHOR=A\n_TARGET=B\nhello")
	assert.Equal(t, b, a)
}

func TestParseDirectivesColonSeparatorAndWhitespace(t *testing.T) {
	d := ParseDirectives("  _author: Alice  \n\t_Target = Bob\nbody")
	require.NotNil(t, d)
	assert.Equal(t, "Alice", d.Author)
	require.NotNil(t, d.Target)
	assert.Equal(t, "Bob", *d.Target)
}

func TestParseDirectivesSplitsOnFirstSeparatorOnly(t *testing.T) {
	d := ParseDirectives("_AUTHOR=A\n_TARGET=B:C")
	require.NotNil(t, d)
	require.NotNil(t, d.Target)
	assert.Equal(t, "B:C", *d.Target)
}

func TestParseDirectivesFinalLine(t *testing.T) {
	d := ParseDirectives("_AUTHOR=B\n_FINAL\nbye")
	require.NotNil(t, d)
	assert.True(t, d.IsFinal())
	assert.Nil(t, d.Target)
}

func TestParseDirectivesTargetFinalSynthesizesFinal(t *testing.T) {
	d := ParseDirectives("_AUTHOR=C\n_TARGET=_FINAL\nso long")
	require.NotNil(t, d)
	assert.True(t, d.IsFinal())
	require.NotNil(t, d.Target)
	assert.Equal(t, FinalToken, *d.Target)
}

func TestParseDirectivesWithoutMarkerIsNil(t *testing.T) {
	for _, msg := range []string{
		"",
		"just a message",
		"AUTHOR=A\nTARGET=B",
		"multi\nline\nmessage = with: separators",
	} {
		assert.Nil(t, ParseDirectives(msg), msg)
	}
}

func TestParseDirectivesWithoutAuthorIsNil(t *testing.T) {
	assert.Nil(t, ParseDirectives("_TARGET=B\nhello"))
	assert.Nil(t, ParseDirectives("_FINAL\nhello"))
}

func TestParseDirectivesIgnoresUnknownKeys(t *testing.T) {
	d := ParseDirectives("_AUTHOR=A\n_MOOD=sad\nhello")
	require.NotNil(t, d)
	assert.Equal(t, &Directives{Author: "A"}, d)
}

func TestParseDirectivesLaterLinesOverride(t *testing.T) {
	d := ParseDirectives("_AUTHOR=A\n_AUTHOR=B")
	require.NotNil(t, d)
	assert.Equal(t, "B", d.Author)
}

func TestParseDirectivesRenderIsIdempotent(t *testing.T) {
	for _, msg := range []string{
		"_AUTHOR=A\n_TARGET=B\nhi",
		"_AUTHOR=B\n_FINAL\nbye",
		"_AUTHOR=B\n_FINAL=tired\nbye",
		"_AUTHOR=C\n_TARGET=_FINAL",
		"_AUTHOR=A",
		"_TARGET=A, B\n_AUTHOR=C",
	} {
		d := ParseDirectives(msg)
		require.NotNil(t, d, msg)
		again := ParseDirectives(d.Render())
		assert.Equal(t, d, again, msg)
	}
}

func TestDirectivesAddresses(t *testing.T) {
	d := ParseDirectives("_AUTHOR=A\n_TARGET=B and C")
	require.NotNil(t, d)
	assert.True(t, d.Addresses("B"))
	assert.True(t, d.Addresses("C"))
	assert.False(t, d.Addresses("D"))

	var none *Directives
	assert.False(t, none.Addresses("A"))
	assert.False(t, none.IsFinal())
}

func TestBodyStripsDirectiveLines(t *testing.T) {
	assert.Equal(t, "hello\nworld", Body("_AUTHOR=A\nhello\n  _TARGET=B\nworld"))
	assert.Equal(t, "plain", Body("plain"))
}

func TestWithDirectives(t *testing.T) {
	target := "B"
	msg := WithDirectives(&Directives{Author: "A", Target: &target}, "hi")
	assert.Equal(t, "_AUTHOR=A\n_TARGET=B\nhi", msg)
	assert.Equal(t, "hi", Body(msg))
}
