package mudsmoke_test

import (
	"testing"

	"github.com/ivanfetch/mudsmoke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePatternIsCaseInsensitiveAndMultiline(t *testing.T) {
	t.Parallel()
	p, err := mudsmoke.CompilePattern(`^current directory: /lib$`)
	require.NoError(t, err)
	assert.True(t, p.MatchString("> pwd\r\nCurrent Directory: /lib\n> "))
	assert.False(t, p.MatchString("Current directory: /lib/std"))
	assert.Equal(t, `^current directory: /lib$`, p.String())
}

func TestCompilePatternRejectsInvalidExpression(t *testing.T) {
	t.Parallel()
	_, err := mudsmoke.CompilePattern(`(unclosed`)
	assert.Error(t, err)
	assert.Panics(t, func() { mudsmoke.MustCompilePattern(`(unclosed`) })
}

func TestLiteralPatternQuotesMetacharacters(t *testing.T) {
	t.Parallel()
	p := mudsmoke.LiteralPattern("eval 2 + 2 (int: 4)")
	assert.True(t, p.MatchString("EVAL 2 + 2 (INT: 4)"))
	assert.False(t, p.MatchString("eval 22 (int: 4)"))
}

func TestAnyPattern(t *testing.T) {
	t.Parallel()
	p := mudsmoke.AnyPattern(
		mudsmoke.LiteralPattern("Choose a password:"),
		nil,
		mudsmoke.LiteralPattern("Enter your password:"),
	)
	assert.True(t, p.MatchString("Welcome back!\r\nEnter your password: "))
	assert.True(t, p.MatchString("Choose a password: "))
	assert.False(t, p.MatchString("Enter your name: "))

	assert.Nil(t, mudsmoke.AnyPattern())
	assert.Nil(t, mudsmoke.AnyPattern(nil, nil))
}

func TestNilPatternNeverMatches(t *testing.T) {
	t.Parallel()
	var p *mudsmoke.Pattern
	assert.False(t, p.MatchString(""))
	assert.False(t, p.MatchString("anything"))
	assert.Equal(t, "<none>", p.String())
}
