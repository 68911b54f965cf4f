package callbacks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	data, err := Build("watch", "123", "2")
	require.NoError(t, err)
	assert.Equal(t, "watch:123:2", data)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "watch", parsed.Name)
	assert.Equal(t, Params{"123", "2"}, parsed.Params)
}

func TestParseStripsTelebotPrefix(t *testing.T) {
	parsed, err := Parse("\fWatch:42")
	require.NoError(t, err)
	assert.Equal(t, "watch", parsed.Name)
	assert.Equal(t, Params{"42"}, parsed.Params)
}

func TestParseNoParams(t *testing.T) {
	parsed, err := Parse("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", parsed.Name)
	assert.Empty(t, parsed.Params)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
	_, err = Parse(":oops")
	assert.Error(t, err)
}

func TestBuildRejectsDelimiterInParams(t *testing.T) {
	_, err := Build("watch", "a:b")
	assert.Error(t, err)
	_, err = Build("wat:ch", "1")
	assert.Error(t, err)
}

func TestBuildEnforcesLengthLimit(t *testing.T) {
	_, err := Build("list", strings.Repeat("x", MaxDataLen))
	assert.Error(t, err)

	data, err := Build("list", strings.Repeat("x", MaxDataLen-5))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), MaxDataLen)
}

func TestTypedParams(t *testing.T) {
	p := Params{"42", "abc"}

	n, err := p.Int(0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n64, err := p.Int64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n64)

	_, err = p.Int(1)
	assert.Error(t, err)
	_, err = p.String(2)
	assert.Error(t, err)
}
