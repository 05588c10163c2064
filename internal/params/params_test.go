package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_GlobalWins(t *testing.T) {
	stage := New("attribute", "tag", "value", "x", "limit", 10)
	global := New("extra", true, "value", "y")

	merged := Merge(stage, global)

	assert.Equal(t, []string{"attribute", "value", "limit", "extra"}, merged.Keys())
	assert.Equal(t, "y", merged.String("value", ""))
	assert.Equal(t, "tag", merged.String("attribute", ""))

	// inputs untouched
	assert.Equal(t, "x", stage.String("value", ""))
	assert.False(t, stage.Has("extra"))
}

func TestMerge_NilInputs(t *testing.T) {
	assert.Equal(t, 0, Merge(nil, nil).Len())
	assert.Equal(t, []string{"a"}, Merge(nil, New("a", 1)).Keys())
	assert.Equal(t, []string{"a"}, Merge(New("a", 1), nil).Keys())
}

func TestSet_KeepsPosition(t *testing.T) {
	p := New("a", 1, "b", 2)
	p.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, p.Keys())
	v, _ := p.Get("a")
	assert.Equal(t, 3, v)
}

func TestGetters(t *testing.T) {
	p := New("n", "12", "f", 2, "b", "true", "d", "250ms", "ms", 1500, "bad", "x")

	n, err := p.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	f, err := p.Float("f", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	b, err := p.Bool("b", false)
	require.NoError(t, err)
	assert.True(t, b)

	d, err := p.Duration("d", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = p.Duration("ms", 0)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	def, err := p.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, def)

	_, err = p.Int("bad", 0)
	assert.Error(t, err)
}

func TestFromMap_Order(t *testing.T) {
	p := FromMap(map[string]any{"b": 1, "a": 2, "d": 4, "c": 3}, "c", "a")
	assert.Equal(t, []string{"c", "a", "b", "d"}, p.Keys())
}
