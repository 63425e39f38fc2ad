package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompleteObjectInOneShot(t *testing.T) {
	cs := New()
	cs.Push(`{"a": 1, "b": "two", "c": [1,2,3]}`)
	cs.Close()

	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.True(t, vs.Finished())

	obj := vs.(*ObjectStream)
	assert.Equal(t, []string{"a", "b", "c"}, obj.Keys())

	val := obj.Value().(map[string]any)
	assert.Equal(t, 1.0, val["a"])
	assert.Equal(t, "two", val["b"])
	assert.Equal(t, []any{1.0, 2.0, 3.0}, val["c"])
}

func TestParseStreamedAcrossMultiplePushes(t *testing.T) {
	cs := New()
	vs, err := GetValueStream(cs)
	assert.ErrorIs(t, err, errNeedMoreData)
	_ = vs

	cs.Push(`{"name": "hel`)
	vs, err = GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.False(t, vs.Finished())

	cs.Push(`lo"}`)
	cs.Close()
	require.NoError(t, vs.Pump())
	assert.True(t, vs.Finished())

	obj := vs.(*ObjectStream)
	val := obj.Value().(map[string]any)
	assert.Equal(t, "hello", val["name"])
}

func TestPartialStringVisibleBeforeCompletion(t *testing.T) {
	cs := New()
	cs.Push(`"abc`)
	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	ss := vs.(*StringStream)
	assert.False(t, ss.Finished())
	assert.Equal(t, "abc", ss.String())

	cs.Push(`def"`)
	require.NoError(t, vs.Pump())
	assert.True(t, ss.Finished())
	assert.Equal(t, "abcdef", ss.String())
}

func TestEmptyArray(t *testing.T) {
	cs := New()
	cs.Push("[]")
	cs.Close()
	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.True(t, vs.Finished())
	assert.Equal(t, []any{}, vs.Value())
}

func TestEmptyObject(t *testing.T) {
	cs := New()
	cs.Push("{}")
	cs.Close()
	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.True(t, vs.Finished())
	assert.Equal(t, map[string]any{}, vs.Value())
}

func TestNumberRequiresDelimiterOrClose(t *testing.T) {
	cs := New()
	cs.Push("42")
	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.False(t, vs.Finished(), "ambiguous until a delimiter or close arrives")

	cs.Close()
	require.NoError(t, vs.Pump())
	assert.True(t, vs.Finished())
	assert.Equal(t, 42.0, vs.Value())
}

func TestLiteralsParse(t *testing.T) {
	for _, tc := range []struct {
		text string
		want any
	}{
		{"true", true},
		{"false", false},
		{"null", nil},
	} {
		cs := New()
		cs.Push(tc.text)
		cs.Close()
		vs, err := GetValueStream(cs)
		require.NoError(t, err)
		require.NoError(t, vs.Pump())
		assert.True(t, vs.Finished())
		assert.Equal(t, tc.want, vs.Value())
	}
}

func TestMalformedClosingWithoutCompletionIsError(t *testing.T) {
	cs := New()
	cs.Push(`{"a": 1`)
	vs, err := GetValueStream(cs)
	require.NoError(t, err)
	require.NoError(t, vs.Pump())
	assert.False(t, vs.Finished())

	cs.Close()
	err = vs.Pump()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReparsingDoesNotDuplicateAlreadyConsumedValues(t *testing.T) {
	cs := New()
	cs.Push(`{"a": 1, "b": 2}`)
	cs.Close()
	vs, _ := GetValueStream(cs)
	require.NoError(t, vs.Pump())
	require.NoError(t, vs.Pump()) // calling Pump again after Finished must be a no-op
	obj := vs.(*ObjectStream)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
}
