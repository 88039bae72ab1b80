package jsonpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/jsonpath"
)

func TestGetDottedPath(t *testing.T) {
	value := map[string]interface{}{
		"reading": map[string]interface{}{"value": float64(42), "unit": "C"},
	}

	v, ok, err := jsonpath.Get(value, "reading.value")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(42), v)

	_, ok, err = jsonpath.Get(value, "reading.missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHas(t *testing.T) {
	value := map[string]interface{}{"a": float64(1)}
	ok, err := jsonpath.Has(value, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = jsonpath.Has(value, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysAndValuesRequireObject(t *testing.T) {
	obj := map[string]interface{}{"a": float64(1), "b": float64(2)}
	assert.ElementsMatch(t, []string{"a", "b"}, jsonpath.Keys(obj))
	assert.ElementsMatch(t, []interface{}{float64(1), float64(2)}, jsonpath.Values(obj))

	assert.Nil(t, jsonpath.Keys([]interface{}{1, 2}))
	assert.Nil(t, jsonpath.Values("not an object"))
}

func TestParseAndStringifyRoundTrip(t *testing.T) {
	parsed, err := jsonpath.Parse(`{"value": 10, "ok": true}`)
	require.NoError(t, err)

	m := parsed.(map[string]interface{})
	assert.Equal(t, float64(10), m["value"])
	assert.Equal(t, true, m["ok"])

	s, err := jsonpath.Stringify(m)
	require.NoError(t, err)
	reparsed, err := jsonpath.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, m, reparsed)
}

func TestParseInvalidJSONErrors(t *testing.T) {
	_, err := jsonpath.Parse("{not json")
	assert.Error(t, err)
}
