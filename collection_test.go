package flatmapper

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func TestCollection(t *testing.T) {
	c := NewCollection()
	require.Equal(t, 0, c.Len())
	require.Equal(t, []any{}, c.Keys())
	require.Equal(t, []any{}, c.Values())

	require.True(t, c.put(2, "two"))
	require.True(t, c.put(1, "one"))
	require.False(t, c.put(2, "deux"))
	require.Equal(t, 2, c.Len())
	require.Equal(t, []any{2, 1}, c.Keys())
	require.Equal(t, []any{"two", "one"}, c.Values())

	v, ok := c.Get(2)
	require.True(t, ok)
	require.Equal(t, "two", v)
	_, ok = c.Get(3)
	require.False(t, ok)
	_, ok = c.Get([]int{1})
	require.False(t, ok)

	keys := make([]any, 0)
	for k := range c.All() {
		keys = append(keys, k)
		break
	}
	require.Equal(t, []any{2}, keys)
}

func TestCollection_Nil(t *testing.T) {
	var c *Collection
	require.Equal(t, 0, c.Len())
	require.Equal(t, []any{}, c.Keys())
	require.Equal(t, []any{}, c.Values())
	_, ok := c.Get(1)
	require.False(t, ok)
	for range c.All() {
		t.Fail()
	}
}

func TestCollection_MarshalJSON(t *testing.T) {
	c := NewCollection()
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, `[]`, string(data))

	c.put("b", map[string]any{"id": "b"})
	c.put("a", map[string]any{"id": "a"})
	data, err = json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, `[{"id":"b"},{"id":"a"}]`, string(data))

	c.put("c", func() {})
	_, err = json.Marshal(c)
	require.Error(t, err)
}

func TestValues(t *testing.T) {
	c := NewCollection()
	c.put(1, "one")
	c.put(2, "two")
	values, err := Values[string](c)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, values)

	_, err = Values[int](c)
	require.Error(t, err)
	require.Equal(t, "collection value for identifier 1 is string, not int", err.Error())
}

func TestIdentityKey(t *testing.T) {
	k, err := identityKey(nil)
	require.NoError(t, err)
	require.Nil(t, k)

	k, err = identityKey([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, "abc", k)

	k, err = identityKey(json.Number("12"))
	require.NoError(t, err)
	require.Equal(t, "12", k)

	k1, err := identityKey(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	k2, err := identityKey(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	require.Equal(t, k1, k2)
	require.NotEqual(t, "1.5", k1)

	var nilDecimal *decimal.Decimal
	k, err = identityKey(nilDecimal)
	require.NoError(t, err)
	require.Nil(t, k)

	k, err = identityKey(int64(7))
	require.NoError(t, err)
	require.Equal(t, int64(7), k)

	_, err = identityKey(map[string]any{})
	require.Error(t, err)

	_, err = identityKey(math.NaN())
	require.Error(t, err)
	require.Equal(t, "NaN is not a valid identifier", err.Error())
	_, err = identityKey(float32(math.NaN()))
	require.Error(t, err)
	k, err = identityKey(1.5)
	require.NoError(t, err)
	require.Equal(t, 1.5, k)
}

func TestCollection_DecimalIdentifiers(t *testing.T) {
	c := NewCollection()
	k, _ := identityKey(decimal.NewFromInt(1))
	c.put(k, "one")
	v, ok := c.Get(decimal.NewFromInt(1))
	require.True(t, ok)
	require.Equal(t, "one", v)
	_, ok = c.Get("1")
	require.False(t, ok)
}
