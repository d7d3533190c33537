package flatmapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"iter"
	"math"
	"reflect"
)

// Collection is an insertion ordered map of instances keyed by identifier value
//
// it is the result of Mapper.Map/Mapper.Hydrate and the collection passed to ObjectCollection link funcs
type Collection struct {
	keys   []any
	values map[any]any
}

// NewCollection creates a new empty Collection
func NewCollection() *Collection {
	return &Collection{values: map[any]any{}}
}

// Len returns the number of entries
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns the identifier keys in insertion order
func (c *Collection) Keys() []any {
	if c == nil {
		return []any{}
	}
	return append(make([]any, 0, len(c.keys)), c.keys...)
}

// Values returns the instances in insertion order
func (c *Collection) Values() []any {
	if c == nil {
		return []any{}
	}
	result := make([]any, len(c.keys))
	for i, k := range c.keys {
		result[i] = c.values[k]
	}
	return result
}

// Get returns the instance for the given identifier value
func (c *Collection) Get(id any) (any, bool) {
	if c == nil {
		return nil, false
	}
	key, err := identityKey(id)
	if err != nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// All returns an iterator over the identifier keys and instances, in insertion order
func (c *Collection) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		if c == nil {
			return
		}
		for _, k := range c.keys {
			if !yield(k, c.values[k]) {
				return
			}
		}
	}
}

// put adds the instance if the key is not already present - returns false if it was present
func (c *Collection) put(key any, value any) bool {
	if _, ok := c.values[key]; ok {
		return false
	}
	c.keys = append(c.keys, key)
	c.values[key] = value
	return true
}

// MarshalJSON marshals the collection as an array of its values
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encode(&buf, map[*Record]struct{}{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Collection) encode(buf *bytes.Buffer, visiting map[*Record]struct{}) error {
	buf.WriteByte('[')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, c.values[k], visiting); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// Values returns the values of a Collection as a typed slice
//
// errors if any value is not a T
func Values[T any](c *Collection) ([]T, error) {
	result := make([]T, 0, c.Len())
	for k, v := range c.All() {
		tv, ok := v.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("collection value for identifier %v is %T, not %T", k, v, zero)
		}
		result = append(result, tv)
	}
	return result, nil
}

// identityKey normalises an identifier value into a comparable map key
func identityKey(v any) (any, error) {
	switch tv := v.(type) {
	case []byte:
		return string(tv), nil
	case decimal.Decimal:
		return decimalKey(tv.String()), nil
	case *decimal.Decimal:
		if tv == nil {
			return nil, nil
		}
		return decimalKey(tv.String()), nil
	case json.Number:
		return string(tv), nil
	case float64:
		if math.IsNaN(tv) {
			return nil, errors.New("NaN is not a valid identifier")
		}
	case float32:
		if math.IsNaN(float64(tv)) {
			return nil, errors.New("NaN is not a valid identifier")
		}
	}
	if v == nil {
		return nil, nil
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil, fmt.Errorf("identifier value of type %T is not comparable", v)
	}
	return v, nil
}

// decimalKey keeps decimal identifiers distinct from string identifiers with the same text
type decimalKey string
