package flatmapper

import (
	"encoding/json"
	"fmt"
	"github.com/shopspring/decimal"
	"reflect"
	"strconv"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// Arg returns the constructor arg at index i converted to T
//
// nil (null column) values yield the zero value of T.  Numeric values are converted between
// numeric kinds, and decimal.Decimal is produced from numeric and string values.
func Arg[T any](args Args, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("arg index %d out of range (%d args)", i, len(args))
	}
	v, err := convertValue(args[i], reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, fmt.Errorf("arg %d: %w", i, err)
	}
	if !v.IsValid() {
		return zero, nil
	}
	return v.Interface().(T), nil
}

// MustArg is the same as Arg except that it panics on error
//
// Mapper recovers such panics from constructors and returns them as a *MappingError
func MustArg[T any](args Args, i int) T {
	v, err := Arg[T](args, i)
	if err != nil {
		panic(err)
	}
	return v
}

// convertValue converts a row value to the target type - returns an invalid reflect.Value for nil
func convertValue(value any, to reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Value{}, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(to) {
		result := reflect.New(to).Elem()
		result.Set(rv)
		return result, nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().AssignableTo(to) {
		result := reflect.New(to).Elem()
		result.Set(rv.Elem())
		return result, nil
	}
	if to == decimalType {
		d, err := toDecimal(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}
	if to.Kind() == reflect.Pointer {
		elem, err := convertValue(value, to.Elem())
		if err != nil || !elem.IsValid() {
			return elem, err
		}
		ptr := reflect.New(to.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	switch tv := value.(type) {
	case decimal.Decimal:
		if isNumericKind(to.Kind()) {
			return reflect.ValueOf(tv.InexactFloat64()).Convert(to), nil
		}
	case json.Number:
		if isNumericKind(to.Kind()) {
			f, err := strconv.ParseFloat(string(tv), 64)
			if err != nil {
				return reflect.Value{}, err
			}
			if isIntKind(to.Kind()) {
				i, err := strconv.ParseInt(string(tv), 10, 64)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(i).Convert(to), nil
			}
			return reflect.ValueOf(f).Convert(to), nil
		}
	case []byte:
		if to.Kind() == reflect.String {
			return reflect.ValueOf(string(tv)).Convert(to), nil
		}
	}
	if isNumericKind(rv.Kind()) && isNumericKind(to.Kind()) {
		return rv.Convert(to), nil
	}
	if rv.Kind() == reflect.String && to.Kind() == reflect.String {
		return rv.Convert(to), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, to)
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch tv := value.(type) {
	case decimal.Decimal:
		return tv, nil
	case float64:
		return decimal.NewFromFloat(tv), nil
	case float32:
		return decimal.NewFromFloat32(tv), nil
	case int64:
		return decimal.NewFromInt(tv), nil
	case int:
		return decimal.NewFromInt(int64(tv)), nil
	case int32:
		return decimal.NewFromInt32(tv), nil
	case string:
		return decimal.NewFromString(tv)
	case []byte:
		return decimal.NewFromString(string(tv))
	case json.Number:
		return decimal.NewFromString(string(tv))
	}
	return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", value)
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	return isIntKind(k) || k == reflect.Float32 || k == reflect.Float64
}

// LinkObjects returns a LinkFunc that assigns an ObjectCollection to instances of *T as a []R
func LinkObjects[T any, R any](set func(instance *T, values []R)) LinkFunc {
	return func(instance any, collection any) error {
		inst, ok := instance.(*T)
		if !ok {
			return fmt.Errorf("cannot link objects to %T, expected %T", instance, inst)
		}
		c, ok := collection.(*Collection)
		if !ok {
			return fmt.Errorf("object collection is %T, expected *Collection", collection)
		}
		values, err := Values[R](c)
		if err != nil {
			return err
		}
		set(inst, values)
		return nil
	}
}

// LinkScalars returns a LinkFunc that assigns a ScalarCollection to instances of *T as a []V
//
// values are converted the same way as Arg converts constructor args
func LinkScalars[T any, V any](set func(instance *T, values []V)) LinkFunc {
	return func(instance any, collection any) error {
		inst, ok := instance.(*T)
		if !ok {
			return fmt.Errorf("cannot link scalars to %T, expected %T", instance, inst)
		}
		raw, ok := collection.([]any)
		if !ok {
			return fmt.Errorf("scalar collection is %T, expected []any", collection)
		}
		values, err := scalarValues[V](raw)
		if err != nil {
			return err
		}
		set(inst, values)
		return nil
	}
}

func scalarValues[V any](raw []any) ([]V, error) {
	result := make([]V, 0, len(raw))
	for i := range raw {
		v, err := Arg[V](raw, i)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
