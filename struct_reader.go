package flatmapper

import (
	"fmt"
	"reflect"
	"strings"
)

const defaultTagName = "flat"

// UseTagName is a type that can be passed as an option to DescribeStruct
// and determines the field tag name to read field mappings from
//
// If this option is not passed, the default "flat" tag is used
type UseTagName string

// ReadOnly is a type that can be passed as an option to DescribeStruct
// and marks the described type as read-only (no collection fields permitted)
type ReadOnly bool

type structField struct {
	index []int
	typ   reflect.Type
}

// DescribeStruct builds a TypeDescriptor for struct type T by reading its field tags
//
// Every exported field is a constructor param (in field order, embedded structs flattened) named by the
// field name.  The tag value is a column name followed by optional comma separated flags:
//
//	`flat:"author_id"`          explicit column
//	`flat:",id"`                identifier (column derived from field name)
//	`flat:"author_id,id"`       identifier with explicit column
//	`flat:",objects=Book"`      collection of the described type "Book" (field must be a slice)
//	`flat:",scalars=tag_name"`  collection of values from column "tag_name" (field must be a slice)
//	`flat:"-"`                  field is ignored
//
// options can be any of Identifier (type level identifier), NameRule, ReadOnly or UseTagName
//
// Instances are constructed as *T
func DescribeStruct[T any](name string, options ...any) (*TypeDescriptor, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, newCreationError(name, "DescribeStruct can only be used with struct types", nil)
	}
	d := &TypeDescriptor{Name: name}
	tagName := defaultTagName
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Identifier:
				d.Tags = append(d.Tags, option)
			case NameRule:
				d.Tags = append(d.Tags, option)
			case ReadOnly:
				d.ReadOnly = bool(option)
			case UseTagName:
				if option != "" {
					tagName = string(option)
				}
			default:
				return nil, newCreationError(name, fmt.Sprintf("unknown option type: %T", o), nil)
			}
		}
	}
	fields := make([]structField, 0, rt.NumField())
	if err := describeFields(d, rt, nil, tagName, &fields); err != nil {
		return nil, err
	}
	d.Construct = func(args Args) (any, error) {
		ptr := reflect.New(rt)
		for i, f := range fields {
			if i >= len(args) || isCollectionParam(d.Params[i]) {
				continue
			}
			v, err := convertValue(args[i], f.typ)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", d.Params[i].Name, err)
			}
			if v.IsValid() {
				ptr.Elem().FieldByIndex(f.index).Set(v)
			}
		}
		return ptr.Interface(), nil
	}
	return d, nil
}

// MustDescribeStruct is the same as DescribeStruct except that it panics on error
func MustDescribeStruct[T any](name string, options ...any) *TypeDescriptor {
	d, err := DescribeStruct[T](name, options...)
	if err != nil {
		panic(err)
	}
	return d
}

// RegisterStruct describes struct type T (see DescribeStruct) and registers it with the registry
func RegisterStruct[T any](r *Registry, name string, options ...any) error {
	d, err := DescribeStruct[T](name, options...)
	if err != nil {
		return err
	}
	return r.Register(d)
}

func describeFields(d *TypeDescriptor, rt reflect.Type, parentIndex []int, tagName string, fields *[]structField) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		index := append(append([]int{}, parentIndex...), f.Index...)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := describeFields(d, f.Type, index, tagName, fields); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		tag, _ := f.Tag.Lookup(tagName)
		if tag == "-" {
			continue
		}
		tags, collection, err := parseFieldTag(tag)
		if err != nil {
			return newCreationError(d.Name, fmt.Sprintf("type %q field %q", d.Name, f.Name), err)
		}
		p := Param{Name: f.Name, Tags: tags}
		if collection {
			if f.Type.Kind() != reflect.Slice {
				return newCreationError(d.Name, fmt.Sprintf("type %q field %q: collection fields must be slices", d.Name, f.Name), nil)
			}
			p.Link = structLink(rt, f.Name, index, f.Type)
		}
		d.Params = append(d.Params, p)
		*fields = append(*fields, structField{index: index, typ: f.Type})
	}
	return nil
}

func parseFieldTag(tag string) (tags []Tag, collection bool, err error) {
	if tag == "" {
		return nil, false, nil
	}
	parts := strings.Split(tag, ",")
	column := strings.TrimSpace(parts[0])
	identifier := false
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		k, v, hasValue := strings.Cut(part, "=")
		switch {
		case k == "id" && !hasValue:
			identifier = true
		case k == "objects" && v != "":
			tags = append(tags, ObjectCollection{Type: v})
			collection = true
		case k == "scalars" && v != "":
			tags = append(tags, ScalarCollection{Column: v})
			collection = true
		default:
			return nil, false, fmt.Errorf("invalid tag flag %q", part)
		}
	}
	if identifier {
		tags = append(tags, Identifier{Column: column})
	} else if column != "" {
		tags = append(tags, Column{Name: column})
	}
	return tags, collection, nil
}

func structLink(rt reflect.Type, name string, index []int, fieldType reflect.Type) LinkFunc {
	return func(instance any, collection any) error {
		ptr := reflect.ValueOf(instance)
		if ptr.Kind() != reflect.Pointer || ptr.Elem().Type() != rt {
			return fmt.Errorf("cannot link field %s to %T", name, instance)
		}
		var values []any
		switch c := collection.(type) {
		case *Collection:
			values = c.Values()
		case []any:
			values = c
		default:
			return fmt.Errorf("cannot link %T to field %s", collection, name)
		}
		slice := reflect.MakeSlice(fieldType, 0, len(values))
		for _, v := range values {
			ev, err := convertValue(v, fieldType.Elem())
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			if !ev.IsValid() {
				ev = reflect.Zero(fieldType.Elem())
			}
			slice = reflect.Append(slice, ev)
		}
		ptr.Elem().FieldByIndex(index).Set(slice)
		return nil
	}
}
