package flatmapper

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the dynamic instance built for types declared without a Go type (e.g. types loaded by Registry.LoadYAML)
//
// fields are held in param order
type Record struct {
	typeName string
	// idField is the identifier param name (empty when the type uses a type level identifier)
	idField string
	names   []string
	values  map[string]any
}

func newRecord(typeName string, idField string, names []string, args Args) *Record {
	r := &Record{
		typeName: typeName,
		idField:  idField,
		names:    names,
		values:   make(map[string]any, len(names)),
	}
	for i, name := range names {
		if i < len(args) {
			r.values[name] = args[i]
		}
	}
	return r
}

// Type returns the name of the type the record was built for
func (r *Record) Type() string {
	return r.typeName
}

// Fields returns the field names, in param order
func (r *Record) Fields() []string {
	return append(make([]string, 0, len(r.names)), r.names...)
}

// Get returns the value of the named field
//
// object collection fields are []any of *Record, scalar collection fields are []any
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// MarshalJSON marshals the record as a JSON object with fields in param order
//
// a record that is reached again while it is still being written (e.g. a self link) is written as its identifier value
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.encode(&buf, map[*Record]struct{}{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) encode(buf *bytes.Buffer, visiting map[*Record]struct{}) error {
	if _, ok := visiting[r]; ok {
		if r.idField == "" {
			return fmt.Errorf("json: encountered a cycle via %s record without an identifier param", r.typeName)
		}
		return encodeValue(buf, r.values[r.idField], visiting)
	}
	visiting[r] = struct{}{}
	defer delete(visiting, r)
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeValue(buf, r.values[name], visiting); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeValue writes v, carrying the records being written through nested records, slices and collections
func encodeValue(buf *bytes.Buffer, v any, visiting map[*Record]struct{}) error {
	switch tv := v.(type) {
	case *Record:
		if tv != nil {
			return tv.encode(buf, visiting)
		}
	case *Collection:
		if tv != nil {
			return tv.encode(buf, visiting)
		}
	case []any:
		if tv != nil {
			buf.WriteByte('[')
			for i, e := range tv {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := encodeValue(buf, e, visiting); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// RecordDescriptor builds a TypeDescriptor whose instances are *Record
//
// the descriptor's Construct and every collection param's Link are supplied
func RecordDescriptor(name string, tags []Tag, params ...Param) *TypeDescriptor {
	params = append([]Param(nil), params...)
	names := make([]string, len(params))
	idField := ""
	for i := range params {
		names[i] = params[i].Name
		if idField == "" && isIdentifierParam(params[i]) {
			idField = params[i].Name
		}
		if isCollectionParam(params[i]) && params[i].Link == nil {
			params[i].Link = recordLink(params[i].Name)
		}
	}
	return &TypeDescriptor{
		Name:   name,
		Tags:   tags,
		Params: params,
		Construct: func(args Args) (any, error) {
			return newRecord(name, idField, names, args), nil
		},
	}
}

func isCollectionParam(p Param) bool {
	for _, t := range p.Tags {
		switch t.(type) {
		case ObjectCollection, ScalarCollection:
			return true
		}
	}
	return false
}

func isIdentifierParam(p Param) bool {
	for _, t := range p.Tags {
		if _, ok := t.(Identifier); ok {
			return true
		}
	}
	return false
}

func recordLink(field string) LinkFunc {
	return func(instance any, collection any) error {
		r, ok := instance.(*Record)
		if !ok {
			return fmt.Errorf("cannot link %s to %T, expected *Record", field, instance)
		}
		switch c := collection.(type) {
		case *Collection:
			r.values[field] = c.Values()
		default:
			r.values[field] = c
		}
		return nil
	}
}
