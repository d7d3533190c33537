// Package neo4jrows adapts Neo4j query results into flatmapper row sequences
//
// Node, relationship and map values are flattened into one column per property, named
// "<key><separator><property>" - so `RETURN a, b` yields columns such as "a_id", "a_name", "b_id"
package neo4jrows

import (
	"context"
	"fmt"
	"github.com/go-andiamo/flatmapper"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"iter"
)

// DefaultSeparator is the separator used between a record key and a property name
const DefaultSeparator = "_"

// Separator is an option that sets the separator used between a record key and a property name
type Separator string

// Properties is an option naming the properties expected for record keys (record key -> property names)
//
// a null value under a listed key (e.g. an OPTIONAL MATCH that found nothing) yields a null column for each
// property - so the mapper sees a null identifier rather than a missing one
type Properties map[string][]string

// Cursor is the part of neo4j.ResultWithContext used to stream records
type Cursor interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

var _ Cursor = (neo4j.ResultWithContext)(nil)

// Records adapts already collected records into a row sequence
func Records(records []*neo4j.Record, options ...any) iter.Seq2[flatmapper.Row, error] {
	f, err := newFlattener(options)
	return func(yield func(flatmapper.Row, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for _, record := range records {
			if !yield(f.flatten(record), nil) {
				return
			}
		}
	}
}

// Stream adapts a cursor into a row sequence - records are read as the sequence is consumed
func Stream(ctx context.Context, cursor Cursor, options ...any) iter.Seq2[flatmapper.Row, error] {
	f, err := newFlattener(options)
	return func(yield func(flatmapper.Row, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for cursor.Next(ctx) {
			if !yield(f.flatten(cursor.Record()), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("neo4j: failed to read results: %w", err))
		}
	}
}

// Run runs the cypher query in the session and streams the results
func Run(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any, options ...any) iter.Seq2[flatmapper.Row, error] {
	return func(yield func(flatmapper.Row, error) bool) {
		result, err := session.Run(ctx, cypher, params)
		if err != nil {
			yield(nil, fmt.Errorf("neo4j: query execution failed: %w", err))
			return
		}
		for row, err := range Stream(ctx, result, options...) {
			if !yield(row, err) {
				return
			}
		}
	}
}

// ExecuteQuery executes the cypher query with the driver (collecting all records) and returns the results as a row sequence
func ExecuteQuery(ctx context.Context, driver neo4j.DriverWithContext, cypher string, params map[string]any, options ...any) (iter.Seq2[flatmapper.Row, error], error) {
	res, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("neo4j: query execution failed: %w", err)
	}
	return Records(res.Records, options...), nil
}

// Flatten converts a record into a row
func Flatten(record *neo4j.Record, sep string) flatmapper.Row {
	return (&flattener{sep: sep}).flatten(record)
}

type flattener struct {
	sep   string
	props Properties
}

func newFlattener(options []any) (*flattener, error) {
	f := &flattener{sep: DefaultSeparator}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Separator:
				f.sep = string(option)
			case Properties:
				f.props = option
			default:
				return nil, fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	return f, nil
}

func (f *flattener) flatten(record *neo4j.Record) flatmapper.Row {
	result := flatmapper.Row{}
	if record == nil {
		return result
	}
	for i, key := range record.Keys {
		if i < len(record.Values) {
			f.flattenValue(result, key, record.Values[i])
		}
	}
	return result
}

func (f *flattener) flattenValue(result flatmapper.Row, key string, value any) {
	sep := f.sep
	switch v := value.(type) {
	case dbtype.Node:
		for prop, propVal := range v.Props {
			result[key+sep+prop] = propVal
		}
		result[key+sep+"labels"] = v.Labels
		result[key+sep+"elementId"] = v.ElementId
	case dbtype.Relationship:
		for prop, propVal := range v.Props {
			result[key+sep+prop] = propVal
		}
		result[key+sep+"type"] = v.Type
		result[key+sep+"elementId"] = v.ElementId
	case map[string]any:
		for k, val := range v {
			result[key+sep+k] = val
		}
	case nil:
		if props, ok := f.props[key]; ok {
			for _, prop := range props {
				result[key+sep+prop] = nil
			}
			return
		}
		result[key] = nil
	default:
		result[key] = v
	}
}
