package flatmapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/shopspring/decimal"
	"iter"
	"reflect"
	"strconv"
	"strings"
)

// ColumnScanner is a func that can be used to read the value of a specific column
type ColumnScanner func(src any) (value any, err error)

// ColumnScanners is an option that can be passed to NewMapper (or SQLRows) to read specific columns with a ColumnScanner
type ColumnScanners map[string]ColumnScanner

// BoolColumn is a ColumnScanner that can be used to convert a column to a boolean value
//
// Particularly useful for MySql which only supports BOOL columns as TINYINT
func BoolColumn(src any) (any, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("type %T is not a bool", src)
}

// SQLRows adapts *sql.Rows into a row sequence that can be passed to Mapper.Hydrate
//
// options can be any of UseDecimals (default true) or ColumnScanners - any other option is yielded as an error
//
// the caller remains responsible for closing rows
func SQLRows(rows *sql.Rows, options ...any) iter.Seq2[Row, error] {
	useDecimals := true
	var scanners ColumnScanners
	var optionErr error
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case UseDecimals:
				useDecimals = bool(option)
			case ColumnScanners:
				scanners = option
			default:
				optionErr = fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	return func(yield func(Row, error) bool) {
		if optionErr != nil {
			yield(nil, optionErr)
			return
		}
		info, err := newColumnsInfo(rows, useDecimals, scanners)
		if err != nil {
			yield(nil, err)
			return
		}
		cr := info.reader()
		for rows.Next() {
			if err = rows.Scan(cr.scanArgs...); err != nil {
				yield(nil, err)
				return
			}
			row := make(Row, cr.count)
			for i, name := range cr.names {
				row[name] = cr.values[i]
			}
			if !yield(row, nil) {
				return
			}
		}
		if err = rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

type columnsInfo struct {
	count       int
	names       []string
	scanTypes   []reflect.Type
	dbTypes     []string
	useDecimals bool
	scanners    ColumnScanners
}

type columnsReader struct {
	count    int
	names    []string
	values   []any
	scanArgs []any
}

func newColumnsInfo(rows *sql.Rows, useDecimals bool, scanners ColumnScanners) (result *columnsInfo, err error) {
	var cts []*sql.ColumnType
	if cts, err = rows.ColumnTypes(); err == nil {
		count := len(cts)
		result = &columnsInfo{
			count:       count,
			names:       make([]string, count),
			scanTypes:   make([]reflect.Type, count),
			dbTypes:     make([]string, count),
			useDecimals: useDecimals,
			scanners:    scanners,
		}
		for i, ct := range cts {
			result.names[i] = ct.Name()
			result.scanTypes[i] = ct.ScanType()
			result.dbTypes[i] = ct.DatabaseTypeName()
		}
	}
	return result, err
}

func (ci *columnsInfo) reader() *columnsReader {
	r := &columnsReader{
		count:    ci.count,
		values:   make([]any, ci.count),
		scanArgs: make([]any, ci.count),
		names:    ci.names,
	}
	for i := 0; i < ci.count; i++ {
		r.scanArgs[i] = ci.buildScanner(r, i)
	}
	return r
}

func (ci *columnsInfo) buildScanner(cr *columnsReader, index int) sql.Scanner {
	if s, ok := ci.scanners[ci.names[index]]; ok && s != nil {
		return &customColumnScanner{
			columns: cr,
			index:   index,
			scanner: s,
		}
	}
	dbType := ""
	if index < len(ci.dbTypes) {
		dbType = ci.dbTypes[index]
	}
	switch dbType {
	case "JSON", "JSONB":
		return &jsonColumnScanner{
			columns: cr,
			index:   index,
		}
	case "DECIMAL", "FLOAT", "DOUBLE", "NUMERIC":
		if ci.useDecimals {
			return &decimalColumnScanner{
				columns: cr,
				index:   index,
			}
		}
	default:
		if ci.useDecimals && strings.HasPrefix(dbType, "FLOAT") {
			return &decimalColumnScanner{
				columns: cr,
				index:   index,
			}
		}
	}
	if index < len(ci.scanTypes) && ci.scanTypes[index] != nil {
		v := reflect.New(ci.scanTypes[index]).Interface()
		switch v.(type) {
		case *string, *sql.NullString, *[]byte, *sql.RawBytes:
			return &stringColumnScanner{
				columns: cr,
				index:   index,
			}
		case *float32, *float64, *sql.NullFloat64:
			if ci.useDecimals {
				return &decimalColumnScanner{
					columns: cr,
					index:   index,
				}
			}
		}
	}
	return &rawColumnScanner{
		columns: cr,
		index:   index,
	}
}

type customColumnScanner struct {
	columns *columnsReader
	index   int
	scanner ColumnScanner
}

func (c *customColumnScanner) Scan(src any) error {
	v, err := c.scanner(src)
	if err == nil {
		c.columns.values[c.index] = v
	}
	return err
}

type rawColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *rawColumnScanner) Scan(src any) error {
	if b, ok := src.([]byte); ok {
		// drivers may reuse the buffer on the next row
		src = append([]byte{}, b...)
	}
	c.columns.values[c.index] = src
	return nil
}

type stringColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *stringColumnScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		c.columns.values[c.index] = string(v)
	default:
		c.columns.values[c.index] = v
	}
	return nil
}

type decimalColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *decimalColumnScanner) Scan(src any) error {
	var err error
	switch v := src.(type) {
	case float32:
		c.columns.values[c.index] = decimal.NewFromFloat(float64(v))
	case float64:
		c.columns.values[c.index] = decimal.NewFromFloat(v)
	case int64:
		c.columns.values[c.index] = decimal.New(v, 0)
	case []byte:
		if len(v) > 2 && v[0] == '"' && v[len(v)-1] == '"' {
			c.columns.values[c.index], err = decimal.NewFromString(string(v[1 : len(v)-1]))
		} else {
			c.columns.values[c.index], err = decimal.NewFromString(string(v))
		}
	case string:
		if len(v) > 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
			c.columns.values[c.index], err = decimal.NewFromString(v[1 : len(v)-1])
		} else {
			c.columns.values[c.index], err = decimal.NewFromString(v)
		}
	default:
		c.columns.values[c.index] = src
	}
	return err
}

type jsonColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *jsonColumnScanner) Scan(src any) error {
	var err error
	switch data := src.(type) {
	case []byte:
		var v any
		if err = json.Unmarshal(data, &v); err == nil {
			c.columns.values[c.index] = v
		}
	case string:
		var v any
		if err = json.Unmarshal([]byte(data), &v); err == nil {
			c.columns.values[c.index] = v
		}
	default:
		c.columns.values[c.index] = src
	}
	return err
}
