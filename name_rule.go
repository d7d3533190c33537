package flatmapper

import (
	"fmt"
	"strings"
	"unicode"
)

// NameRule is a type level tag that derives column names from param names
//
// Snake casing is applied first, then the prefix is prepended.  Explicit Column and Identifier
// column names always take precedence over the derived name.
type NameRule struct {
	// ColumnPrefix is prepended to every derived column name
	ColumnPrefix string
	// SnakeCaseColumns converts param names to snake_case
	SnakeCaseColumns bool
	// RemovePrefix is the legacy spelling of ColumnPrefix (ColumnPrefix wins if both are set)
	RemovePrefix string
	// Camelize is the legacy spelling of SnakeCaseColumns
	Camelize bool
}

// ColumnName returns the column name derived from the given field name
func (r NameRule) ColumnName(field string) string {
	result := field
	if r.snakeCase() {
		result = SnakeCase(result)
	}
	return r.prefix() + result
}

func (r NameRule) prefix() string {
	if r.ColumnPrefix != "" {
		return r.ColumnPrefix
	}
	return r.RemovePrefix
}

func (r NameRule) snakeCase() bool {
	return r.SnakeCaseColumns || r.Camelize
}

func (r NameRule) validate() error {
	if r.prefix() == "" && !r.snakeCase() {
		return fmt.Errorf("invalid name rule: neither a column prefix nor snake casing specified")
	}
	return nil
}

const (
	argColumnPrefix     = "column_prefix"
	argSnakeCaseColumns = "snake_case_columns"
	argRemovePrefix     = "remove_prefix"
	argCamelize         = "camelize"
)

// ParseNameRule builds a NameRule from named args
//
// recognised args are "column_prefix", "snake_case_columns" and the legacy "remove_prefix" and "camelize"
func ParseNameRule(args map[string]any) (NameRule, error) {
	result := NameRule{}
	for k, v := range args {
		var ok bool
		switch k {
		case argColumnPrefix:
			result.ColumnPrefix, ok = v.(string)
		case argRemovePrefix:
			result.RemovePrefix, ok = v.(string)
		case argSnakeCaseColumns:
			result.SnakeCaseColumns, ok = v.(bool)
		case argCamelize:
			result.Camelize, ok = v.(bool)
		default:
			return NameRule{}, fmt.Errorf("invalid name rule argument %q", k)
		}
		if !ok {
			return NameRule{}, fmt.Errorf("invalid name rule argument %q: unexpected value type %T", k, v)
		}
	}
	return result, result.validate()
}

// SnakeCase converts a camel/pascal case name to snake_case
//
// e.g. "publisherName" -> "publisher_name", "HTTPServer" -> "http_server", "item2Id" -> "item2_id"
func SnakeCase(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				sb.WriteRune('_')
			} else if unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1]) {
				sb.WriteRune('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
