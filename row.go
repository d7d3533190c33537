package flatmapper

import "iter"

// Row is a single flat result row - column name to (nullable) value
type Row map[string]any

// Rows adapts a slice of rows into a row sequence that can be passed to Mapper.Hydrate
func Rows(rows ...Row) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}
