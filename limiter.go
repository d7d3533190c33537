package flatmapper

// Limiter is an interface that can be passed as an option to Mapper.Map, Mapper.Hydrate or Mapper.Query
//
// and is used to limit the number of rows read - rows after the limit are not consumed
type Limiter interface {
	// LimitReached should return true if the rowCount arg exceeds the maximum
	LimitReached(rowCount int) bool
}

// RowLimit is a Limiter that stops reading rows after the given number of rows
type RowLimit int

func (l RowLimit) LimitReached(rowCount int) bool {
	return rowCount > int(l)
}

var defaultLimiter Limiter = &nullLimiter{}

type nullLimiter struct{}

var _ Limiter = (*nullLimiter)(nil)

func (n *nullLimiter) LimitReached(rowCount int) bool {
	return false
}
