package flatmapper

import (
	"context"
	"database/sql"
)

// SqlInterface is the interface used by Mapper.Query - satisfied by *sql.DB, *sql.Tx and *sql.Conn
type SqlInterface interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
