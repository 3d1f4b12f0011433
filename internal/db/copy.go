// Package db provides shared PostgreSQL helpers: connections, transactions and COPY.
package db

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Copier streams raw COPY FROM STDIN data. *pgconn.PgConn implements it.
type Copier interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// TxCopier returns the connection underlying tx.
func TxCopier(tx pgx.Tx) Copier {
	return tx.Conn().PgConn()
}

// CopyCSV streams r unchanged into table with COPY ... FORMAT csv, HEADER true.
// PostgreSQL parses the file: the first line is skipped, an unquoted empty
// field becomes NULL and a row of the wrong width is rejected.
func CopyCSV(ctx context.Context, c Copier, table string, columns []string, r io.Reader) (int64, error) {
	tag, err := c.CopyFrom(ctx, r, CopyCSVSQL(table, columns))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return tag.RowsAffected(), nil
}

// CopyCSVSQL builds the COPY statement used by CopyCSV.
func CopyCSVSQL(table string, columns []string) string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true)",
		SanitizeTable(table), QuoteAndJoin(columns))
}
