package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/erp-ingest/internal/db"
)

// Load streams a comma-delimited CSV with a header line into table via
// COPY ... FORMAT csv, HEADER true and returns the number of rows the table
// holds afterwards. The bytes of r reach PostgreSQL unchanged, so values land
// verbatim and a row whose width differs from columns fails the COPY.
func Load(ctx context.Context, q db.Querier, c db.Copier, table string, columns []string, r io.Reader) (int64, error) {
	if len(columns) == 0 {
		return 0, eris.Errorf("load: table %s needs at least one column", table)
	}

	if _, err := db.CopyCSV(ctx, c, table, columns, r); err != nil {
		return 0, eris.Wrap(err, "load")
	}

	var count int64
	if err := q.QueryRow(ctx, countRowsSQL(table)).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "load: count rows in %s", table)
	}
	return count, nil
}

func countRowsSQL(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", db.SanitizeTable(table))
}
