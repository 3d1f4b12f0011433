package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/erp-ingest/internal/db"
)

// Provision drops table (cascading to dependents) and recreates it with one
// TEXT column per header, in header order. Running it twice with the same
// arguments leaves the same empty table.
func Provision(ctx context.Context, q db.Querier, table string, headers []string) error {
	if len(headers) == 0 {
		return eris.Errorf("schema: table %s needs at least one column", table)
	}

	if _, err := q.Exec(ctx, dropTableSQL(table)); err != nil {
		return eris.Wrapf(err, "schema: drop table %s", table)
	}
	if _, err := q.Exec(ctx, createTableSQL(table, headers)); err != nil {
		return eris.Wrapf(err, "schema: create table %s", table)
	}
	return nil
}

func dropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", db.SanitizeTable(table))
}

func createTableSQL(table string, headers []string) string {
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = pgx.Identifier{h}.Sanitize() + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", db.SanitizeTable(table), strings.Join(cols, ", "))
}
