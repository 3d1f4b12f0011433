package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// SanitizeTable quotes table as one identifier. A dot is part of the name,
// so "staging.clientes" names a table in the search_path schema.
func SanitizeTable(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
