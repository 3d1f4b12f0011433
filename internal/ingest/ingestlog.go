package ingest

import (
	"context"
	_ "embed"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/erp-ingest/internal/db"
)

//go:embed sql/erp_ingest_log.sql
var ingestLogDDL string

const (
	insertLogEntrySQL = `INSERT INTO erp_ingest_log (dataset_id, title, filename, table_name, fetched_at, rowcount)
		 VALUES ($1, $2, $3, $4, now(), $5) RETURNING id`

	listLogEntriesSQL = `SELECT id, COALESCE(dataset_id, ''), COALESCE(title, ''), COALESCE(filename, ''),
		 COALESCE(table_name, ''), fetched_at, COALESCE(rowcount, 0)
		 FROM erp_ingest_log
		 WHERE $1 = '' OR dataset_id = $1
		 ORDER BY fetched_at DESC, id DESC LIMIT $2`
)

// LogEntry is a row of erp_ingest_log.
type LogEntry struct {
	ID        int64     `json:"id"`
	DatasetID string    `json:"dataset_id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	TableName string    `json:"table_name"`
	FetchedAt time.Time `json:"fetched_at"`
	RowCount  int64     `json:"rowcount"`
}

// IngestLog appends to and reads the erp_ingest_log audit table. Entries are
// never updated or deleted; every ingestion of a dataset adds one more row.
type IngestLog struct{}

// NewIngestLog returns an IngestLog.
func NewIngestLog() *IngestLog {
	return &IngestLog{}
}

// EnsureTable creates erp_ingest_log if it does not exist.
func (l *IngestLog) EnsureTable(ctx context.Context, q db.Querier) error {
	if _, err := q.Exec(ctx, ingestLogDDL); err != nil {
		return eris.Wrap(err, "ingestlog: ensure table")
	}
	return nil
}

// Append inserts e with fetched_at set to the current database time and
// returns the new row id. e.ID and e.FetchedAt are ignored.
func (l *IngestLog) Append(ctx context.Context, q db.Querier, e LogEntry) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, insertLogEntrySQL,
		e.DatasetID, e.Title, e.Filename, e.TableName, e.RowCount,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "ingestlog: append entry for %s", e.TableName)
	}
	return id, nil
}

// List returns up to limit entries, most recent first. An empty datasetID
// lists every dataset.
func (l *IngestLog) List(ctx context.Context, q db.Querier, datasetID string, limit int) ([]LogEntry, error) {
	rows, err := q.Query(ctx, listLogEntriesSQL, datasetID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "ingestlog: list")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.DatasetID, &e.Title, &e.Filename, &e.TableName, &e.FetchedAt, &e.RowCount); err != nil {
			return nil, eris.Wrap(err, "ingestlog: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "ingestlog: iterate entries")
}
