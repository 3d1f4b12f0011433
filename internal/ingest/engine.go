// Package ingest loads manifest datasets into PostgreSQL: it provisions a
// TEXT table per dataset, bulk-loads the CSV with COPY and records each
// ingestion in erp_ingest_log.
package ingest

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/erp-ingest/internal/db"
	"github.com/sells-group/erp-ingest/internal/fetcher"
	"github.com/sells-group/erp-ingest/internal/header"
	"github.com/sells-group/erp-ingest/internal/manifest"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// ContinueOnError records a failed dataset and moves on instead of
	// aborting the run.
	ContinueOnError bool
	// Now returns the clock used for the raw directory date. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs datasets through fetch, persist, header extraction and a
// transactional provision/load/log sequence.
type Engine struct {
	pool    db.Pool
	fetcher fetcher.Fetcher
	store   *RawStore
	log     *IngestLog
	opts    EngineOptions

	// copier yields the raw COPY channel of a load transaction.
	copier func(pgx.Tx) db.Copier
}

// DatasetResult is the outcome of one dataset.
type DatasetResult struct {
	Dataset string
	Table   string
	Path    string
	Columns []string
	Rows    int64
	LogID   int64
	Elapsed time.Duration
	Err     error
}

// RunSummary describes a run.
type RunSummary struct {
	RunID   string
	Day     string
	Results []DatasetResult
}

// Failed returns the results that carry an error.
func (s *RunSummary) Failed() []DatasetResult {
	var out []DatasetResult
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// NewEngine creates a new ingestion engine.
func NewEngine(pool db.Pool, f fetcher.Fetcher, store *RawStore, log *IngestLog, opts EngineOptions) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		pool:    pool,
		fetcher: f,
		store:   store,
		log:     log,
		opts:    opts,
		copier:  db.TxCopier,
	}
}

// Setup creates the audit table in its own committed transaction.
func (e *Engine) Setup(ctx context.Context) error {
	err := db.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.log.EnsureTable(ctx, tx)
	})
	return eris.Wrap(err, "engine: setup")
}

// Run ingests datasets one at a time in the given order. Unless
// ContinueOnError is set, the first failure stops the run and is returned as
// a *StageError. The summary covers every dataset attempted.
func (e *Engine) Run(ctx context.Context, datasets []manifest.Dataset) (*RunSummary, error) {
	if len(datasets) == 0 {
		return nil, manifest.ErrNoDatasets
	}

	summary := &RunSummary{
		RunID: uuid.NewString(),
		Day:   e.opts.Now().Format(DayLayout),
	}
	log := zap.L().With(zap.String("component", "ingest.engine"), zap.String("run_id", summary.RunID))

	if err := e.Setup(ctx); err != nil {
		return summary, err
	}

	log.Info("starting run", zap.Int("datasets", len(datasets)), zap.String("day", summary.Day))

	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "engine: run cancelled")
		}

		dsLog := log.With(zap.String("dataset", ds.Name()), zap.String("table", ds.Table))
		dsLog.Info("ingesting", zap.String("url", ds.URL))

		start := time.Now()
		res, err := e.ingest(ctx, ds, summary.Day, dsLog)
		res.Elapsed = time.Since(start)
		res.Err = err
		summary.Results = append(summary.Results, res)

		if err != nil {
			dsLog.Error("ingestion failed", zap.Error(err), zap.Duration("elapsed", res.Elapsed))
			if !e.opts.ContinueOnError {
				return summary, err
			}
			continue
		}

		dsLog.Info("ingestion complete",
			zap.Int64("rows", res.Rows),
			zap.String("path", res.Path),
			zap.Duration("elapsed", res.Elapsed),
		)
	}

	failed := summary.Failed()
	log.Info("run complete",
		zap.Int("succeeded", len(summary.Results)-len(failed)),
		zap.Int("failed", len(failed)),
	)
	if len(failed) > 0 {
		names := make([]string, len(failed))
		for i, r := range failed {
			names[i] = r.Dataset
		}
		return summary, eris.Errorf("engine: %d of %d datasets failed: %s",
			len(failed), len(datasets), strings.Join(names, ", "))
	}
	return summary, nil
}

func (e *Engine) ingest(ctx context.Context, ds manifest.Dataset, day string, log *zap.Logger) (DatasetResult, error) {
	res := DatasetResult{Dataset: ds.Name(), Table: ds.Table}
	fail := func(stage Stage, err error) (DatasetResult, error) {
		return res, &StageError{Stage: stage, Dataset: ds.Name(), Table: ds.Table, Err: err}
	}

	body, err := e.fetcher.Download(ctx, ds.URL)
	if err != nil {
		return fail(StageFetching, err)
	}
	tracked := &readTracker{r: body}
	path, n, err := e.store.Write(day, ds.Filename, tracked)
	_ = body.Close()
	if err != nil {
		if tracked.err != nil {
			// the connection broke mid-body
			return fail(StageFetching, err)
		}
		return fail(StagePersisting, err)
	}
	res.Path = path
	log.Debug("persisted raw file", zap.String("path", path), zap.Int64("bytes", n))

	columns, err := e.readColumns(path)
	if err != nil {
		return fail(StageHeaderExtraction, err)
	}
	res.Columns = columns

	stage := StageProvisioning
	err = db.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		if err := Provision(ctx, tx, ds.Table, columns); err != nil {
			return err
		}

		stage = StageLoading
		f, err := e.store.Open(path)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		rows, err := Load(ctx, tx, e.copier(tx), ds.Table, columns, f)
		if err != nil {
			return err
		}
		res.Rows = rows

		stage = StageLogging
		id, err := e.log.Append(ctx, tx, LogEntry{
			DatasetID: ds.ID,
			Title:     ds.Title,
			Filename:  path,
			TableName: ds.Table,
			RowCount:  rows,
		})
		if err != nil {
			return err
		}
		res.LogID = id
		return nil
	})
	if err != nil {
		res.Rows = 0
		res.LogID = 0
		return fail(stage, err)
	}
	return res, nil
}

func (e *Engine) readColumns(path string) ([]string, error) {
	f, err := e.store.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	raw, err := header.ReadFirst(f)
	if err != nil {
		return nil, err
	}
	return header.NormalizeAll(raw), nil
}

// readTracker remembers the first non-EOF error from r.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
