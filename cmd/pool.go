package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/erp-ingest/internal/config"
	"github.com/sells-group/erp-ingest/internal/db"
	"github.com/sells-group/erp-ingest/internal/fetcher"
	"github.com/sells-group/erp-ingest/internal/ingest"
)

// openPool connects to the target database. With create set, the database
// is created first through the maintenance database when it is missing.
func openPool(ctx context.Context, pg config.PostgresConfig, create bool) (*pgxpool.Pool, error) {
	if create {
		created, err := db.EnsureDatabase(ctx, pg.AdminDSN(), pg.Database)
		if err != nil {
			return nil, eris.Wrapf(err, "ensure database %s", pg.Database)
		}
		if created {
			zap.L().Info("created database", zap.String("database", pg.Database))
		}
	}

	pool, err := db.Connect(ctx, pg.DSN())
	if err != nil {
		return nil, eris.Wrapf(err, "connect to %s", pg)
	}
	zap.L().Debug("connected to database", zap.Stringer("target", pg))
	return pool, nil
}

// newFetcher serves http, https and ftp manifest URLs.
func newFetcher(ic config.IngestConfig) fetcher.Fetcher {
	return fetcher.NewRouter(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: ic.UserAgent,
			Timeout:   ic.FetchTimeout,
			HostRate:  rate.Limit(ic.HostRate),
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: ic.FetchTimeout}),
	)
}

func newEngine(pool db.Pool, ic config.IngestConfig) (*ingest.Engine, error) {
	store, err := ingest.NewRawStore(afero.NewOsFs(), ic.Root)
	if err != nil {
		return nil, err
	}
	return ingest.NewEngine(pool,
		newFetcher(ic),
		store,
		ingest.NewIngestLog(),
		ingest.EngineOptions{ContinueOnError: ic.ContinueOnError},
	), nil
}
