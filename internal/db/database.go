package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

const queryDatabaseExists = "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"

// Execer is the subset of *pgx.Conn used for maintenance statements.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureDatabase connects to the maintenance database at adminDSN and creates
// name if it does not exist yet. Reports whether the database was created.
func EnsureDatabase(ctx context.Context, adminDSN, name string) (bool, error) {
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return false, eris.Wrap(err, "db: connect to maintenance database")
	}
	defer conn.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	return CreateDatabaseIfMissing(ctx, conn, name)
}

// CreateDatabaseIfMissing creates database name with UTF8 encoding unless it
// exists. CREATE DATABASE cannot run inside a transaction, so q must not be a pgx.Tx.
func CreateDatabaseIfMissing(ctx context.Context, q Execer, name string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, queryDatabaseExists, name).Scan(&exists); err != nil {
		return false, eris.Wrapf(err, "db: check database %s exists", name)
	}
	if exists {
		return false, nil
	}

	sql := fmt.Sprintf("CREATE DATABASE %s ENCODING 'UTF8' TEMPLATE template0", pgx.Identifier{name}.Sanitize())
	if _, err := q.Exec(ctx, sql); err != nil {
		return false, eris.Wrapf(err, "db: create database %s", name)
	}
	return true, nil
}
