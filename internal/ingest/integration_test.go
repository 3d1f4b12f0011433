//go:build integration

package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sells-group/erp-ingest/internal/db"
	"github.com/sells-group/erp-ingest/internal/fetcher"
	"github.com/sells-group/erp-ingest/internal/manifest"
)

// startPostgres runs a throwaway server and returns a pool on a freshly
// created erp_db database.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(context.Background()) }) //nolint:errcheck

	adminDSN, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	created, err := db.EnsureDatabase(ctx, adminDSN, "erp_db")
	require.NoError(t, err)
	require.True(t, created)

	pool, err := db.Connect(ctx, strings.Replace(adminDSN, "/postgres?", "/erp_db?", 1))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newIntegrationEngine(t *testing.T, pool *pgxpool.Pool) *Engine {
	t.Helper()
	store, err := NewRawStore(afero.NewOsFs(), t.TempDir())
	require.NoError(t, err)
	return NewEngine(pool,
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 10 * time.Second}),
		store,
		NewIngestLog(),
		EngineOptions{},
	)
}

// csvServer serves whatever body is currently set for each path.
type csvServer struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (s *csvServer) set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[path] = body
}

func (s *csvServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.bodies[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte(body)) //nolint:errcheck
}

func TestIntegration_IngestRerunAndMismatch(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)

	files := &csvServer{bodies: map[string]string{}}
	srv := httptest.NewServer(files)
	defer srv.Close()

	engine := newIntegrationEngine(t, pool)
	ds := manifest.Dataset{ID: "clientes", Title: "Clientes", URL: srv.URL + "/clientes.csv", Filename: "clientes.csv", Table: "erp_clientes"}

	auditRows := func() int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM erp_ingest_log WHERE dataset_id = 'clientes'").Scan(&n))
		return n
	}

	// first run: 3 rows, 2 columns
	files.set("/clientes.csv", "A,B\n1,x\n2,y\n3,z\n")
	summary, err := engine.Run(ctx, []manifest.Dataset{ds})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Results[0].Rows)

	var cols []string
	rows, err := pool.Query(ctx, `SELECT column_name || ':' || data_type FROM information_schema.columns
		WHERE table_name = 'erp_clientes' ORDER BY ordinal_position`)
	require.NoError(t, err)
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a:text", "b:text"}, cols)

	var rowcount int64
	require.NoError(t, pool.QueryRow(ctx, "SELECT rowcount FROM erp_ingest_log WHERE dataset_id = 'clientes'").Scan(&rowcount))
	assert.Equal(t, int64(3), rowcount)
	assert.Equal(t, 1, auditRows())

	// rerun replaces contents and appends a second audit row
	files.set("/clientes.csv", "A,B\n9,q\n")
	_, err = engine.Run(ctx, []manifest.Dataset{ds})
	require.NoError(t, err)

	var values []string
	rows, err = pool.Query(ctx, "SELECT a FROM erp_clientes ORDER BY a")
	require.NoError(t, err)
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		values = append(values, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"9"}, values)
	assert.Equal(t, 2, auditRows())

	// a short row fails the load: no third audit row, previous table intact
	files.set("/clientes.csv", "A,B\n1,x\n2\n")
	_, err = engine.Run(ctx, []manifest.Dataset{ds})
	require.Error(t, err)
	assert.True(t, IsStage(err, StageLoading))
	assert.Equal(t, 2, auditRows())

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM erp_clientes").Scan(&n))
	assert.Equal(t, 1, n)

	entries, err := NewIngestLog().List(ctx, pool, "clientes", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].RowCount)
	assert.Equal(t, int64(3), entries[1].RowCount)
}

func TestIntegration_LoadsValuesVerbatim(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)

	files := &csvServer{bodies: map[string]string{}}
	srv := httptest.NewServer(files)
	defer srv.Close()

	engine := newIntegrationEngine(t, pool)
	ds := manifest.Dataset{ID: "notas", URL: srv.URL + "/notas.csv", Filename: "notas.csv", Table: "erp_notas"}

	// row 1: unquoted empty and quoted empty; row 2: CRLF inside quotes;
	// row 3: quotes opening mid-field
	files.set("/notas.csv", "ID,Texto,Extra\r\n"+
		"1,,\"\"\r\n"+
		"2,\"linea uno\r\nlinea dos\",x\r\n"+
		"3,12\"x\"34,y\r\n")

	summary, err := engine.Run(ctx, []manifest.Dataset{ds})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Results[0].Rows)

	var textoNull bool
	var extra *string
	require.NoError(t, pool.QueryRow(ctx, "SELECT texto IS NULL, extra FROM erp_notas WHERE id = '1'").Scan(&textoNull, &extra))
	assert.True(t, textoNull, "unquoted empty field loads as NULL")
	require.NotNil(t, extra, "quoted empty field loads as empty string")
	assert.Equal(t, "", *extra)

	var texto string
	require.NoError(t, pool.QueryRow(ctx, "SELECT texto FROM erp_notas WHERE id = '2'").Scan(&texto))
	assert.Equal(t, "linea uno\r\nlinea dos", texto)

	require.NoError(t, pool.QueryRow(ctx, "SELECT texto FROM erp_notas WHERE id = '3'").Scan(&texto))
	assert.Equal(t, "12x34", texto)
}
