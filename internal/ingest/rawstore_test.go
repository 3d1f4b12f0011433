package ingest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawStore_WriteAndOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := mustRawStore(t, fs, "/srv/erp")

	path, n, err := store.Write("2024-05-01", "clientes.csv", strings.NewReader("A,B\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/erp", "data", "raw", "2024-05-01", "clientes.csv"), path)
	assert.Equal(t, int64(8), n)

	f, err := store.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "A,B\n1,2\n", string(data))
}

func TestRawStore_Overwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := mustRawStore(t, fs, ".")

	_, _, err := store.Write("2024-05-01", "x.csv", strings.NewReader("a much longer first version\n"))
	require.NoError(t, err)
	path, _, err := store.Write("2024-05-01", "x.csv", strings.NewReader("v2\n"))
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(data))
}

func TestRawStore_RelativeRootIsAbsolute(t *testing.T) {
	store := mustRawStore(t, afero.NewMemMapFs(), ".")

	path, _, err := store.Write("2026-10-19", "x.csv", strings.NewReader("a\n"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path), "got %s", path)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "data", "raw", "2026-10-19", "x.csv"), path)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestRawStore_WriteErrorRemovesPartialFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := mustRawStore(t, fs, "/data")

	_, _, err := store.Write("2024-05-01", "x.csv", brokenReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")

	exists, err := afero.Exists(fs, store.Path("2024-05-01", "x.csv"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRawStore_ReadOnlyFs(t *testing.T) {
	store := mustRawStore(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), "/data")

	_, _, err := store.Write("2024-05-01", "x.csv", strings.NewReader("a\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rawstore: create directory")
}

func TestRawStore_OpenMissing(t *testing.T) {
	store := mustRawStore(t, afero.NewMemMapFs(), "/data")
	_, err := store.Open("/data/nope.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rawstore: open")
}
