package ingest

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// DayLayout formats the dated raw directory name.
const DayLayout = "2006-01-02"

// RawStore keeps fetched files verbatim under <root>/data/raw/<day>/.
type RawStore struct {
	fs   afero.Fs
	root string
}

// NewRawStore returns a RawStore rooted at root on fs. A relative root is
// resolved against the working directory so stored paths are absolute.
func NewRawStore(fs afero.Fs, root string) (*RawStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrapf(err, "rawstore: resolve root %s", root)
	}
	return &RawStore{fs: fs, root: abs}, nil
}

// Path returns where filename is stored for day (formatted with DayLayout).
func (s *RawStore) Path(day, filename string) string {
	return filepath.Join(s.root, "data", "raw", day, filename)
}

// Write copies r to the dated path for filename, creating parent
// directories, and returns the path and bytes written. A partial file is
// removed when the copy fails.
func (s *RawStore) Write(day, filename string, r io.Reader) (string, int64, error) {
	path := s.Path(day, filename)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, eris.Wrapf(err, "rawstore: create directory for %s", path)
	}

	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, eris.Wrapf(err, "rawstore: create %s", path)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(path)
		return "", 0, eris.Wrapf(err, "rawstore: write %s", path)
	}
	return path, n, nil
}

// Open opens a stored file for reading.
func (s *RawStore) Open(path string) (afero.File, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rawstore: open %s", path)
	}
	return f, nil
}
