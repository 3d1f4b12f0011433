// Package manifest loads the list of datasets that drives an ingestion run.
package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrNoDatasets is returned when a manifest has no dataset entries.
var ErrNoDatasets = errors.New("manifest: no datasets")

// Dataset describes one remote CSV and the table it is loaded into.
type Dataset struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
	Filename string `yaml:"filename"`
	Table    string `yaml:"table"`
}

// Name identifies the dataset in logs: its id, or its table when no id is set.
func (d Dataset) Name() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Table
}

// Manifest is the top-level document.
type Manifest struct {
	Datasets []Dataset `yaml:"datasets"`
}

// ValidationError lists every invalid entry of a manifest.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "manifest: " + strings.Join(e.Problems, "; ")
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		if errors.Is(err, ErrNoDatasets) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "manifest: %s", path)
	}
	return m, nil
}

// Parse decodes a manifest document, trims every field and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "manifest: decode yaml")
	}
	for i := range m.Datasets {
		d := &m.Datasets[i]
		d.ID = strings.TrimSpace(d.ID)
		d.Title = strings.TrimSpace(d.Title)
		d.URL = strings.TrimSpace(d.URL)
		d.Filename = strings.TrimSpace(d.Filename)
		d.Table = strings.TrimSpace(d.Table)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the required fields of every entry.
func (m *Manifest) Validate() error {
	if len(m.Datasets) == 0 {
		return ErrNoDatasets
	}

	var problems []string
	for i, d := range m.Datasets {
		if d.URL == "" {
			problems = append(problems, entryRef(i, d)+": url is required")
		}
		if d.Filename == "" {
			problems = append(problems, entryRef(i, d)+": filename is required")
		} else if !filepath.IsLocal(d.Filename) {
			problems = append(problems, entryRef(i, d)+": filename must be a relative path inside the raw directory")
		}
		if d.Table == "" {
			problems = append(problems, entryRef(i, d)+": table is required")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Select returns the datasets whose ids are listed, in manifest order.
// An empty ids list selects every dataset.
func (m *Manifest) Select(ids []string) ([]Dataset, error) {
	if len(ids) == 0 {
		return m.Datasets, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var result []Dataset
	for _, d := range m.Datasets {
		if want[d.ID] {
			result = append(result, d)
			delete(want, d.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, id := range ids {
			if want[id] {
				missing = append(missing, id)
			}
		}
		return nil, eris.Errorf("manifest: unknown dataset ids: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

func entryRef(i int, d Dataset) string {
	if d.ID != "" {
		return "datasets[" + d.ID + "]"
	}
	return "datasets[#" + strconv.Itoa(i) + "]"
}
