// Package header turns raw CSV header cells into PostgreSQL column identifiers.
package header

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is the column name used when a header normalizes to nothing.
const Fallback = "columna"

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1; longer names are truncated by the server.
const MaxIdentifierLength = 63

// ErrNoHeader is returned when the input has no first record.
var ErrNoHeader = errors.New("header: no header record")

var (
	nonWordRe   = regexp.MustCompile(`[^a-z0-9_]+`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// Normalize maps a raw header to a lowercase [a-z0-9_] identifier.
// "Nombre Cliente" → "nombre_cliente", "2024_Ventas" → "c_2024_ventas",
// "Código-Postal!!" → "codigo_postal", "   " → "columna".
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = foldAccents(s)
	s = nonWordRe.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "c_" + s
	}
	if s == "" {
		return Fallback
	}
	return s
}

// foldAccents strips combining marks after canonical decomposition, so "ó" becomes "o".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeAll normalizes a header row in order and makes the names unique.
// Names are cut to MaxIdentifierLength; a repeated name gets the first free
// suffix from _2, _3, ... so ["A", "a", "a_2"] becomes ["a", "a_2", "a_2_2"].
func NormalizeAll(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		name := truncate(Normalize(h), MaxIdentifierLength)
		if seen[name] {
			for n := 2; ; n++ {
				cand := withSuffix(name, n)
				if !seen[cand] {
					name = cand
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func withSuffix(name string, n int) string {
	suffix := "_" + strconv.Itoa(n)
	return truncate(name, MaxIdentifierLength-len(suffix)) + suffix
}

// truncate cuts an ASCII identifier to max bytes without leaving a trailing underscore.
func truncate(name string, max int) string {
	if len(name) <= max {
		return name
	}
	name = strings.TrimRight(name[:max], "_")
	if name == "" {
		return Fallback
	}
	return name
}

// ReadFirst parses only the first CSV record of r.
// A UTF-8 byte order mark before the first cell is dropped.
func ReadFirst(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, eris.Wrap(err, "header: read first record")
	}
	record[0] = strings.TrimPrefix(record[0], "\ufeff")
	return record, nil
}
