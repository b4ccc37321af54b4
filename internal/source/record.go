// Package source implements the data sources an import can read from.
//
// Every source turns a query descriptor (a file path, a media reference or a
// SQL statement) into an eager slice of core.RowRecord values. Sources are
// built from string settings by the registry in registry.go:
//
//   - text: delimited text with positional columns ("0", "1", ...)
//   - csv: quoted CSV with a header row
//   - xlsx: one worksheet of an Excel workbook
//   - sql: rows returned by a Postgres query
//
// Column lookup never fails: an absent name, a non-numeric key on a
// positional row or an out-of-range index all yield "".
package source

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// HeaderIndex maps lowercase column names to their position.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are cleaned and lowercased for case-insensitive matching; the first
// occurrence of a duplicate name wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// Record is a RowRecord over a slice of cells. Cells can be addressed by
// position and, when the source had a header row, by column name.
type Record struct {
	cells  []string
	header []string
	index  HeaderIndex
}

var _ core.RowRecord = (*Record)(nil)

// NewRecord creates a positional record. header may be nil.
func NewRecord(cells, header []string, index HeaderIndex) *Record {
	return &Record{cells: cells, header: header, index: index}
}

// Value returns the cell addressed by key.
//
// Header names are tried first, then the key is parsed as a zero-based
// index. Anything else yields "".
func (r *Record) Value(key string) string {
	if r.index != nil {
		if i, ok := r.index[strings.ToLower(strings.TrimSpace(key))]; ok {
			return r.cell(i)
		}
	}
	i, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return ""
	}
	return r.cell(i)
}

func (r *Record) cell(i int) string {
	if i < 0 || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

// Len returns the number of cells in the row.
func (r *Record) Len() int {
	return len(r.cells)
}

// Describe renders the row as label=value pairs joined by "||".
func (r *Record) Describe() string {
	parts := make([]string, len(r.cells))
	for i, c := range r.cells {
		label := strconv.Itoa(i)
		if i < len(r.header) && strings.TrimSpace(r.header[i]) != "" {
			label = strings.TrimSpace(r.header[i])
		}
		parts[i] = label + "=" + c
	}
	return strings.Join(parts, "||")
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// toRecords wraps raw rows. When hasHeader is set the first row becomes the
// header and is removed from the result.
func toRecords(rows [][]string, hasHeader bool) []core.RowRecord {
	var header []string
	var index HeaderIndex
	if hasHeader && len(rows) > 0 {
		header = rows[0]
		index = MakeHeaderIndex(header)
		rows = rows[1:]
	}

	out := make([]core.RowRecord, len(rows))
	for i, cells := range rows {
		out[i] = NewRecord(cells, header, index)
	}
	return out
}
