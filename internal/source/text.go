package source

import (
	"context"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// TextSource reads delimited text.
//
// Rows are split on "\n" and columns on a single delimiter rune. Nothing is
// collapsed: consecutive delimiters yield empty columns and a trailing
// newline yields a final empty row. There are no quoting rules.
type TextSource struct {
	env       Env
	delimiter rune
	encoding  encoding.Encoding
	header    bool
	trimCR    bool
}

// NewTextSource builds a TextSource from settings.
//
// Recognized settings: "Field Delimiter" (first rune, default ","),
// "Encoding Type", "Strict Encoding", "First Row Is Header" (default false)
// and "Trim Carriage Return" (default true).
func NewTextSource(s Settings, env Env) (*TextSource, error) {
	enc, err := encodingFor(s, env.StrictEncoding)
	if err != nil {
		return nil, err
	}
	return &TextSource{
		env:       env,
		delimiter: delimiter(s, ','),
		encoding:  enc,
		header:    boolSetting(s, SettingFirstRowIsHeader, false),
		trimCR:    boolSetting(s, SettingTrimCR, true),
	}, nil
}

// Fetch implements core.DataSource.
func (t *TextSource) Fetch(ctx context.Context, query string) ([]core.RowRecord, error) {
	data, err := t.env.readAll(ctx, query)
	if err != nil {
		return nil, err
	}

	text, err := decode(data, t.encoding)
	if err != nil {
		return nil, core.Unavailable(query, "decode source", err)
	}

	return toRecords(t.Split(text), t.header), nil
}

// Split breaks raw content into rows and columns.
func (t *TextSource) Split(text string) [][]string {
	lines := strings.Split(text, "\n")
	rows := make([][]string, len(lines))
	sep := string(t.delimiter)
	for i, line := range lines {
		if t.trimCR {
			line = strings.TrimSuffix(line, "\r")
		}
		rows[i] = strings.Split(line, sep)
	}
	return rows
}
