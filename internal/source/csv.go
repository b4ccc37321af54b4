package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"golang.org/x/text/encoding"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// CSVSource reads quoted CSV with a header row.
//
// Cells are cleaned of spreadsheet artifacts and columns are addressed by
// header name or position. Blank rows are dropped unless "Skip Empty Rows"
// is false.
type CSVSource struct {
	env       Env
	delimiter rune
	encoding  encoding.Encoding
	header    bool
	skipEmpty bool
}

// NewCSVSource builds a CSVSource from settings.
func NewCSVSource(s Settings, env Env) (*CSVSource, error) {
	enc, err := encodingFor(s, env.StrictEncoding)
	if err != nil {
		return nil, err
	}
	return &CSVSource{
		env:       env,
		delimiter: delimiter(s, ','),
		encoding:  enc,
		header:    boolSetting(s, SettingFirstRowIsHeader, true),
		skipEmpty: boolSetting(s, SettingSkipEmptyRows, true),
	}, nil
}

// Fetch implements core.DataSource.
func (c *CSVSource) Fetch(ctx context.Context, query string) ([]core.RowRecord, error) {
	rc, err := c.env.open(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	records, err := c.parse(NewLimitReader(rc, c.env.maxFileSize()))
	if err != nil {
		return nil, wrapErr(query, "csv", err)
	}
	return toRecords(records, c.header), nil
}

func (c *CSVSource) parse(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(decodeReader(r, c.encoding))
	cr.Comma = c.delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if c.skipEmpty && isEmptyRow(rec) {
			continue
		}
		for i := range rec {
			rec[i] = CleanCell(rec[i])
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
