package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// XLSXSource reads one worksheet of an Excel workbook.
type XLSXSource struct {
	env       Env
	sheet     string
	header    bool
	skipEmpty bool
}

// NewXLSXSource builds an XLSXSource. "Sheet" selects the worksheet (default:
// the first one); "First Row Is Header" defaults to true.
func NewXLSXSource(s Settings, env Env) (*XLSXSource, error) {
	return &XLSXSource{
		env:       env,
		sheet:     s.Get(SettingSheet),
		header:    boolSetting(s, SettingFirstRowIsHeader, true),
		skipEmpty: boolSetting(s, SettingSkipEmptyRows, true),
	}, nil
}

// Fetch implements core.DataSource.
func (x *XLSXSource) Fetch(ctx context.Context, query string) ([]core.RowRecord, error) {
	rc, err := x.env.open(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := excelize.OpenReader(NewLimitReader(rc, x.env.maxFileSize()))
	if err != nil {
		return nil, wrapErr(query, "workbook", err)
	}
	defer f.Close()

	sheet := x.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.Unavailable(query, "workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, core.Unavailable(query, fmt.Sprintf("read sheet %q", sheet), err)
	}

	kept := rows[:0]
	for _, row := range rows {
		if x.skipEmpty && isEmptyRow(row) {
			continue
		}
		for i := range row {
			row[i] = CleanCell(row[i])
		}
		kept = append(kept, row)
	}
	return toRecords(kept, x.header), nil
}
