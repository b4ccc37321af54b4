package source

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dataimport/internal/core"
)

func TestCSVSource_HeaderAndQuotes(t *testing.T) {
	data := "\xEF\xBB\xBFSKU,Description,Price\n" +
		"W-1,\"Widget, large\",\"$1,200.00\"\n" +
		",,\n" +
		"=\"007\",Bond,7\n"
	path := writeFile(t, "products.csv", []byte(data))

	src, err := NewCSVSource(settings{}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank row skipped")

	assert.Equal(t, "W-1", rows[0].Value("sku"))
	assert.Equal(t, "Widget, large", rows[0].Value("Description"))
	assert.Equal(t, "$1,200.00", rows[0].Value("2"))
	assert.Equal(t, "007", rows[1].Value("SKU"))
	assert.Equal(t, "", rows[1].Value("Weight"))
}

func TestCSVSource_KeepEmptyRows(t *testing.T) {
	path := writeFile(t, "products.csv", []byte("a;b\n;\n1;2\n"))
	src, err := NewCSVSource(settings{
		SettingFieldDelimiter: ";",
		SettingSkipEmptyRows:  "no",
	}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[1].Value("b"))
}

func TestCSVSource_Missing(t *testing.T) {
	src, err := NewCSVSource(settings{}, Env{})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), filepath.Join(t.TempDir(), "gone.csv"))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestXLSXSource(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Name", "Qty"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Bolt", 12}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"Nut", 40}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	path := writeFile(t, "stock.xlsx", buf.Bytes())
	src, err := NewXLSXSource(settings{}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bolt", rows[0].Value("name"))
	assert.Equal(t, "12", rows[0].Value("qty"))
	assert.Equal(t, "Nut", rows[1].Value("0"))

	named, err := NewXLSXSource(settings{SettingSheet: "Missing"}, Env{})
	require.NoError(t, err)
	_, err = named.Fetch(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestXLSXSource_NotAWorkbook(t *testing.T) {
	path := writeFile(t, "broken.xlsx", []byte("not a zip"))
	src, err := NewXLSXSource(settings{}, Env{})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"bytes", []byte("raw"), "raw"},
		{"bool", true, "true"},
		{"int32", int32(-4), "-4"},
		{"int64", int64(42), "42"},
		{"float", 1.5, "1.5"},
		{"date", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), "2024-03-09"},
		{"timestamp", time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC), "2024-03-09T10:30:00Z"},
		{"numeric", pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, "123.45"},
		{"null numeric", pgtype.Numeric{}, ""},
		{"uuid", [16]byte{0x12, 0x34}, "12340000-0000-0000-0000-000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
