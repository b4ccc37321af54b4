package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataimport/internal/core"
)

type settings map[string]string

func (s settings) Get(key string) string { return s[key] }

type fakeMedia map[string][]byte

func (m fakeMedia) OpenMedia(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", path, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func values(r core.RowRecord, keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.Value(k)
	}
	return out
}

func TestTextSource_PositionalColumns(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("a,b,c\nd,,f"))
	src, err := NewTextSource(settings{}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"a", "b", "c"}, values(rows[0], "0", "1", "2"))
	assert.Equal(t, []string{"d", "", "f"}, values(rows[1], "0", "1", "2"))
	assert.Equal(t, "", rows[0].Value("7"), "out of range index")
	assert.Equal(t, "", rows[0].Value("-1"), "negative index")
	assert.Equal(t, "", rows[0].Value("name"), "non-numeric key")
}

func TestTextSource_EmptyMiddleColumn(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("a,b,,d"))
	src, err := NewTextSource(settings{}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rec, ok := rows[0].(*Record)
	require.True(t, ok)
	assert.Equal(t, 4, rec.Len())
	assert.Equal(t, []string{"a", "b", "", "d"}, values(rec, "0", "1", "2", "3"))
}

func TestTextSource_Delimiter(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("a|b,c||d"))
	src, err := NewTextSource(settings{SettingFieldDelimiter: "|;"}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b,c", "", "d"}, values(rows[0], "0", "1", "2", "3"))

	tab, err := NewTextSource(settings{SettingFieldDelimiter: `\t`}, Env{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}}, tab.Split("x\ty"))
}

func TestTextSource_TrailingNewlineYieldsEmptyRow(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("a,b\r\nc,d\r\n"))
	src, err := NewTextSource(settings{}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].Value("1"), "carriage return trimmed")
	assert.Equal(t, "", rows[2].Value("0"))

	keepCR, err := NewTextSource(settings{SettingTrimCR: "false"}, Env{})
	require.NoError(t, err)
	assert.Equal(t, "b\r", keepCR.Split("a,b\r\n")[0][1])
}

func TestTextSource_Header(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("Name,Price\nWidget,9.99"))
	src, err := NewTextSource(settings{SettingFirstRowIsHeader: "true"}, Env{})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Widget", rows[0].Value("name"))
	assert.Equal(t, "9.99", rows[0].Value("Price"))
	assert.Equal(t, "9.99", rows[0].Value("1"))
	assert.Equal(t, "Name=Widget||Price=9.99", rows[0].Describe())
}

func TestTextSource_Encoding(t *testing.T) {
	path := writeFile(t, "items.txt", []byte{'C', 'a', 'f', 0xE9, ',', '1'})

	src, err := NewTextSource(settings{SettingEncodingType: "1252"}, Env{})
	require.NoError(t, err)
	rows, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Café", rows[0].Value("0"))

	// Unknown encodings fall back to UTF-8 and sanitize the invalid byte.
	src, err = NewTextSource(settings{SettingEncodingType: "not-an-encoding"}, Env{})
	require.NoError(t, err)
	rows, err = src.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Caf?", rows[0].Value("0"))

	_, err = NewTextSource(settings{SettingEncodingType: "not-an-encoding"}, Env{StrictEncoding: true})
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestTextSource_MissingFile(t *testing.T) {
	src, err := NewTextSource(settings{}, Env{})
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "nope.txt")
	_, err = src.Fetch(context.Background(), missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), missing)
}

func TestTextSource_BaseDir(t *testing.T) {
	path := writeFile(t, "items.txt", []byte("x"))
	src, err := NewTextSource(settings{}, Env{BaseDir: filepath.Dir(path)})
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), "items.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", rows[0].Value("0"))
}

func TestTextSource_Media(t *testing.T) {
	env := Env{Media: fakeMedia{"/media/import/products": []byte("a;b")}}
	src, err := NewTextSource(settings{SettingFieldDelimiter: ";"}, env)
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), "media:/media/import/products")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Value("1"))

	_, err = src.Fetch(context.Background(), "media:/media/import/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "/media/import/missing")

	bare, err := NewTextSource(settings{}, Env{})
	require.NoError(t, err)
	_, err = bare.Fetch(context.Background(), "media:/anything")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestTextSource_SizeLimit(t *testing.T) {
	path := writeFile(t, "big.txt", bytes.Repeat([]byte("x"), 2048))
	src, err := NewTextSource(settings{}, Env{MaxFileSize: 1024})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestRecord_Describe(t *testing.T) {
	r := NewRecord([]string{"a", "", "c"}, nil, nil)
	assert.Equal(t, "0=a||1=||2=c", r.Describe())
	assert.Equal(t, 3, r.Len())
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{KindCSV, KindSQL, KindText, KindXLSX}, Kinds())

	src, err := New("TEXT", settings{}, Env{})
	require.NoError(t, err)
	assert.IsType(t, &TextSource{}, src)

	_, err = New("parquet", settings{}, Env{})
	assert.ErrorContains(t, err, "unknown source kind")

	_, err = New(KindSQL, settings{}, Env{})
	assert.ErrorContains(t, err, "database connection")

	assert.Panics(t, func() { Register(KindText, nil) })
}
