package definition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/source"
	"github.com/JonMunkholm/dataimport/internal/store"
)

const productsYAML = `
key: products
name: Products
group: Catalog
source:
  kind: text
  query: products.txt
  settings:
    Field Delimiter: ";"
root: /content/products
naming:
  columns: ["0"]
mappings:
  - field: Title
    columns: ["1"]
  - field: Price
    columns: ["2"]
    type: number
    options:
      places: "2"
post_processors:
  - type: item_count
`

func TestParse_Defaults(t *testing.T) {
	def, err := Parse([]byte(`
key: minimal
source:
  query: data.txt
root: /content
naming:
  columns: ["0"]
`))
	require.NoError(t, err)

	assert.Equal(t, "minimal", def.Name)
	assert.Equal(t, "Default", def.Group)
	assert.Equal(t, source.KindText, def.Source.Kind)
	assert.Equal(t, " ", def.Naming.Delimiter)
	assert.Equal(t, core.DefaultMaxNameLength, def.Naming.MaxLength)
	assert.NotNil(t, def.Source.Settings)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		problem string
	}{
		{
			name:    "missing key",
			yaml:    "source: {query: a.txt}\nroot: /x\nnaming: {columns: [\"0\"]}",
			problem: "key is required",
		},
		{
			name:    "unknown kind",
			yaml:    "key: k\nsource: {kind: ftp, query: a}\nroot: /x\nnaming: {columns: [\"0\"]}",
			problem: "source.kind",
		},
		{
			name:    "no naming columns",
			yaml:    "key: k\nsource: {query: a.txt}\nroot: /x",
			problem: "naming.columns",
		},
		{
			name:    "bad mapper",
			yaml:    "key: k\nsource: {query: a.txt}\nroot: /x\nnaming: {columns: [\"0\"]}\nmappings: [{field: F, columns: [\"1\"], type: rot13}]",
			problem: "mappings[0]",
		},
		{
			name:    "duplicate field",
			yaml:    "key: k\nsource: {query: a.txt}\nroot: /x\nnaming: {columns: [\"0\"]}\nmappings: [{field: F, columns: [\"1\"]}, {field: F, columns: [\"2\"]}]",
			problem: "mapped more than once",
		},
		{
			name:    "bad post-processor",
			yaml:    "key: k\nsource: {query: a.txt}\nroot: /x\nnaming: {columns: [\"0\"]}\npost_processors: [{type: reindex}]",
			problem: "post_processors[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("key: k\nsourc: {query: a.txt}\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
}

func TestBuildAndRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.txt"),
		[]byte("A1;Hammer;12.5\nB2;Saw;7"), 0o644))

	def, err := Parse([]byte(productsYAML))
	require.NoError(t, err)

	s := store.NewMemory("/content/products")
	log := core.NewRunLog(nil)
	ic, src, err := def.Build(Runtime{Store: s, Logger: log, Env: source.Env{BaseDir: dir}})
	require.NoError(t, err)
	assert.Len(t, ic.Mappers, 2)
	assert.Len(t, ic.PostProcessors, 1)

	p, err := core.NewProcessor(ic, src, nil)
	require.NoError(t, err)
	summary := p.Process(context.Background())

	assert.Equal(t, core.RunSucceeded, summary.Status)
	assert.Equal(t, 2, summary.Imported)

	children := s.Children("/content/products")
	require.Len(t, children, 2)
	assert.Equal(t, "A1", children[0].Name)
	fields := s.Fields(&children[0])
	assert.Equal(t, "Hammer", fields["Title"])
	assert.Equal(t, "12.50", fields["Price"])
}

func TestBuild_MissingCollaborators(t *testing.T) {
	def, err := Parse([]byte(productsYAML))
	require.NoError(t, err)

	_, _, err = def.Build(Runtime{})
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("products.yaml", productsYAML)
	write("orders.yml", "key: orders\ngroup: Sales\nsource: {kind: csv, query: o.csv}\nroot: /content/orders\nnaming: {columns: [id]}")
	write("notes.txt", "ignored")
	write("broken.yaml", "key: broken\n")

	c, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"Catalog", "Sales"}, c.Groups())

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "products", all[0].Key)
	assert.Equal(t, filepath.Join(dir, "products.yaml"), all[0].Path)

	orders, ok := c.Get("orders")
	require.True(t, ok)
	assert.Equal(t, source.KindCSV, orders.Source.Kind)
	assert.Len(t, c.ByGroup("Sales"), 1)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCatalog_DuplicateKey(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Add(&Definition{Key: "a", Path: "one.yaml"}))
	err := c.Add(&Definition{Key: "a", Path: "two.yaml"})
	assert.ErrorContains(t, err, "one.yaml")
}

func TestShippedDefinitionsAreValid(t *testing.T) {
	c, err := LoadDir(filepath.Join("..", "..", "definitions"))
	require.NoError(t, err)
	require.NotZero(t, c.Len())

	for _, def := range c.All() {
		_, _, err := def.Build(Runtime{Store: store.NewMemory(), Logger: core.NewRunLog(nil), Env: source.Env{}})
		assert.NoError(t, err, def.Key)
	}
}

func TestBuildAndRun_MultiColumnJoin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codes.txt"), []byte("x1;A;B"), 0o644))

	def, err := Parse([]byte(`
key: codes
source:
  query: codes.txt
  settings:
    Field Delimiter: ";"
root: /content/codes
naming:
  columns: ["0"]
mappings:
  - field: Code
    columns: ["1", "2"]
  - field: Spaced
    columns: ["1", "2"]
    delimiter: "-"
`))
	require.NoError(t, err)

	s := store.NewMemory("/content/codes")
	ic, src, err := def.Build(Runtime{Store: s, Logger: core.NewRunLog(nil), Env: source.Env{BaseDir: dir}})
	require.NoError(t, err)
	p, err := core.NewProcessor(ic, src, nil)
	require.NoError(t, err)
	summary := p.Process(context.Background())
	require.Equal(t, core.RunSucceeded, summary.Status)

	children := s.Children("/content/codes")
	require.Len(t, children, 1)
	fields := s.Fields(&children[0])
	assert.Equal(t, "AB", fields["Code"])
	assert.Equal(t, "A-B", fields["Spaced"])
}
