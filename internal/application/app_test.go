package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataimport/internal/config"
	"github.com/JonMunkholm/dataimport/internal/core"
)

const notesYAML = `
key: notes
source:
  query: notes.txt
root: /content/notes
naming:
  columns: ["0"]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte(notesYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("key: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("first\nsecond"), 0o644))

	return &config.Config{
		Import: config.ImportConfig{
			DefinitionsDir:  dir,
			BaseDir:         dir,
			MaxConcurrent:   1,
			MaxWaitTime:     time.Second,
			RunTimeout:      time.Minute,
			ResultRetention: time.Minute,
			CreateRoots:     true,
		},
	}
}

func TestOpen_MemoryStore(t *testing.T) {
	ctx := context.Background()
	app, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, 1, app.Catalog.Len())
	require.NotNil(t, app.Memory())

	root, err := app.Memory().ResolveParent(ctx, "/content/notes")
	require.NoError(t, err)
	require.NotNil(t, root)

	id, err := app.Jobs.Start(ctx, "notes")
	require.NoError(t, err)
	summary, err := app.Jobs.Result(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.RunSucceeded, summary.Status)
	assert.Len(t, app.Memory().Children("/content/notes"), 2)
}

func TestReset_RecreatesRoots(t *testing.T) {
	ctx := context.Background()
	app, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	app.Memory().EnsurePath("/content/notes/old")
	require.NoError(t, app.Reset(ctx))

	root, err := app.Memory().ResolveParent(ctx, "/content/notes")
	require.NoError(t, err)
	assert.NotNil(t, root)
	assert.Empty(t, app.Memory().Children("/content/notes"))
}
