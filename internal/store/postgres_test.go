package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// newTestPool connects to TEST_DATABASE_URL or skips the test.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, pool))
	require.NoError(t, NewPostgres(pool).Reset(ctx))
	return pool
}

func TestPostgres_RoundTrip(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	s := NewPostgres(pool)

	root, err := s.EnsurePath(ctx, "/content/products")
	require.NoError(t, err)

	require.NoError(t, s.BeginBatch(ctx))
	item, err := s.CreateOrUpdate(ctx, root, "Widget_100%", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetField(ctx, item, "Title", ""))

	again, err := s.CreateOrUpdate(ctx, root, "Widget_100%", nil)
	require.NoError(t, err)
	assert.Equal(t, item.ID, again.ID)

	// A failing write must not poison the batch.
	err = s.SetField(ctx, &core.Item{ID: "00000000-0000-0000-0000-000000000001", Path: "/x"}, "Title", "x")
	assert.Error(t, err)
	require.NoError(t, s.EndBatch(ctx))

	v, ok, err := s.Field(ctx, item, "Title")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	var paths []string
	require.NoError(t, s.Walk(ctx, root, func(it *core.Item) error {
		paths = append(paths, it.Path)
		return nil
	}))
	assert.Equal(t, []string{"/content/products", "/content/products/Widget_100%"}, paths)
}

func TestPostgres_Media(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	s := NewPostgres(pool)

	require.NoError(t, s.PutMedia(ctx, "/media/file", []byte("x;y")))
	rc, err := s.OpenMedia(ctx, "/media/file")
	require.NoError(t, err)
	defer rc.Close()

	_, err = s.OpenMedia(ctx, "/media/none")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `/a\_b\%c\\d`, escapeLike(`/a_b%c\d`))
}
