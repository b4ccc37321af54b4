package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// DefaultMediaPrefix marks a query that names a media item in the target
// store instead of a file.
const DefaultMediaPrefix = "media:"

// DefaultMaxFileSize is the largest source file read when no limit is set.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// MediaLibrary gives access to binary items held by the target store.
type MediaLibrary interface {
	// OpenMedia opens the media item at path. A missing item returns an
	// error wrapping fs.ErrNotExist.
	OpenMedia(ctx context.Context, path string) (io.ReadCloser, error)
}

// Env carries the collaborators and limits shared by every source.
type Env struct {
	Media          MediaLibrary
	MediaPrefix    string
	BaseDir        string // Relative file queries are resolved against it
	MaxFileSize    int64
	StrictEncoding bool    // Default for the "Strict Encoding" setting
	Pool           Querier // Required by the sql source
}

func (e Env) mediaPrefix() string {
	if e.MediaPrefix == "" {
		return DefaultMediaPrefix
	}
	return e.MediaPrefix
}

func (e Env) maxFileSize() int64 {
	if e.MaxFileSize == 0 {
		return DefaultMaxFileSize
	}
	return e.MaxFileSize
}

// IsMedia reports whether query refers to the media library.
func (e Env) IsMedia(query string) bool {
	return strings.HasPrefix(query, e.mediaPrefix())
}

// open resolves query to a reader. Every failure is a SourceError.
func (e Env) open(ctx context.Context, query string) (io.ReadCloser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.Unavailable(query, "empty source query", nil)
	}

	if e.IsMedia(query) {
		path := strings.TrimPrefix(query, e.mediaPrefix())
		if e.Media == nil {
			return nil, core.Unavailable(query, "no media library configured", nil)
		}
		rc, err := e.Media.OpenMedia(ctx, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, core.Unavailable(path, "media item not found", err)
			}
			return nil, core.Unavailable(path, "open media item", err)
		}
		return rc, nil
	}

	path := query
	if e.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(e.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.Unavailable(path, "file not found", err)
		}
		return nil, core.Unavailable(path, "open file", err)
	}
	return f, nil
}

// readAll loads the whole content behind query, honoring the size limit.
func (e Env) readAll(ctx context.Context, query string) ([]byte, error) {
	rc, err := e.open(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(NewLimitReader(rc, e.maxFileSize()))
	if err != nil {
		return nil, core.Unavailable(query, "read source", err)
	}
	return data, nil
}

// wrapErr turns a parse failure into a SourceError for query.
func wrapErr(query, what string, err error) error {
	return core.Unavailable(query, fmt.Sprintf("parse %s", what), err)
}
