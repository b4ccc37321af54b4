package store

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/dataimport/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool (and pgx.Tx) used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres is a TargetStore backed by the import_* tables.
//
// Between BeginBatch and EndBatch every statement runs in one transaction
// and each write gets its own savepoint, so a failed write is rolled back
// without losing the rest of the run. A Postgres value serves one run at a
// time; create one per run.
type Postgres struct {
	db DB

	mu  sync.Mutex
	tx  pgx.Tx
	seq int
}

// NewPostgres creates a store over db.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// toPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// conn returns the open transaction, or the pool outside a batch.
// Callers must hold p.mu.
func (p *Postgres) conn() DB {
	if p.tx != nil {
		return p.tx
	}
	return p.db
}

// write runs fn inside a savepoint when a batch is open.
func (p *Postgres) write(ctx context.Context, fn func(q DB) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx == nil {
		return fn(p.db)
	}

	p.seq++
	savepoint := fmt.Sprintf("sp_%d", p.seq)
	if _, err := p.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(p.tx); err != nil {
		_, _ = p.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
		return err
	}

	_, _ = p.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)
	return nil
}

func scanItem(row pgx.Row) (*core.Item, error) {
	var (
		id   pgtype.UUID
		item core.Item
	)
	if err := row.Scan(&id, &item.Name, &item.Path); err != nil {
		return nil, err
	}
	item.ID = uuid.UUID(id.Bytes).String()
	return &item, nil
}

// ResolveParent implements core.TargetStore.
func (p *Postgres) ResolveParent(ctx context.Context, path string) (*core.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, err := scanItem(p.conn().QueryRow(ctx,
		`SELECT id, name, path FROM import_items WHERE path = $1`, normalizePath(path)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return item, nil
}

// EnsurePath creates every missing container along path and returns the
// last one.
func (p *Postgres) EnsurePath(ctx context.Context, path string) (*core.Item, error) {
	var parent *core.Item
	current := ""
	for _, seg := range strings.Split(strings.TrimPrefix(normalizePath(path), "/"), "/") {
		if seg == "" {
			continue
		}
		current += "/" + seg
		existing, err := p.ResolveParent(ctx, current)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			existing, err = p.upsert(ctx, parent, seg, current)
			if err != nil {
				return nil, err
			}
		}
		parent = existing
	}
	if parent == nil {
		return nil, fmt.Errorf("empty path")
	}
	return parent, nil
}

// CreateOrUpdate implements core.TargetStore.
func (p *Postgres) CreateOrUpdate(ctx context.Context, parent *core.Item, name string, _ core.RowRecord) (*core.Item, error) {
	if parent == nil {
		return nil, ErrNoParent
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("item name is empty")
	}
	return p.upsert(ctx, parent, name, core.JoinPath(parent.Path, name))
}

func (p *Postgres) upsert(ctx context.Context, parent *core.Item, name, path string) (*core.Item, error) {
	parentID := pgtype.UUID{}
	if parent != nil {
		parentID = toPgUUID(parent.ID)
	}

	var item *core.Item
	err := p.write(ctx, func(q DB) error {
		var err error
		item, err = scanItem(q.QueryRow(ctx, `
			INSERT INTO import_items (id, parent_id, name, path)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (path) DO UPDATE SET updated_at = now()
			RETURNING id, name, path`,
			toPgUUID(uuid.NewString()), parentID, name, path))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}
	return item, nil
}

// SetField implements core.TargetStore.
func (p *Postgres) SetField(ctx context.Context, item *core.Item, field, value string) error {
	err := p.write(ctx, func(q DB) error {
		_, err := q.Exec(ctx, `
			INSERT INTO import_fields (item_id, field, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (item_id, field) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			toPgUUID(item.ID), field, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("set %s on %s: %w", field, item.Path, err)
	}
	return nil
}

// Field implements core.TargetStore.
func (p *Postgres) Field(ctx context.Context, item *core.Item, field string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var value string
	err := p.conn().QueryRow(ctx,
		`SELECT value FROM import_fields WHERE item_id = $1 AND field = $2`,
		toPgUUID(item.ID), field).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s on %s: %w", field, item.Path, err)
	}
	return value, true, nil
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Walk implements core.TargetStore. Items are loaded before fn is called so
// fn may use the store.
func (p *Postgres) Walk(ctx context.Context, root *core.Item, fn func(*core.Item) error) error {
	if root == nil {
		return ErrNoParent
	}

	items, err := p.subtree(ctx, normalizePath(root.Path))
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) subtree(ctx context.Context, path string) ([]*core.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.conn().Query(ctx, `
		SELECT id, name, path FROM import_items
		WHERE path = $1 OR path LIKE $2
		ORDER BY seq`,
		path, escapeLike(path)+"/%")
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	defer rows.Close()

	var items []*core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// BeginBatch implements core.TargetStore.
func (p *Postgres) BeginBatch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx != nil {
		return fmt.Errorf("batch already in progress")
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	p.tx = tx
	p.seq = 0
	return nil
}

// EndBatch implements core.TargetStore. It commits the batch.
func (p *Postgres) EndBatch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx == nil {
		return ErrNoBatch
	}
	tx := p.tx
	p.tx = nil
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PutMedia stores a media item at path.
func (p *Postgres) PutMedia(ctx context.Context, path string, data []byte) error {
	return p.write(ctx, func(q DB) error {
		_, err := q.Exec(ctx, `
			INSERT INTO import_media (path, data) VALUES ($1, $2)
			ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, created_at = now()`,
			normalizePath(path), data)
		return err
	})
}

// OpenMedia implements source.MediaLibrary.
func (p *Postgres) OpenMedia(ctx context.Context, path string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var data []byte
	err := p.conn().QueryRow(ctx, `SELECT data FROM import_media WHERE path = $1`, normalizePath(path)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("media %s: %w", path, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Reset truncates every import table. This is a destructive operation.
func (p *Postgres) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.conn().Exec(ctx, `TRUNCATE import_fields, import_items, import_media`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
