package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/pdf-viewer/internal/domain"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	reference   TEXT NOT NULL UNIQUE,
	size        INTEGER NOT NULL,
	sha256      TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMP NOT NULL
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id          UUID PRIMARY KEY,
	reference   TEXT NOT NULL UNIQUE,
	size        BIGINT NOT NULL,
	sha256      TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL
)`

// PoolOptions tunes the connection pool of a catalog.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Catalog records uploaded documents in SQL and lists them by upload time.
type Catalog struct {
	db     DB
	closer func() error
}

// OpenCatalog connects to the database and creates the documents table.
// driver is "sqlite" or "postgres".
func OpenCatalog(ctx context.Context, driver, dsn string, pool PoolOptions) (*Catalog, error) {
	var sqlDriver, schema string
	switch driver {
	case "sqlite":
		sqlDriver, schema = "sqlite3", sqliteSchema
	case "postgres":
		sqlDriver, schema = "postgres", postgresSchema
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported catalog driver %q", driver), nil)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s catalog: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s catalog: %w", driver, err)
	}

	c := NewCatalog(db)
	c.closer = db.Close
	return c, nil
}

// NewCatalog wraps an existing connection whose schema is already in place.
func NewCatalog(db DB) *Catalog {
	return &Catalog{db: db}
}

// Record inserts or updates the entry for info.Reference.
func (c *Catalog) Record(ctx context.Context, info domain.DocumentInfo) error {
	if info.UploadedAt.IsZero() {
		info.UploadedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, reference, size, sha256, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reference) DO UPDATE
		SET size = excluded.size, sha256 = excluded.sha256, uploaded_at = excluded.uploaded_at
	`
	_, err := c.db.ExecContext(ctx, query,
		uuid.New().String(), info.Reference, info.Size, info.SHA256, info.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", info.Reference, err)
	}
	return nil
}

// List returns all recorded documents, oldest upload first.
func (c *Catalog) List(ctx context.Context) ([]domain.DocumentInfo, error) {
	query := `
		SELECT reference, size, sha256, uploaded_at
		FROM documents
		ORDER BY uploaded_at, reference
	`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentInfo
	for rows.Next() {
		var d domain.DocumentInfo
		if err := rows.Scan(&d.Reference, &d.Size, &d.SHA256, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Remove deletes the entry for reference.
func (c *Catalog) Remove(ctx context.Context, reference string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE reference = $1`, reference)
	if err != nil {
		return fmt.Errorf("remove %s: %w", reference, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, reference)
	}
	return nil
}

// Sync records every document listed by src that the catalog does not know yet,
// so files placed in the upload folder out of band still appear.
func (c *Catalog) Sync(ctx context.Context, src domain.DocumentLister) (int, error) {
	known, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(known))
	for _, d := range known {
		seen[d.Reference] = true
	}

	docs, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, d := range docs {
		if seen[d.Reference] {
			continue
		}
		if err := c.Record(ctx, d); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Close closes the connection opened by OpenCatalog.
func (c *Catalog) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
