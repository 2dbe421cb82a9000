//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/pdf-viewer/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pdf_viewer_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/pdf_viewer_test?sslmode=disable", host, port.Port())
}

func TestCatalog_Postgres(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	c, err := OpenCatalog(ctx, "postgres", dsn, PoolOptions{MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Record(ctx, domain.DocumentInfo{Reference: "b.pdf", Size: 2, UploadedAt: base.Add(time.Minute)}))
	require.NoError(t, c.Record(ctx, domain.DocumentInfo{Reference: "a.pdf", Size: 1, SHA256: "ff", UploadedAt: base}))
	require.NoError(t, c.Record(ctx, domain.DocumentInfo{Reference: "a.pdf", Size: 5, SHA256: "ff", UploadedAt: base}))

	docs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Reference)
	assert.Equal(t, int64(5), docs[0].Size)
	assert.True(t, docs[0].UploadedAt.Equal(base))

	require.NoError(t, c.Remove(ctx, "b.pdf"))
	assert.ErrorIs(t, c.Remove(ctx, "b.pdf"), domain.ErrNotFound)

	// Reopening runs the schema again without error.
	again, err := OpenCatalog(ctx, "postgres", dsn, PoolOptions{})
	require.NoError(t, err)
	defer again.Close()
	docs, err = again.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCatalog_PostgresSync(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	root := t.TempDir()
	for _, name := range []string{"one.pdf", "two.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("%PDF-1.4"), 0o644))
	}
	dir, err := NewDirectory(root)
	require.NoError(t, err)

	c, err := OpenCatalog(ctx, "postgres", dsn, PoolOptions{})
	require.NoError(t, err)
	defer c.Close()

	added, err := c.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = c.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}
