package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/store"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			lister, closeFn, err := openLister(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			docs, err := lister.List(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]interface{}{"documents": docs})
			}
			if len(docs) == 0 {
				ui.Info("No documents in %s", cfg.Storage.UploadDir)
				return nil
			}

			rows := make([][]string, 0, len(docs))
			for _, d := range docs {
				uploaded := ""
				if !d.UploadedAt.IsZero() {
					uploaded = d.UploadedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{d.Reference, formatBytes(d.Size), uploaded})
			}
			ui.Table([]string{"REFERENCE", "SIZE", "UPLOADED"}, rows)
			return nil
		},
	}
}

// openLister lists from the catalog when one is configured, otherwise from
// the upload folder.
func openLister(ctx context.Context) (domain.DocumentLister, func(), error) {
	dir, err := store.NewDirectory(cfg.Storage.UploadDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Catalog.Driver == "" || cfg.Catalog.Driver == "none" {
		return dir, func() {}, nil
	}

	catalog, err := store.OpenCatalog(ctx, cfg.Catalog.Driver, cfg.CatalogDSN(), store.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		return nil, nil, err
	}
	if _, err := catalog.Sync(ctx, dir); err != nil {
		logger.Warn().Err(err).Msg("Failed to sync catalog with upload folder")
	}
	return catalog, func() { catalog.Close() }, nil
}
