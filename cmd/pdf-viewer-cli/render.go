package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-viewer/internal/cache"
	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/pdf"
	"github.com/spherical/pdf-viewer/internal/store"
	"github.com/spherical/pdf-viewer/internal/surface"
	"github.com/spherical/pdf-viewer/internal/viewer"
	"github.com/spherical/pdf-viewer/internal/viewport"
)

type renderSummary struct {
	Reference string         `json:"reference"`
	Pages     int            `json:"pages"`
	Files     []string       `json:"files"`
	Failed    map[int]string `json:"failed,omitempty"`
	Duration  string         `json:"duration"`
}

func newRenderCmd() *cobra.Command {
	var (
		outDir         string
		width          int
		viewportHeight int
		scale          float64
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render <reference>",
		Short: "Render every page of a document to PNG files",
		Long: `Render opens a headless viewer session for the document and scrolls through
it the way a reader would. Pages are rendered as they come into view and written
to the output directory as page-NNN.png.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			reference := args[0]
			if scale <= 0 {
				scale = cfg.Render.Scale
			}
			engine, closeEngine, err := newEngine(scale)
			if err != nil {
				return err
			}
			defer closeEngine()

			opts := viewer.DefaultOptions()
			opts.PlaceholderHeight = cfg.Viewport.PlaceholderHeight
			opts.Observation = domain.ObservationOptions{Margin: cfg.Viewport.Margin, Threshold: cfg.Viewport.Threshold}
			opts.MaxConcurrent = cfg.Render.MaxConcurrent
			opts.Logger = logger.WithOperation("render")
			m := viewer.NewManager(engine, viewport.New(), opts)
			defer m.Close()

			start := time.Now()
			spin := ui.Spinner(fmt.Sprintf("Opening %s", reference))
			spin.Start()
			info, err := m.OpenSession(ctx, reference)
			spin.Stop()
			if err != nil {
				ui.Error("Failed to open %s", reference)
				return err
			}
			ui.Info("%s has %d pages", reference, info.PageCount)

			bar := ui.ProgressBar(info.PageCount, "Rendering")
			info, err = scrollThrough(ctx, m, info, viewportHeight, bar.Set)
			bar.Finish()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			summary, err := writePages(m, info, outDir, width)
			if err != nil {
				return err
			}
			summary.Duration = time.Since(start).Round(time.Millisecond).String()

			if outputJSON {
				return printJSON(summary)
			}
			for page, reason := range summary.Failed {
				ui.Warning("Page %d failed: %s", page, reason)
			}
			ui.Success("Wrote %d of %d pages to %s in %s", len(summary.Files), summary.Pages, outDir, summary.Duration)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&width, "width", 0, "scale pages down to this width in pixels (0 keeps the rendered size)")
	cmd.Flags().IntVar(&viewportHeight, "viewport-height", 900, "height of the simulated viewport in pixels")
	cmd.Flags().Float64Var(&scale, "scale", 0, "render scale (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall timeout")

	return cmd
}

// newEngine builds a rendering engine over the configured document source,
// wrapped in the page cache the API uses when one is configured. The returned
// function releases the cache connection.
func newEngine(scale float64) (domain.Engine, func(), error) {
	var source domain.DocumentSource
	if cfg.Storage.RemoteBaseURL != "" {
		source = store.NewHTTPSource(cfg.Storage.RemoteBaseURL, cfg.Render.Timeout)
	} else {
		dir, err := store.NewDirectory(cfg.Storage.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		source = dir
	}

	var engine domain.Engine = pdf.NewEngine(source, pdf.WithScale(scale), pdf.WithLogger(logger))
	switch cfg.Cache.Driver {
	case "redis":
		rc, err := connectRedis()
		if err != nil {
			return nil, nil, err
		}
		return pdf.NewCachingEngine(engine, rc, cfg.Cache.TTL, scale, logger), func() { rc.Close() }, nil
	case "memory":
		mem := cache.NewMemoryClient(cfg.Cache.MaxEntries)
		return pdf.NewCachingEngine(engine, mem, cfg.Cache.TTL, scale, logger), func() { mem.Close() }, nil
	default:
		return engine, func() {}, nil
	}
}

// connectRedis opens the Redis connection shared by the page cache and events.
func connectRedis() (*cache.RedisClient, error) {
	rc, err := cache.NewRedisClient(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		PoolSize: cfg.Cache.Redis.PoolSize,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rc, nil
}

// scrollThrough moves the viewport down one screen at a time until every page
// has settled or the end of the content is reached. progress receives the
// number of settled pages after each step.
func scrollThrough(ctx context.Context, m *viewer.Manager, info domain.SessionInfo, height int, progress func(int)) (domain.SessionInfo, error) {
	if height <= 0 {
		return info, fmt.Errorf("viewport height must be positive, got %d", height)
	}

	top := 0
	for {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		if err := m.Scroll(info.Generation, top, height); err != nil {
			return info, err
		}
		m.Wait()

		current, err := m.Session()
		if err != nil {
			return info, err
		}
		info = current

		done := settled(info)
		progress(done)
		if done == info.PageCount {
			return info, nil
		}

		top += height
		if top >= contentHeight(m.Elements()) {
			return info, nil
		}
	}
}

func settled(info domain.SessionInfo) int {
	n := 0
	for _, slot := range info.Pages {
		if slot.Status == domain.StatusRendered || slot.Status == domain.StatusFailed {
			n++
		}
	}
	return n
}

func contentHeight(elements []surface.Element) int {
	total := 0
	for _, el := range elements {
		if el.Height > 0 {
			total += el.Height
		} else {
			total += el.MinHeight
		}
	}
	return total
}

func writePages(m *viewer.Manager, info domain.SessionInfo, outDir string, width int) (renderSummary, error) {
	summary := renderSummary{Reference: info.Reference, Pages: info.PageCount, Files: []string{}}
	for _, slot := range info.Pages {
		switch slot.Status {
		case domain.StatusFailed:
			if summary.Failed == nil {
				summary.Failed = make(map[int]string)
			}
			summary.Failed[slot.Page] = slot.Reason
			continue
		case domain.StatusRendered:
		default:
			continue
		}

		canvas, err := m.Canvas(slot.Page)
		if err != nil {
			return summary, err
		}
		data, err := canvas.Thumbnail(width)
		if err != nil {
			return summary, fmt.Errorf("encode page %d: %w", slot.Page, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("page-%03d.png", slot.Page))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return summary, fmt.Errorf("write page %d: %w", slot.Page, err)
		}
		summary.Files = append(summary.Files, path)
	}
	return summary, nil
}
