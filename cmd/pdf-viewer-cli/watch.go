package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-viewer/internal/store"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print documents as they are uploaded",
		Long: `Watch subscribes to the upload event channel on Redis and prints every
document the API stores until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rc, err := connectRedis()
			if err != nil {
				return err
			}
			defer rc.Close()

			ui.Info("Watching %s for uploads (Ctrl+C to stop)", cfg.Events.Channel)
			return store.WatchUploads(ctx, rc, cfg.Events.Channel, logger, func(evt store.UploadEvent) {
				if outputJSON {
					printJSON(evt)
					return
				}
				ui.Success("%s  %s  %s", evt.Timestamp.Local().Format("15:04:05"), evt.Reference, formatBytes(evt.Size))
			})
		},
	}
}
