package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/runcat/internal/config"
	"github.com/tphakala/runcat/internal/ingest"
)

// Command creates the ingest command, which loads image files into the store.
func Command(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <image.yaml>...",
		Short: "Load image files into the store",
		Long:  `Register each image with its frequency band and store its validated detections. Files are ingested in order; the first failure stops the command.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.OpenStore(true); err != nil {
				return err
			}
			assoc := ctx.Settings.Association
			ingester := ingest.NewIngester(ctx.Store, assoc.ZoneWidth, assoc.BatchSize, ctx.Logger)

			for _, path := range args {
				res, err := ingester.IngestFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: image %d, band %d, %d sources\n",
					path, res.Image.ID, res.Image.BandID, res.Sources); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
