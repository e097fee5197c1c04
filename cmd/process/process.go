package process

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tphakala/runcat/internal/config"
	"github.com/tphakala/runcat/internal/observability"
	"github.com/tphakala/runcat/internal/parset"
	"github.com/tphakala/runcat/internal/pipeline"
)

// Command creates the process command, which merges images into the catalog.
func Command(ctx *config.Context) *cobra.Command {
	var pending bool
	var limit int

	cmd := &cobra.Command{
		Use:   "process <image-id>... | --pending",
		Short: "Merge images into the running catalog",
		Long:  `Process the given images in order, or every unprocessed image with --pending. Processing stops at the first failure; that image is left unprocessed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if pending && len(args) > 0 {
				return fmt.Errorf("image ids and --pending are mutually exclusive")
			}
			if !pending && len(args) == 0 {
				return fmt.Errorf("requires image ids or --pending")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := ctx.OpenStore(true); err != nil {
				return err
			}

			stop, err := startMetrics(ctx)
			if err != nil {
				return err
			}
			defer stop()

			engine, err := pipeline.NewEngine(ctx.Settings, ctx.Store,
				parset.NewProvider(&ctx.Settings.Parset, ctx.Store.Images),
				ctx.Build, ctx.Logger, pipeline.WithMetrics(ctx.Metrics.Catalog))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if pending {
				reports, err := engine.ProcessPending(cmd.Context(), limit)
				for _, r := range reports {
					printReport(out, r)
				}
				return err
			}
			for _, id := range ids {
				r, err := engine.ProcessImage(cmd.Context(), id)
				if err != nil {
					return err
				}
				printReport(out, r)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Process all unprocessed images in id order")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of images to process with --pending (0: no limit)")

	return cmd
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 0)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid image id %q", a)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// startMetrics serves /metrics while the command runs when enabled.
func startMetrics(ctx *config.Context) (func(), error) {
	if !ctx.Settings.Metrics.Enabled {
		return func() {}, nil
	}
	endpoint, err := observability.NewEndpoint(&ctx.Settings.Metrics, ctx.Metrics, ctx.Logger)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	quit := make(chan struct{})
	if err := endpoint.Start(&wg, quit); err != nil {
		return nil, err
	}
	return func() {
		close(quit)
		wg.Wait()
	}, nil
}

func printReport(w io.Writer, r *pipeline.Report) {
	_, _ = fmt.Fprintf(w, "image %d: %d sources, %d candidates, %d updated, %d groups (%d merged), %d new, %d active entries [%s]\n",
		r.ImageID, r.Sources, r.Candidates, r.Updated, r.Groups, r.Merged, r.Created, r.Active, r.Duration)
}

