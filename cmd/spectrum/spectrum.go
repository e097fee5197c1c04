package spectrum

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/runcat/internal/config"
	"github.com/tphakala/runcat/internal/spectral"
)

// output is the YAML rendering of a spectrum.
type output struct {
	RuncatID   uint      `yaml:"runcat_id"`
	HeadID     uint      `yaml:"head_id"`
	RA         float64   `yaml:"ra"`
	Decl       float64   `yaml:"decl"`
	Datapoints int       `yaml:"datapoints"`
	Order      int       `yaml:"order"`
	Coeffs     []float64 `yaml:"coefficients"`
	ChiSquare  float64   `yaml:"chi_square,omitempty"`
	Bands      int       `yaml:"bands,omitempty"`
	FittedAt   time.Time `yaml:"fitted_at"`
	Cached     bool      `yaml:"cached"`
}

// Command creates the spectrum command, which prints the fitted spectral
// model of a catalog entry.
func Command(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "spectrum <runcat-id>",
		Short: "Print the spectral model of a catalog entry",
		Long:  `Print log10(S) = sum c_k log10(nu)^k for a catalog entry, refitting it if its detections changed since the last fit. Merged ids resolve to their group head.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid catalog id %q", args[0])
			}
			if err := ctx.OpenStore(true); err != nil {
				return err
			}

			svc := spectral.NewService(ctx.Store, spectral.NewFitter(&ctx.Settings.Spectral), ctx.Metrics.Catalog, ctx.Logger)
			sp, err := svc.Spectrum(cmd.Context(), uint(id))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer func() { _ = enc.Close() }()
			return enc.Encode(output{
				RuncatID:   sp.RuncatID,
				HeadID:     sp.HeadID,
				RA:         sp.RA,
				Decl:       sp.Decl,
				Datapoints: sp.Datapoints,
				Order:      sp.Order,
				Coeffs:     sp.Coeffs,
				ChiSquare:  sp.ChiSquare,
				Bands:      sp.Bands,
				FittedAt:   sp.FittedAt,
				Cached:     sp.Cached,
			})
		},
	}
}
