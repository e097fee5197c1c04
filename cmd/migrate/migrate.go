package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/runcat/internal/config"
)

// Command creates the migrate command, which creates or updates the schema.
func Command(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.OpenStore(true); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s (%s)\n",
				ctx.Manager.Path(), ctx.Settings.Database.Type)
			return err
		},
	}
}
