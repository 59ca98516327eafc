package commands

import (
	"fmt"
	"sort"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/spf13/cobra"
)

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages per runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := c.cwd()
			if err != nil {
				return err
			}

			installed, err := c.app.List(cmd.Context(), cwd)
			if err != nil {
				return err
			}

			variants := make([]domain.RuntimeVariant, 0, len(installed))
			for variant := range installed {
				variants = append(variants, variant)
			}
			sort.Slice(variants, func(i, j int) bool { return variants[i] < variants[j] })

			out := cmd.OutOrStdout()
			for _, variant := range variants {
				_, _ = fmt.Fprintf(out, "%s:\n", variant)
				if len(installed[variant]) == 0 {
					_, _ = fmt.Fprintln(out, "  (none)")
					continue
				}
				for _, pkg := range installed[variant] {
					_, _ = fmt.Fprintf(out, "  %s %s\n", pkg.Name, pkg.Version)
				}
			}
			return nil
		},
	}
}
