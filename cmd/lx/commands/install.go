package commands

import (
	"fmt"
	"os"

	"github.com/nvim-neorocks/lux/internal/app"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/spf13/cobra"
)

func (c *CLI) cwd() (string, error) {
	if c.workdir != "" {
		return c.workdir, nil
	}
	return os.Getwd()
}

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve, build and install the project's dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			noLock, _ := cmd.Flags().GetBool("no-lock")

			cwd, err := c.cwd()
			if err != nil {
				return err
			}

			report, installErr := c.app.Install(cmd.Context(), cwd, app.InstallOptions{
				NoCache: noCache,
				NoLock:  noLock,
			})
			if report != nil {
				printReport(cmd, report)
			}
			return installErr
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the build cache and force a rebuild")
	cmd.Flags().Bool("no-lock", false, "Ignore the lockfile and resolve from scratch")
	return cmd
}

func printReport(cmd *cobra.Command, report *domain.Report) {
	out := cmd.OutOrStdout()
	for _, entry := range report.Entries {
		switch entry.Status {
		case domain.StatusInstalled:
			suffix := ""
			if entry.Cached {
				suffix = " (cached)"
			}
			_, _ = fmt.Fprintf(out, "installed %s%s\n", entry.Package.String(), suffix)
		case domain.StatusFailed:
			_, _ = fmt.Fprintf(out, "failed    %s: %s\n", entry.Package.String(), entry.Failure)
		case domain.StatusSkipped:
			if entry.BlockedBy != "" {
				_, _ = fmt.Fprintf(out, "skipped   %s (blocked by %s)\n", entry.Package.String(), entry.BlockedBy)
			} else {
				_, _ = fmt.Fprintf(out, "skipped   %s\n", entry.Package.String())
			}
		}
	}
}
