package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove an installed package from the project's trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := c.cwd()
			if err != nil {
				return err
			}
			return c.app.Uninstall(cmd.Context(), cwd, args[0])
		},
	}
}
