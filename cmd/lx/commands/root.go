// Package commands implements the CLI commands for the lx package manager.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/nvim-neorocks/lux/internal/app"
	"github.com/nvim-neorocks/lux/internal/build"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/spf13/cobra"
)

// CLI represents the command line interface for lx.
type CLI struct {
	app     Application
	rootCmd *cobra.Command

	// workdir overrides os.Getwd for project discovery. Used for testing.
	workdir string
}

// Application represents the application logic interface.
type Application interface {
	Install(ctx context.Context, cwd string, opts app.InstallOptions) (*domain.Report, error)
	Lock(ctx context.Context, cwd string) (*domain.Resolution, error)
	Uninstall(ctx context.Context, cwd, name string) error
	List(ctx context.Context, cwd string) (map[domain.RuntimeVariant][]domain.InstalledPackage, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "lx",
		Short:         "A package manager for the Lua ecosystem",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newUninstallCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetWorkdir pins project discovery to dir instead of the process working
// directory. Used for testing.
func (c *CLI) SetWorkdir(dir string) {
	c.workdir = dir
}
