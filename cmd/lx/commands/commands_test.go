package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/nvim-neorocks/lux/cmd/lx/commands"
	"github.com/nvim-neorocks/lux/internal/app"
	"github.com/nvim-neorocks/lux/internal/build"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockApp struct {
	installFunc   func(ctx context.Context, cwd string, opts app.InstallOptions) (*domain.Report, error)
	lockFunc      func(ctx context.Context, cwd string) (*domain.Resolution, error)
	uninstallFunc func(ctx context.Context, cwd, name string) error
	listFunc      func(ctx context.Context, cwd string) (map[domain.RuntimeVariant][]domain.InstalledPackage, error)
}

func (m *mockApp) Install(ctx context.Context, cwd string, opts app.InstallOptions) (*domain.Report, error) {
	if m.installFunc != nil {
		return m.installFunc(ctx, cwd, opts)
	}
	return &domain.Report{}, nil
}

func (m *mockApp) Lock(ctx context.Context, cwd string) (*domain.Resolution, error) {
	if m.lockFunc != nil {
		return m.lockFunc(ctx, cwd)
	}
	return domain.NewResolution(), nil
}

func (m *mockApp) Uninstall(ctx context.Context, cwd, name string) error {
	if m.uninstallFunc != nil {
		return m.uninstallFunc(ctx, cwd, name)
	}
	return nil
}

func (m *mockApp) List(ctx context.Context, cwd string) (map[domain.RuntimeVariant][]domain.InstalledPackage, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, cwd)
	}
	return nil, nil
}

func newCLI(mock *mockApp) (*commands.CLI, *bytes.Buffer) {
	cli := commands.New(mock)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetWorkdir("/project")
	return cli, buf
}

func TestCommands_Install(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.InstallOptions
		var capturedCwd string
		called := false

		mock := &mockApp{
			installFunc: func(_ context.Context, cwd string, opts app.InstallOptions) (*domain.Report, error) {
				capturedOpts = opts
				capturedCwd = cwd
				called = true
				return &domain.Report{}, nil
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"install", "--no-cache", "--no-lock"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.True(t, capturedOpts.NoCache)
		assert.True(t, capturedOpts.NoLock)
		assert.Equal(t, "/project", capturedCwd)
	})

	t.Run("prints the report", func(t *testing.T) {
		report := &domain.Report{}
		report.Add(domain.ReportEntry{
			Package: domain.PackageKey{Name: "penlight", Variant: domain.Lua54},
			Status:  domain.StatusInstalled,
			Cached:  true,
		})
		report.Add(domain.ReportEntry{
			Package: domain.PackageKey{Name: "luafilesystem", Variant: domain.Lua54},
			Status:  domain.StatusFailed,
			Failure: domain.FailFetch,
		})
		report.Add(domain.ReportEntry{
			Package:   domain.PackageKey{Name: "ldoc", Variant: domain.Lua54},
			Status:    domain.StatusSkipped,
			BlockedBy: "luafilesystem",
		})

		mock := &mockApp{
			installFunc: func(_ context.Context, _ string, _ app.InstallOptions) (*domain.Report, error) {
				return report, domain.ErrInstallFailed
			},
		}

		cli, buf := newCLI(mock)
		cli.SetArgs([]string{"install"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInstallFailed)

		out := buf.String()
		assert.Contains(t, out, "installed penlight")
		assert.Contains(t, out, "(cached)")
		assert.Contains(t, out, "failed    luafilesystem")
		assert.Contains(t, out, "blocked by luafilesystem")
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		cli, _ := newCLI(&mockApp{})
		cli.SetArgs([]string{"install", "penlight"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
	})
}

func TestCommands_Lock(t *testing.T) {
	res := domain.NewResolution()
	require.NoError(t, res.Add(&domain.ResolvedPackage{
		Name:    "penlight",
		Version: domain.MustParseVersion("1.14.0"),
		Variant: domain.Lua54,
	}))

	mock := &mockApp{
		lockFunc: func(_ context.Context, _ string) (*domain.Resolution, error) {
			return res, nil
		},
	}

	cli, buf := newCLI(mock)
	cli.SetArgs([]string{"lock"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "locked 1 packages")
}

func TestCommands_Uninstall(t *testing.T) {
	t.Run("passes the package name", func(t *testing.T) {
		var captured string
		mock := &mockApp{
			uninstallFunc: func(_ context.Context, _, name string) error {
				captured = name
				return nil
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"uninstall", "penlight"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "penlight", captured)
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		cli, _ := newCLI(&mockApp{})
		cli.SetArgs([]string{"uninstall"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
	})

	t.Run("surfaces not-installed errors", func(t *testing.T) {
		mock := &mockApp{
			uninstallFunc: func(_ context.Context, _, _ string) error {
				return domain.ErrNotInstalled
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"uninstall", "ghost"})

		err := cli.Execute(context.Background())
		assert.ErrorIs(t, err, domain.ErrNotInstalled)
	})
}

func TestCommands_List(t *testing.T) {
	mock := &mockApp{
		listFunc: func(_ context.Context, _ string) (map[domain.RuntimeVariant][]domain.InstalledPackage, error) {
			return map[domain.RuntimeVariant][]domain.InstalledPackage{
				domain.Lua51: {},
				domain.Lua54: {{Name: "penlight", Version: "1.14.0"}},
			}, nil
		},
	}

	cli, buf := newCLI(mock)
	cli.SetArgs([]string{"list"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "lua5.1:\n  (none)")
	assert.Contains(t, out, "lua5.4:\n  penlight 1.14.0")
}

func TestCommands_Version(t *testing.T) {
	cli, buf := newCLI(&mockApp{})
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "lx version "+build.Version)
}

func TestCommands_RunFailurePropagates(t *testing.T) {
	mock := &mockApp{
		installFunc: func(_ context.Context, _ string, _ app.InstallOptions) (*domain.Report, error) {
			return nil, errors.New("simulated error")
		},
	}

	cli, _ := newCLI(mock)
	cli.SetArgs([]string{"install"})

	err := cli.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated error")
}
