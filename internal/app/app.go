// Package app implements the application layer for lux.
package app

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/nvim-neorocks/lux/internal/adapters/lockfile"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"github.com/nvim-neorocks/lux/internal/engine/builder"
	"github.com/nvim-neorocks/lux/internal/engine/resolver"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App wires the resolver and builder engines to the project on disk.
type App struct {
	loader    ports.ProjectLoader
	provider  ports.ManifestProvider
	resolver  *resolver.Resolver
	builder   *builder.Builder
	fetcher   ports.SourceFetcher
	installer ports.Installer
	logger    ports.Logger

	arch string
}

// New creates a new App instance.
func New(
	loader ports.ProjectLoader,
	provider ports.ManifestProvider,
	res *resolver.Resolver,
	bld *builder.Builder,
	fetcher ports.SourceFetcher,
	installer ports.Installer,
	logger ports.Logger,
) *App {
	return &App{
		loader:    loader,
		provider:  provider,
		resolver:  res,
		builder:   bld,
		fetcher:   fetcher,
		installer: installer,
		logger:    logger,
		arch:      runtime.GOOS + "-" + runtime.GOARCH,
	}
}

// InstallOptions configuration for the Install method.
type InstallOptions struct {
	NoCache bool
	// NoLock forces a fresh resolution even when the lockfile is current.
	NoLock bool
}

// Install resolves, builds and installs the project's dependency closure.
// A current lockfile short-circuits resolution; a stale or missing one
// triggers a fresh resolve and a lockfile rewrite.
func (a *App) Install(ctx context.Context, cwd string, opts InstallOptions) (*domain.Report, error) {
	project, root, err := a.loadProject(cwd)
	if err != nil {
		return nil, err
	}

	res, err := a.resolution(ctx, project, root, opts.NoLock)
	if err != nil {
		return nil, err
	}

	a.prefetch(ctx, res, project.parallelism())

	report, err := a.builder.Run(ctx, res, builder.Options{
		Arch:        a.arch,
		Parallelism: project.Parallelism,
		BestEffort:  project.BestEffort,
		NoCache:     opts.NoCache,
	})
	if err != nil {
		return nil, err
	}

	if !report.Success() {
		return report, zerr.With(
			zerr.With(domain.ErrInstallFailed, "failed", len(report.Failed())),
			"skipped", len(report.Skipped()),
		)
	}
	return report, nil
}

// Lock resolves the project and writes the lockfile without building.
func (a *App) Lock(ctx context.Context, cwd string) (*domain.Resolution, error) {
	project, root, err := a.loadProject(cwd)
	if err != nil {
		return nil, err
	}

	res, err := a.resolver.Resolve(ctx, project.Requirements, project.Runtimes)
	if err != nil {
		return nil, err
	}

	if err := lockfile.Save(a.lockPath(root), res, project.Requirements); err != nil {
		return nil, err
	}
	a.logger.Info("wrote lockfile", "packages", res.Len())
	return res, nil
}

// Uninstall removes an installed package from every runtime tree of the
// project that holds it.
func (a *App) Uninstall(ctx context.Context, cwd, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	project, _, err := a.loadProject(cwd)
	if err != nil {
		return err
	}

	removed := false
	for _, variant := range project.Runtimes {
		target := domain.Target{Runtime: variant, Arch: a.arch}
		installed, err := a.installer.List(target)
		if err != nil {
			return err
		}
		for _, entry := range installed {
			if entry.Name != name {
				continue
			}
			if err := a.installer.Uninstall(target, entry.Name, entry.Version); err != nil {
				return err
			}
			a.logger.Info("uninstalled", "package", name, "target", target.String())
			removed = true
		}
	}

	if !removed {
		return zerr.With(domain.ErrNotInstalled, "package", name)
	}
	return nil
}

// List returns the installed packages per runtime variant of the project.
func (a *App) List(ctx context.Context, cwd string) (map[domain.RuntimeVariant][]domain.InstalledPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	project, _, err := a.loadProject(cwd)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.RuntimeVariant][]domain.InstalledPackage, len(project.Runtimes))
	for _, variant := range project.Runtimes {
		installed, err := a.installer.List(domain.Target{Runtime: variant, Arch: a.arch})
		if err != nil {
			return nil, err
		}
		out[variant] = installed
	}
	return out, nil
}

func (a *App) loadProject(cwd string) (*project, string, error) {
	root, err := a.loader.Root(cwd)
	if err != nil {
		return nil, "", err
	}
	loaded, err := a.loader.Load(cwd)
	if err != nil {
		return nil, "", err
	}
	return &project{Project: loaded}, root, nil
}

func (a *App) lockPath(root string) string {
	return filepath.Join(root, domain.LockfileFileName)
}

// resolution returns the dependency closure for the project, reusing a
// current lockfile when allowed and re-resolving otherwise.
func (a *App) resolution(ctx context.Context, project *project, root string, noLock bool) (*domain.Resolution, error) {
	lockPath := a.lockPath(root)

	if !noLock {
		lock, err := lockfile.Load(lockPath)
		if err != nil {
			return nil, err
		}
		stale, err := lockfile.IsStale(ctx, lock, project.Requirements, a.provider)
		if err != nil {
			return nil, err
		}
		if !stale {
			a.logger.Debug("lockfile is current, skipping resolution", "path", lockPath)
			return a.resolutionFromLock(ctx, lock)
		}
	}

	res, err := a.resolver.Resolve(ctx, project.Requirements, project.Runtimes)
	if err != nil {
		return nil, err
	}
	if err := lockfile.Save(lockPath, res, project.Requirements); err != nil {
		return nil, err
	}
	a.logger.Info("wrote lockfile", "packages", res.Len())
	return res, nil
}

// resolutionFromLock rebuilds a Resolution from locked pins, fetching each
// descriptor at its locked version from the provider.
func (a *App) resolutionFromLock(ctx context.Context, lock *domain.Lockfile) (*domain.Resolution, error) {
	res := domain.NewResolution()

	for _, locked := range lock.Packages {
		entries, err := a.provider.ListVersions(ctx, locked.Name)
		if err != nil {
			return nil, err
		}

		var descriptor *domain.PackageDescriptor
		for _, entry := range entries {
			if entry.Version.String() == locked.Version {
				descriptor = entry.Descriptor
				break
			}
		}
		if descriptor == nil {
			return nil, zerr.With(
				zerr.With(domain.ErrPackageNotFound, "package", locked.Name),
				"version", locked.Version,
			)
		}

		pkg := &domain.ResolvedPackage{
			Name:       locked.Name,
			Version:    descriptor.Version,
			Variant:    domain.RuntimeVariant(locked.Variant),
			Descriptor: descriptor,
		}
		for _, dep := range locked.Dependencies {
			constraint, err := domain.ParseConstraint(dep.Constraint)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrLockfileCorrupt.Error()), "package", locked.Name)
			}
			pkg.Edges = append(pkg.Edges, domain.ResolvedEdge{
				Constraint: constraint,
				To:         domain.PackageKey{Name: dep.Name, Variant: pkg.Variant},
			})
		}
		if err := res.Add(pkg); err != nil {
			return nil, err
		}
	}

	if err := res.Validate(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrLockfileCorrupt.Error())
	}
	return res, nil
}

// prefetch warms the source cache for every distinct location so the build
// phase rarely waits on the network. Failures are deferred to the build,
// which reports them per package.
func (a *App) prefetch(ctx context.Context, res *domain.Resolution, parallelism int) {
	seen := make(map[string]bool)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, key := range res.Keys() {
		pkg, _ := res.Get(key)
		if pkg.Descriptor == nil || seen[pkg.Descriptor.Source.URL] {
			continue
		}
		seen[pkg.Descriptor.Source.URL] = true

		source := pkg.Descriptor.Source
		g.Go(func() error {
			if _, err := a.fetcher.Fetch(ctx, source); err != nil {
				a.logger.Warn("prefetch failed", "url", source.URL, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}

// project wraps domain.Project with run-derived defaults.
type project struct {
	*domain.Project
}

func (p *project) parallelism() int {
	if p.Parallelism > 0 {
		return p.Parallelism
	}
	return runtime.NumCPU()
}
