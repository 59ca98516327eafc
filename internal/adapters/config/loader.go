// Package config loads lux.toml project files.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// Loader implements ports.ProjectLoader over lux.toml files.
type Loader struct {
	logger ports.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

var validProjectNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// projectFile is the lux.toml schema.
type projectFile struct {
	Name         string            `toml:"name"`
	Runtimes     []string          `toml:"runtimes"`
	Dependencies map[string]string `toml:"dependencies"`
	Build        buildSection      `toml:"build"`
}

type buildSection struct {
	Parallelism int  `toml:"parallelism"`
	BestEffort  bool `toml:"best_effort"`
}

// Root walks up from cwd to the nearest directory holding a lux.toml.
func (l *Loader) Root(cwd string) (string, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve working directory")
	}

	for {
		candidate := filepath.Join(dir, domain.ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", zerr.With(domain.ErrProjectNotFound, "cwd", cwd)
}

// Load finds and parses the project file governing cwd.
func (l *Loader) Load(cwd string) (*domain.Project, error) {
	root, err := l.Root(cwd)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, domain.ProjectFileName)

	var file projectFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrProjectInvalid.Error()), "path", path)
	}

	project, err := file.toDomain()
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}

	l.logger.Debug("loaded project",
		"name", project.Name,
		"requirements", len(project.Requirements),
	)
	return project, nil
}

func (file projectFile) toDomain() (*domain.Project, error) {
	if file.Name == "" {
		return nil, zerr.With(domain.ErrProjectInvalid, "reason", "missing project name")
	}
	if !validProjectNameRegex.MatchString(file.Name) {
		return nil, zerr.With(zerr.With(domain.ErrProjectInvalid, "name", file.Name), "reason", "invalid project name")
	}
	if len(file.Dependencies) == 0 {
		return nil, zerr.With(zerr.With(domain.ErrProjectInvalid, "name", file.Name), "reason", "no dependencies declared")
	}

	runtimes := make([]domain.RuntimeVariant, 0, len(file.Runtimes))
	for _, raw := range file.Runtimes {
		variant, err := domain.ParseRuntimeVariant(raw)
		if err != nil {
			return nil, zerr.With(err, "project", file.Name)
		}
		runtimes = append(runtimes, variant)
	}
	if len(runtimes) == 0 {
		runtimes = []domain.RuntimeVariant{domain.Lua54}
	}

	requirements := make([]domain.RootRequirement, 0, len(file.Dependencies))
	for name, raw := range file.Dependencies {
		constraint, err := domain.ParseConstraint(raw)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrProjectInvalid.Error()), "dependency", name)
		}
		requirements = append(requirements, domain.RootRequirement{
			Name:       name,
			Constraint: constraint,
		})
	}
	sort.Slice(requirements, func(i, j int) bool {
		return requirements[i].Name < requirements[j].Name
	})

	if file.Build.Parallelism < 0 {
		return nil, zerr.With(zerr.With(domain.ErrProjectInvalid, "name", file.Name), "reason", "negative parallelism")
	}

	return &domain.Project{
		Name:         file.Name,
		Runtimes:     runtimes,
		Requirements: requirements,
		Parallelism:  file.Build.Parallelism,
		BestEffort:   file.Build.BestEffort,
	}, nil
}

var _ ports.ProjectLoader = (*Loader)(nil)
