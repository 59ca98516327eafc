package ports

import "github.com/nvim-neorocks/lux/internal/core/domain"

// ProjectLoader reads the project file and returns the root requirements.
//
//go:generate mockgen -source=project_loader.go -destination=mocks/mock_project_loader.go -package=mocks
type ProjectLoader interface {
	// Load walks up from cwd to the nearest lux.toml and parses it.
	// Returns domain.ErrProjectNotFound when no project file exists.
	Load(cwd string) (*domain.Project, error)

	// Root returns the directory containing the project file found from cwd.
	Root(cwd string) (string, error)
}
