package ports

import (
	"github.com/nvim-neorocks/lux/internal/core/domain"
)

// Installer manages per-(runtime, arch) install tree roots.
//
// Implementations hold a single-writer, multiple-reader lock per root;
// installs into different roots never contend.
//
//go:generate mockgen -source=installer.go -destination=mocks/mock_installer.go -package=mocks
type Installer interface {
	// Install merges the payload directory into the target root and records
	// the package's file list in the root's local manifest. A path already
	// owned by a different package fails with domain.ErrInstallCollision
	// naming the owner, leaving the tree unchanged.
	Install(target domain.Target, pkg *domain.ResolvedPackage, payloadDir string) error

	// Uninstall removes exactly the files recorded for (name, version),
	// keeping any path still recorded by another manifest entry, then drops
	// the entry.
	Uninstall(target domain.Target, name, version string) error

	// List returns a point-in-time snapshot of installed packages, taken
	// under a read lock and sorted by name.
	List(target domain.Target) ([]domain.InstalledPackage, error)
}
