// Package ports defines the core interfaces the engine depends on.
package ports

import (
	"context"

	"github.com/nvim-neorocks/lux/internal/core/domain"
)

// ManifestEntry is one published (version, descriptor) pair.
type ManifestEntry struct {
	Version    domain.Version
	Descriptor *domain.PackageDescriptor
}

// ManifestProvider supplies the published versions of a package.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestProvider interface {
	// ListVersions returns every published entry for the package, in no
	// particular order. It returns domain.ErrPackageNotFound for unknown
	// names and domain.ErrProviderUnavailable when the registry cannot be
	// reached. Implementations must be safe for concurrent use; repeated
	// queries for the same name are expected to hit a cache.
	ListVersions(ctx context.Context, name string) ([]ManifestEntry, error)
}
