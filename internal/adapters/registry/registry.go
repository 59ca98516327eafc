// Package registry implements the manifest provider over a local registry
// index file.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// IndexFileName is the registry index inside the registry directory.
const IndexFileName = "registry.yaml"

// Registry implements ports.ManifestProvider over a yaml index.
//
// The index is parsed once; converted manifest entries are cached per name.
// The cache is read-many/write-once: concurrent lookups for the same name may
// both convert, the first stored result wins and duplicates are discarded.
type Registry struct {
	path   string
	logger ports.Logger

	loadOnce sync.Once
	loadErr  error
	index    map[string]map[string]packageDTO

	entries sync.Map // name -> []ports.ManifestEntry
}

// NewRegistry creates a Registry reading the index at path.
func NewRegistry(path string, logger ports.Logger) *Registry {
	return &Registry{path: path, logger: logger}
}

// DefaultIndexPath returns $LUX_REGISTRY or the user cache fallback.
func DefaultIndexPath() string {
	if path := os.Getenv("LUX_REGISTRY"); path != "" {
		return path
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return IndexFileName
	}
	return filepath.Join(cacheDir, "lux", IndexFileName)
}

// ListVersions returns every published version of the named package.
func (r *Registry) ListVersions(ctx context.Context, name string) ([]ports.ManifestEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}

	if cached, ok := r.entries.Load(name); ok {
		return cached.([]ports.ManifestEntry), nil
	}

	versions, ok := r.index[name]
	if !ok {
		return nil, zerr.With(domain.ErrPackageNotFound, "package", name)
	}

	entries := make([]ports.ManifestEntry, 0, len(versions))
	for version, dto := range versions {
		descriptor, err := dto.toDomain(name, version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ports.ManifestEntry{
			Version:    descriptor.Version,
			Descriptor: descriptor,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Version.Compare(entries[j].Version) < 0
	})

	stored, _ := r.entries.LoadOrStore(name, entries)
	return stored.([]ports.ManifestEntry), nil
}

func (r *Registry) load() error {
	r.loadOnce.Do(func() {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			r.loadErr = zerr.With(domain.ErrProviderUnavailable, "path", r.path)
			return
		}

		var index indexDTO
		if err := yaml.Unmarshal(raw, &index); err != nil {
			r.loadErr = zerr.With(zerr.Wrap(err, domain.ErrRegistryIndexCorrupt.Error()), "path", r.path)
			return
		}

		r.index = index.Packages
		r.logger.Debug("loaded registry index", "path", r.path, "packages", len(r.index))
	})
	return r.loadErr
}

var _ ports.ManifestProvider = (*Registry)(nil)
