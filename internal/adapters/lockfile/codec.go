// Package lockfile encodes resolutions into the canonical lux.lock format
// and checks persisted locks for staleness.
package lockfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// Encode renders a resolution as canonical lockfile bytes: packages sorted
// by (name, variant), fixed field order, trailing newline. Semantically
// identical resolutions encode to byte-identical output.
func Encode(res *domain.Resolution, roots []domain.RootRequirement) ([]byte, error) {
	return EncodeLockfile(domain.LockfileFromResolution(res, roots))
}

// EncodeLockfile renders an already-flattened lockfile.
func EncodeLockfile(lock *domain.Lockfile) ([]byte, error) {
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode lockfile")
	}
	return append(data, '\n'), nil
}

// Decode parses lockfile bytes, rejecting unknown fields and unsupported
// format versions.
func Decode(data []byte) (*domain.Lockfile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var lock domain.Lockfile
	if err := dec.Decode(&lock); err != nil {
		return nil, zerr.Wrap(err, domain.ErrLockfileCorrupt.Error())
	}
	if lock.FormatVersion != domain.LockfileFormatVersion {
		return nil, zerr.With(
			zerr.With(domain.ErrLockfileCorrupt, "format", lock.FormatVersion),
			"supported", domain.LockfileFormatVersion,
		)
	}
	for _, pkg := range lock.Packages {
		if pkg.Name == "" || pkg.Version == "" || pkg.Variant == "" {
			return nil, zerr.With(domain.ErrLockfileCorrupt, "reason", "incomplete package entry")
		}
		if _, err := domain.ParseVersion(pkg.Version); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrLockfileCorrupt.Error()), "package", pkg.Name)
		}
	}
	return &lock, nil
}

// Load reads and decodes the lockfile at path. A missing file returns
// (nil, nil) so callers can treat absence as "resolve from scratch".
func Load(path string) (*domain.Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "failed to read lockfile")
	}
	return Decode(data)
}

// Save writes the resolution's lockfile to path atomically.
func Save(path string, res *domain.Resolution, roots []domain.RootRequirement) error {
	data, err := Encode(res, roots)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, "failed to write lockfile")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(err, "failed to replace lockfile")
	}
	return nil
}

// IsStale reports whether the lock no longer matches the project's root
// requirements or the provider's published versions. A stale lock forces a
// fresh resolution.
func IsStale(ctx context.Context, lock *domain.Lockfile, roots []domain.RootRequirement, provider ports.ManifestProvider) (bool, error) {
	if lock == nil {
		return true, nil
	}

	// The root constraint set must be exactly the one the lock was derived
	// from.
	if len(roots) != len(lock.Requirements) {
		return true, nil
	}
	for _, req := range roots {
		recorded, ok := lock.Requirements[req.Name]
		if !ok || recorded != req.Constraint.String() {
			return true, nil
		}
	}

	// Locked root versions must still satisfy their constraints.
	for _, req := range roots {
		for _, variant := range lock.Variants() {
			locked, ok := lock.Package(req.Name, variant)
			if !ok {
				continue
			}
			version, err := domain.ParseVersion(locked.Version)
			if err != nil {
				return true, nil
			}
			if !req.Constraint.Satisfies(version) {
				return true, nil
			}
		}
	}

	// Every locked package must still be published at its locked version.
	for _, locked := range lock.Packages {
		entries, err := provider.ListVersions(ctx, locked.Name)
		if err != nil {
			if errors.Is(err, domain.ErrPackageNotFound) {
				return true, nil
			}
			return false, err
		}

		found := false
		for _, entry := range entries {
			if entry.Version.String() == locked.Version {
				found = true
				break
			}
		}
		if !found {
			return true, nil
		}
	}

	return false, nil
}
