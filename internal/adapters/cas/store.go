// Package cas implements the build cache: finished install payloads stored
// under their build input hash.
package cas

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.BuildCache using a directory-per-key strategy.
type Store struct {
	root string
}

// NewStore creates a build cache rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// DefaultRoot returns $LUX_CACHE or the per-user cache fallback.
func DefaultRoot() string {
	if dir := os.Getenv("LUX_CACHE"); dir != "" {
		return dir
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "cache"
	}
	return filepath.Join(cacheDir, "lux", "builds")
}

// Get returns the cached payload directory for the key, or ok=false on a
// miss. Callers must treat the directory as read-only.
func (s *Store) Get(key string) (string, bool, error) {
	dir := s.entryDir(key)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "key", key)
	}
	if !info.IsDir() {
		return "", false, zerr.With(zerr.With(domain.ErrCacheReadFailed, "key", key), "reason", "entry is not a directory")
	}
	return dir, true, nil
}

// Put copies a payload directory into the cache. The entry is staged under a
// temp name and renamed into place, so concurrent puts for the same key race
// harmlessly: one full payload wins.
func (s *Store) Put(key, payloadDir string) error {
	if err := os.MkdirAll(s.root, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	staging, err := os.MkdirTemp(s.root, "staging-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	if err := copyTree(payloadDir, staging); err != nil {
		_ = os.RemoveAll(staging)
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "key", key)
	}

	dir := s.entryDir(key)
	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		// A concurrent put already created the entry.
		if _, statErr := os.Stat(dir); statErr == nil {
			return nil
		}
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "key", key)
	}
	return nil
}

func (s *Store) entryDir(key string) string {
	return filepath.Join(s.root, key)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, domain.DirPerm)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, domain.FilePerm)
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, in); err != nil {
			return err
		}
		return out.Close()
	})
}

var _ ports.BuildCache = (*Store)(nil)
