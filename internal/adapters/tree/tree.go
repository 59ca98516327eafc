// Package tree manages per-(runtime, arch) install roots with a local
// manifest of installed packages.
package tree

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// manifestFileName is the per-root record of installed packages.
const manifestFileName = "installed.json"

// Manager implements ports.Installer over a base directory holding one root
// per target. Each root has its own lock; installs into different roots
// never contend.
type Manager struct {
	baseDir string
	logger  ports.Logger

	mu    sync.Mutex
	locks map[domain.Target]*sync.RWMutex
}

// NewManager creates a Manager rooted at baseDir.
func NewManager(baseDir string, logger ports.Logger) *Manager {
	return &Manager{
		baseDir: baseDir,
		logger:  logger,
		locks:   make(map[domain.Target]*sync.RWMutex),
	}
}

// DefaultBaseDir returns $LUX_TREE or the per-user data fallback.
func DefaultBaseDir() string {
	if dir := os.Getenv("LUX_TREE"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "tree"
	}
	return filepath.Join(home, ".local", "share", "lux", "tree")
}

// Root returns the filesystem root for a target.
func (m *Manager) Root(target domain.Target) string {
	return filepath.Join(m.baseDir, string(target.Runtime), target.Arch)
}

func (m *Manager) lockFor(target domain.Target) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[target]
	if !ok {
		lock = &sync.RWMutex{}
		m.locks[target] = lock
	}
	return lock
}

// Install merges the payload into the target root. The whole payload is
// staged against the manifest first: any path already owned by a different
// package aborts the install before a single byte lands in the tree.
func (m *Manager) Install(target domain.Target, pkg *domain.ResolvedPackage, payloadDir string) error {
	lock := m.lockFor(target)
	lock.Lock()
	defer lock.Unlock()

	root := m.Root(target)
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return m.permError(err, root)
	}

	manifest, err := m.readManifest(root)
	if err != nil {
		return err
	}

	files, err := collectPayloadFiles(payloadDir)
	if err != nil {
		return err
	}

	owners := pathOwners(manifest)
	for _, rel := range files {
		if owner, taken := owners[rel]; taken && owner != pkg.Name {
			return zerr.With(
				zerr.With(zerr.With(domain.ErrInstallCollision, "package", pkg.Name), "path", rel),
				"owner", owner,
			)
		}
	}

	for _, rel := range files {
		src := filepath.Join(payloadDir, rel)
		dst := filepath.Join(root, rel)
		if err := copyFile(src, dst); err != nil {
			return m.permError(err, dst)
		}
	}

	// Reinstalling replaces the previous entry for the name.
	kept := manifest[:0]
	for _, entry := range manifest {
		if entry.Name != pkg.Name {
			kept = append(kept, entry)
		}
	}
	manifest = append(kept, domain.InstalledPackage{
		Name:    pkg.Name,
		Version: pkg.Version.String(),
		Files:   files,
	})

	if err := m.writeManifest(root, manifest); err != nil {
		return err
	}
	m.logger.Debug("merged payload into tree",
		"package", pkg.Name,
		"target", target.String(),
		"files", len(files),
	)
	return nil
}

// Uninstall removes exactly the files recorded for (name, version). A path
// also recorded by another installed package stays on disk.
func (m *Manager) Uninstall(target domain.Target, name, version string) error {
	lock := m.lockFor(target)
	lock.Lock()
	defer lock.Unlock()

	root := m.Root(target)
	manifest, err := m.readManifest(root)
	if err != nil {
		return err
	}

	idx := -1
	for i, entry := range manifest {
		if entry.Name == name && entry.Version == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return zerr.With(
			zerr.With(zerr.With(domain.ErrNotInstalled, "package", name), "version", version),
			"target", target.String(),
		)
	}

	removed := manifest[idx]
	remaining := append(manifest[:idx:idx], manifest[idx+1:]...)

	// Reference count every path across the remaining entries.
	refs := make(map[string]int)
	for _, entry := range remaining {
		for _, rel := range entry.Files {
			refs[rel]++
		}
	}

	for _, rel := range removed.Files {
		if refs[rel] > 0 {
			continue
		}
		path := filepath.Join(root, rel)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return m.permError(err, path)
		}
		pruneEmptyDirs(root, filepath.Dir(path))
	}

	return m.writeManifest(root, remaining)
}

// List returns an installed-package snapshot for the target, sorted by name.
func (m *Manager) List(target domain.Target) ([]domain.InstalledPackage, error) {
	lock := m.lockFor(target)
	lock.RLock()
	defer lock.RUnlock()

	manifest, err := m.readManifest(m.Root(target))
	if err != nil {
		return nil, err
	}
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].Name < manifest[j].Name })
	return manifest, nil
}

func (m *Manager) readManifest(root string) ([]domain.InstalledPackage, error) {
	data, err := os.ReadFile(filepath.Join(root, manifestFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, m.permError(err, root)
	}

	var manifest []domain.InstalledPackage
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "corrupt tree manifest"), "root", root)
	}
	return manifest, nil
}

func (m *Manager) writeManifest(root string, manifest []domain.InstalledPackage) error {
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].Name < manifest[j].Name })

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode tree manifest")
	}

	path := filepath.Join(root, manifestFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), domain.FilePerm); err != nil {
		return m.permError(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return m.permError(err, path)
	}
	return nil
}

func (m *Manager) permError(err error, path string) error {
	if errors.Is(err, fs.ErrPermission) {
		return zerr.With(domain.ErrPermissionDenied, "path", path)
	}
	return zerr.With(zerr.Wrap(err, "tree operation failed"), "path", path)
}

// pathOwners maps every recorded relative path to the package that owns it.
func pathOwners(manifest []domain.InstalledPackage) map[string]string {
	owners := make(map[string]string)
	for _, entry := range manifest {
		for _, rel := range entry.Files {
			owners[rel] = entry.Name
		}
	}
	return owners
}

// collectPayloadFiles walks a payload and returns its regular files as
// sorted slash-separated relative paths.
func collectPayloadFiles(payloadDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(payloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(payloadDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to scan payload")
	}
	sort.Strings(files)
	return files, nil
}

// pruneEmptyDirs removes now-empty parents up to, but never including, root.
func pruneEmptyDirs(root, dir string) {
	for strings.HasPrefix(dir, root) && dir != root {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

var _ ports.Installer = (*Manager)(nil)
