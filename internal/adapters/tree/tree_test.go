package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testTarget = domain.Target{Runtime: domain.Lua54, Arch: "linux-amd64"}

func newManager(t *testing.T) *Manager {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return NewManager(t.TempDir(), logger)
}

func makePayload(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func resolved(name, version string) *domain.ResolvedPackage {
	return &domain.ResolvedPackage{
		Name:    name,
		Version: domain.MustParseVersion(version),
		Variant: domain.Lua54,
	}
}

func TestManager_InstallAndList(t *testing.T) {
	m := newManager(t)
	payload := makePayload(t, map[string]string{
		"share/lua/lua5.4/foo/init.lua": "return {}\n",
		"share/lua/lua5.4/foo/util.lua": "return {}\n",
	})

	require.NoError(t, m.Install(testTarget, resolved("foo", "1.0.0"), payload))

	content, err := os.ReadFile(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "foo", "init.lua"))
	require.NoError(t, err)
	assert.Equal(t, "return {}\n", string(content))

	installed, err := m.List(testTarget)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "foo", installed[0].Name)
	assert.Equal(t, "1.0.0", installed[0].Version)
	assert.Len(t, installed[0].Files, 2)
}

func TestManager_CollisionLeavesTreeUnchanged(t *testing.T) {
	m := newManager(t)

	first := makePayload(t, map[string]string{
		"share/lua/lua5.4/shared.lua": "-- owned by foo\n",
	})
	require.NoError(t, m.Install(testTarget, resolved("foo", "1.0.0"), first))

	second := makePayload(t, map[string]string{
		"share/lua/lua5.4/shared.lua": "-- from bar\n",
		"share/lua/lua5.4/bar.lua":    "return {}\n",
	})
	err := m.Install(testTarget, resolved("bar", "2.0.0"), second)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInstallCollision)
	assert.Contains(t, err.Error(), "foo")

	// Neither the colliding nor the innocent file landed.
	content, readErr := os.ReadFile(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "shared.lua"))
	require.NoError(t, readErr)
	assert.Equal(t, "-- owned by foo\n", string(content))
	_, statErr := os.Stat(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "bar.lua"))
	assert.True(t, os.IsNotExist(statErr))

	installed, err := m.List(testTarget)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "foo", installed[0].Name)
}

func TestManager_ReinstallSamePackageIsAllowed(t *testing.T) {
	m := newManager(t)

	payload := makePayload(t, map[string]string{"lib/lua/lua5.4/foo.so": "v1"})
	require.NoError(t, m.Install(testTarget, resolved("foo", "1.0.0"), payload))

	upgraded := makePayload(t, map[string]string{"lib/lua/lua5.4/foo.so": "v2"})
	require.NoError(t, m.Install(testTarget, resolved("foo", "1.1.0"), upgraded))

	installed, err := m.List(testTarget)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "1.1.0", installed[0].Version)

	content, err := os.ReadFile(filepath.Join(m.Root(testTarget), "lib", "lua", "lua5.4", "foo.so"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
}

func TestManager_UninstallRemovesOnlyOwnedFiles(t *testing.T) {
	m := newManager(t)

	foo := makePayload(t, map[string]string{
		"share/lua/lua5.4/foo.lua":    "foo",
		"share/lua/lua5.4/common.lua": "common",
	})
	require.NoError(t, m.Install(testTarget, resolved("foo", "1.0.0"), foo))

	bar := makePayload(t, map[string]string{
		"share/lua/lua5.4/bar.lua":    "bar",
		"share/lua/lua5.4/common.lua": "common",
	})
	require.NoError(t, m.Install(testTarget, resolved("bar", "1.0.0"), bar))

	require.NoError(t, m.Uninstall(testTarget, "foo", "1.0.0"))

	_, err := os.Stat(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "foo.lua"))
	assert.True(t, os.IsNotExist(err))

	// common.lua is still referenced by bar.
	_, err = os.Stat(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "common.lua"))
	assert.NoError(t, err)

	installed, err := m.List(testTarget)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "bar", installed[0].Name)
}

func TestManager_UninstallPrunesEmptyDirs(t *testing.T) {
	m := newManager(t)

	payload := makePayload(t, map[string]string{"share/lua/lua5.4/deep/nested/mod.lua": "x"})
	require.NoError(t, m.Install(testTarget, resolved("deep", "1.0.0"), payload))
	require.NoError(t, m.Uninstall(testTarget, "deep", "1.0.0"))

	_, err := os.Stat(filepath.Join(m.Root(testTarget), "share", "lua", "lua5.4", "deep"))
	assert.True(t, os.IsNotExist(err))

	// The root itself survives.
	_, err = os.Stat(m.Root(testTarget))
	assert.NoError(t, err)
}

func TestManager_UninstallUnknownPackage(t *testing.T) {
	m := newManager(t)

	err := m.Uninstall(testTarget, "ghost", "1.0.0")

	assert.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestManager_TargetsAreIsolated(t *testing.T) {
	m := newManager(t)
	other := domain.Target{Runtime: domain.Lua51, Arch: "linux-amd64"}

	payload := makePayload(t, map[string]string{"share/lua/lua5.4/only54.lua": "x"})
	require.NoError(t, m.Install(testTarget, resolved("only54", "1.0.0"), payload))

	installed, err := m.List(other)
	require.NoError(t, err)
	assert.Empty(t, installed)
}
