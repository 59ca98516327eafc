package config

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

const sampleProject = `
name = "my-app"
runtimes = ["lua5.1", "lua5.4"]

[dependencies]
argparse = ">= 2.0"
luafilesystem = "1.8.0"

[build]
parallelism = 4
best_effort = true
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return NewLoader(logger)
}

func writeProject(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ProjectFileName), []byte(content), 0o644))
}

func TestLoader_LoadParsesProject(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, sampleProject)

	project, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "my-app", project.Name)
	assert.Equal(t, []domain.RuntimeVariant{domain.Lua51, domain.Lua54}, project.Runtimes)
	assert.Equal(t, 4, project.Parallelism)
	assert.True(t, project.BestEffort)

	require.Len(t, project.Requirements, 2)
	// Requirements are sorted by name regardless of declaration order.
	assert.Equal(t, "argparse", project.Requirements[0].Name)
	assert.Equal(t, ">= 2.0", project.Requirements[0].Constraint.String())
	assert.Equal(t, "luafilesystem", project.Requirements[1].Name)
	assert.Equal(t, "== 1.8.0", project.Requirements[1].Constraint.String())
}

func TestLoader_RootWalksUp(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, sampleProject)
	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := newLoader(t).Root(nested)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestLoader_MissingProject(t *testing.T) {
	_, err := newLoader(t).Load(t.TempDir())

	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestLoader_DefaultsRuntimeToLua54(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, `
name = "minimal"

[dependencies]
argparse = "*"
`)

	project, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []domain.RuntimeVariant{domain.Lua54}, project.Runtimes)
	assert.Equal(t, 0, project.Parallelism)
}

func TestLoader_RejectsInvalidProjects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "malformed toml",
			content: "name = [un643",
			wantErr: domain.ErrProjectInvalid,
		},
		{
			name:    "missing name",
			content: "[dependencies]\nargparse = \"*\"\n",
			wantErr: domain.ErrProjectInvalid,
		},
		{
			name:    "invalid name",
			content: "name = \"no spaces allowed\"\n[dependencies]\nargparse = \"*\"\n",
			wantErr: domain.ErrProjectInvalid,
		},
		{
			name:    "no dependencies",
			content: "name = \"empty\"\n",
			wantErr: domain.ErrProjectInvalid,
		},
		{
			name:    "bad constraint",
			content: "name = \"app\"\n[dependencies]\nargparse = \">>>= 1\"\n",
			wantErr: domain.ErrProjectInvalid,
		},
		{
			name:    "unknown runtime",
			content: "name = \"app\"\nruntimes = [\"lua9.9\"]\n[dependencies]\nargparse = \"*\"\n",
			wantErr: domain.ErrUnknownRuntime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeProject(t, dir, tt.content)

			_, err := newLoader(t).Load(dir)

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
