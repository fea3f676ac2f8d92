package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migueldvb/fwrap/tracking"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
[project]
name = "blas"
sources = ["src/level1.f90", "src/level2.f90"]

[output]
dir = "wrap"

[vcs]
enabled = false
author = "Build Bot"
email = "bot@example.com"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "blas", c.Project.Name)
	assert.Equal(t, []string{"src/level1.f90", "src/level2.f90"}, c.Project.Sources)
	assert.Equal(t, "wrap", c.Output.Dir)
	assert.Equal(t, "Build Bot", c.VCS.Author)
	assert.Equal(t, tracking.DefaultBranchPrefix, c.VCS.BranchPrefix)
	assert.False(t, c.Versioned())

	opts := c.Tracking()
	assert.Equal(t, dir, opts.Root)
	assert.Equal(t, "wrap", opts.OutputDir)
	assert.False(t, opts.Versioned)
}

func TestLoadDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mylib")
	require.NoError(t, os.Mkdir(dir, 0o755))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mylib", c.Project.Name)
	assert.Equal(t, dir, c.Dir)
	assert.Empty(t, c.Output.Dir)
	assert.False(t, c.Versioned(), "no .git directory")

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	assert.True(t, c.Versioned())
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[project\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error in")
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[project]\nname = \"top\"\n"), 0o644))

	c, err := FindAndLoad(sub)
	require.NoError(t, err)
	assert.Equal(t, "top", c.Project.Name)
	assert.Equal(t, root, c.Dir)
}
