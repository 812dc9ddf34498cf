package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ASSEMBLYLOOK_CONFIG", "ASSEMBLYLOOK_CLAUDE_DIR", "ASSEMBLYLOOK_GEMINI_DIR",
		"ASSEMBLYLOOK_WORKSPACE", "ASSEMBLYLOOK_CATALOG", "ASSEMBLYLOOK_LOG_LEVEL",
		"ASSEMBLYLOOK_WORKERS",
	} {
		t.Setenv(k, "")
	}
}

// --- FromHome / Default ---

func TestFromHome_ShouldPlaceSourcesUnderHome(t *testing.T) {
	c := FromHome("/home/alice")
	assert.Equal(t, filepath.Join("/home/alice", ".claude", "projects"), c.Sources.Claude)
	assert.Equal(t, filepath.Join("/home/alice", ".gemini", "tmp"), c.Sources.Gemini)
}

func TestFromHome_ShouldDeriveProjectRoots(t *testing.T) {
	c := FromHome("/home/alice")
	assert.Equal(t, "/home/alice", c.Roots.Home)
	assert.Equal(t, "/home/alice/workspace", c.Roots.Workspace)
	assert.Equal(t, "/home/alice/src", c.Roots.Src)
	assert.Equal(t, "/home/alice/.shortcuts", c.Roots.Shortcuts)
}

func TestFromHome_ShouldUseTermuxTokenEncoding(t *testing.T) {
	c := FromHome("/home/alice")
	assert.Equal(t, DefaultEncodedPrefix, c.Token.EncodedPrefix)
	assert.Equal(t, DefaultDecodedRoot, c.Token.DecodedRoot)
}

func TestDefault_ShouldReadHomeFromEnvironment(t *testing.T) {
	t.Setenv("HOME", "/tmp/somebody")
	c := Default()
	assert.True(t, strings.HasPrefix(c.Catalog.Path, "/tmp/somebody"), c.Catalog.Path)
}

// --- Load ---

func TestLoad_WhenNothingSet_ShouldReturnDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", "/tmp/h")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, FromHome("/tmp/h"), c)
}

func TestLoad_WhenConfigFileSet_ShouldOverlayYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", "/tmp/h")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  claude: /logs/claude
roots:
  workspace: /code
log:
  level: debug
analysis:
  workers: 9
`), 0644))
	t.Setenv("ASSEMBLYLOOK_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/logs/claude", c.Sources.Claude)
	assert.Equal(t, "/code", c.Roots.Workspace)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 9, c.Analysis.Workers)
	// untouched keys keep their defaults
	assert.Equal(t, "/tmp/h/src", c.Roots.Src)
}

func TestLoad_WhenEnvAndFileBothSet_ShouldPreferEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  gemini: /from/file\n"), 0644))
	t.Setenv("ASSEMBLYLOOK_CONFIG", path)
	t.Setenv("ASSEMBLYLOOK_GEMINI_DIR", "/from/env")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", c.Sources.Gemini)
}

func TestLoad_WhenConfigFileMissing_ShouldReturnError(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASSEMBLYLOOK_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "read config file")
}

func TestLoad_WhenConfigFileInvalid_ShouldReturnError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unclosed"), 0644))
	t.Setenv("ASSEMBLYLOOK_CONFIG", path)

	_, err := Load()
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoad_WhenWorkersInvalid_ShouldReturnError(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASSEMBLYLOOK_WORKERS", "many")

	_, err := Load()
	assert.ErrorContains(t, err, "ASSEMBLYLOOK_WORKERS")
}

func TestLoad_WhenWorkersBelowOne_ShouldClampToOne(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASSEMBLYLOOK_WORKERS", "0")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Analysis.Workers)
}
