package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[pyprland]
plugins = ["scratchpads", "magnify"]

[pyprland.variables]
term = "foot"
browser = "firefox"

[scratchpads.term]
command = "[term]"
size = "60% 50%"
animation = "fromTop"

[magnify]
factor = 2.5
`

func TestParse(t *testing.T) {
	cfg, err := Parse(sampleConfig)
	require.NoError(t, err)

	assert.Equal(t, []string{"scratchpads", "magnify"}, cfg.PluginNames())
	assert.Equal(t, "foot", cfg.Daemon.Variables["term"])

	magnify := cfg.PluginConfig("magnify")
	assert.EqualValues(t, 2.5, magnify["factor"])

	pads := cfg.PluginConfig("scratchpads")
	term, ok := pads["term"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "[term]", term["command"])

	// Missing slices come back empty, not nil-panicky.
	assert.Empty(t, cfg.PluginConfig("nonexistent"))
}

func TestParseRejectsMissingPyprlandTable(t *testing.T) {
	_, err := Parse(`[scratchpads]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pyprland")
}

func TestParseRejectsBadPluginList(t *testing.T) {
	_, err := Parse(`
[pyprland]
plugins = "scratchpads"
`)
	assert.Error(t, err)
}

func TestParseRejectsInvalidTOML(t *testing.T) {
	_, err := Parse("this is not [valid")
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyprshell.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Len(t, cfg.PluginNames(), 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestExpandVariables(t *testing.T) {
	cfg, err := Parse(sampleConfig)
	require.NoError(t, err)

	assert.Equal(t, "foot --app-id x", cfg.ExpandVariables("[term] --app-id x"))
	assert.Equal(t, "firefox", cfg.ExpandVariables("[browser]"))
	assert.Equal(t, "[unknown]", cfg.ExpandVariables("[unknown]"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/.config/hyprshell/hyprshell.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config/hyprshell/hyprshell.toml"), expanded)

	passthrough, err := ExpandPath("/etc/hyprshell.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/hyprshell.toml", passthrough)
}

func TestPluginConfigEqual(t *testing.T) {
	a := map[string]interface{}{"x": 1, "nested": map[string]interface{}{"y": "z"}}
	b := map[string]interface{}{"x": 1, "nested": map[string]interface{}{"y": "z"}}
	c := map[string]interface{}{"x": 2}

	assert.True(t, PluginConfigEqual(a, b))
	assert.False(t, PluginConfigEqual(a, c))
	assert.True(t, PluginConfigEqual(nil, map[string]interface{}{}))
}
