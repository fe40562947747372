package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is where the daemon looks for its configuration when no
// --config flag is given.
const DefaultPath = "~/.config/hyprshell/hyprshell.toml"

// Config is the parsed daemon configuration. The file is TOML with a
// top-level [pyprland] table (layout-compatible with pyprland configs);
// every other top-level table is the slice for the plugin of that name.
type Config struct {
	Daemon  DaemonConfig
	Plugins map[string]map[string]interface{}

	path string
}

// DaemonConfig mirrors the [pyprland] table.
type DaemonConfig struct {
	Plugins   []string          `mapstructure:"plugins"`
	Variables map[string]string `mapstructure:"variables"`
}

// Load reads and validates the configuration file, expanding a leading
// "~" in the path.
func Load(path string) (*Config, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(expanded)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", expanded, err)
	}

	cfg, err := fromSettings(v.AllSettings())
	if err != nil {
		return nil, err
	}
	cfg.path = expanded
	return cfg, nil
}

// Parse builds a Config from raw TOML content; used by hot reload to
// validate a candidate file before applying it.
func Parse(content string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return fromSettings(v.AllSettings())
}

func fromSettings(settings map[string]interface{}) (*Config, error) {
	cfg := &Config{
		Daemon: DaemonConfig{
			Variables: make(map[string]string),
		},
		Plugins: make(map[string]map[string]interface{}),
	}

	raw, ok := settings["pyprland"]
	if !ok {
		return nil, fmt.Errorf("config is missing the [pyprland] table")
	}
	table, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("[pyprland] must be a table")
	}

	if plugins, ok := table["plugins"]; ok {
		list, ok := plugins.([]interface{})
		if !ok {
			return nil, fmt.Errorf("pyprland.plugins must be an array of strings")
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("pyprland.plugins must be an array of strings")
			}
			cfg.Daemon.Plugins = append(cfg.Daemon.Plugins, name)
		}
	}

	if variables, ok := table["variables"]; ok {
		vars, ok := variables.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("pyprland.variables must be a table")
		}
		for key, value := range vars {
			cfg.Daemon.Variables[key] = fmt.Sprintf("%v", value)
		}
	}

	for key, value := range settings {
		if key == "pyprland" {
			continue
		}
		slice, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		cfg.Plugins[key] = slice
	}

	return cfg, nil
}

// Path returns the file the config was loaded from, when known.
func (c *Config) Path() string { return c.path }

// PluginNames returns the declared plugin list in file order.
func (c *Config) PluginNames() []string {
	return append([]string(nil), c.Daemon.Plugins...)
}

// PluginConfig returns the named plugin's slice; missing slices come
// back as an empty table.
func (c *Config) PluginConfig(name string) map[string]interface{} {
	if slice, ok := c.Plugins[name]; ok {
		return slice
	}
	return map[string]interface{}{}
}

// PluginConfigEqual compares two plugin slices structurally.
func PluginConfigEqual(a, b map[string]interface{}) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// ExpandVariables substitutes "[name]" references from the variables
// table into a plugin string field.
func (c *Config) ExpandVariables(s string) string {
	for name, value := range c.Daemon.Variables {
		s = strings.ReplaceAll(s, "["+name+"]", value)
	}
	return s
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", path, err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
