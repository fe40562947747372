package hotreload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprshell/hyprshell/internal/compositor"
	"github.com/hyprshell/hyprshell/internal/plugins"
	"github.com/hyprshell/hyprshell/pkg/config"
)

// reloadProbe counts instances per plugin name so tests can tell which
// plugins were reloaded.
type reloadProbe struct {
	name  string
	cfg   map[string]interface{}
	state json.RawMessage
}

func (p *reloadProbe) Name() string { return p.name }
func (p *reloadProbe) Init(cfg map[string]interface{}) error {
	p.cfg = cfg
	return nil
}
func (p *reloadProbe) HandleEvent(compositor.Event) error { return nil }
func (p *reloadProbe) HandleCommand(string, []string) (string, error) {
	return "", nil
}
func (p *reloadProbe) SnapshotState() (json.RawMessage, error) {
	if p.state != nil {
		return p.state, nil
	}
	return json.Marshal(map[string]string{"from": p.name})
}
func (p *reloadProbe) RestoreState(state json.RawMessage) error {
	p.state = state
	return nil
}

var (
	probeInstances = map[string][]*reloadProbe{}
)

func registerProbe(name string) {
	plugins.Register(name, func(rt *plugins.Runtime) plugins.Plugin {
		p := &reloadProbe{name: name}
		probeInstances[name] = append(probeInstances[name], p)
		return p
	})
}

func init() {
	registerProbe("probe_a")
	registerProbe("probe_b")
	registerProbe("probe_c")
}

func latest(name string) *reloadProbe {
	instances := probeInstances[name]
	return instances[len(instances)-1]
}

func instanceCount(name string) int { return len(probeInstances[name]) }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

const initialConfig = `
[pyprland]
plugins = ["probe_a", "probe_b", "probe_c"]

[probe_a]
value = 1

[probe_b]
value = 2

[probe_c]
value = 3
`

func setupManager(t *testing.T) (*Manager, *plugins.Host, string) {
	t.Helper()

	logger := testLogger()
	host := plugins.NewHost(logger, &plugins.Runtime{Logger: logger})

	cfg, err := config.Parse(initialConfig)
	require.NoError(t, err)
	require.NoError(t, host.LoadPlugins(cfg))

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprshell.toml")
	require.NoError(t, os.WriteFile(path, []byte(initialConfig), 0o644))

	manager := NewManager(logger, host, cfg, nil)
	return manager, host, path
}

func TestPartialReloadOnlyTouchesChangedPlugin(t *testing.T) {
	manager, host, path := setupManager(t)

	countA := instanceCount("probe_a")
	countB := instanceCount("probe_b")
	countC := instanceCount("probe_c")

	// Only probe_c's slice changes.
	updated := `
[pyprland]
plugins = ["probe_a", "probe_b", "probe_c"]

[probe_a]
value = 1

[probe_b]
value = 2

[probe_c]
value = 99
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	manager.mu.Lock()
	manager.paths = []string{path}
	manager.mu.Unlock()

	summary, err := manager.ReloadNow()
	require.NoError(t, err)
	assert.Contains(t, summary, "reloaded: probe_c")

	assert.Equal(t, countA, instanceCount("probe_a"), "probe_a must not be reloaded")
	assert.Equal(t, countB, instanceCount("probe_b"), "probe_b must not be reloaded")
	assert.Equal(t, countC+1, instanceCount("probe_c"), "probe_c must be reloaded once")

	slice, err := host.PluginConfig("probe_c")
	require.NoError(t, err)
	assert.EqualValues(t, 99, slice["value"])
}

func TestPartialReloadStateCarriesAcross(t *testing.T) {
	manager, _, path := setupManager(t)

	latest("probe_c").state = json.RawMessage(`{"sticky": true}`)

	updated := `
[pyprland]
plugins = ["probe_a", "probe_b", "probe_c"]

[probe_a]
value = 1

[probe_b]
value = 2

[probe_c]
value = 100
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	manager.mu.Lock()
	manager.paths = []string{path}
	manager.mu.Unlock()

	_, err := manager.ReloadNow()
	require.NoError(t, err)

	assert.JSONEq(t, `{"sticky": true}`, string(latest("probe_c").state))
}

func TestPartialReloadAddsAndRemoves(t *testing.T) {
	manager, host, path := setupManager(t)

	updated := `
[pyprland]
plugins = ["probe_a", "probe_c"]

[probe_a]
value = 1

[probe_c]
value = 3
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	manager.mu.Lock()
	manager.paths = []string{path}
	manager.mu.Unlock()

	summary, err := manager.ReloadNow()
	require.NoError(t, err)
	assert.Contains(t, summary, "removed: probe_b")

	loaded := host.LoadedPlugins()
	assert.NotContains(t, loaded, "probe_b")
	assert.Contains(t, loaded, "probe_a")
	assert.Contains(t, loaded, "probe_c")
}

func TestReloadNowNoChanges(t *testing.T) {
	manager, _, path := setupManager(t)
	manager.mu.Lock()
	manager.paths = []string{path}
	manager.mu.Unlock()

	summary, err := manager.ReloadNow()
	require.NoError(t, err)
	assert.Contains(t, summary, "up-to-date")
}

func TestInvalidConfigEmitsValidationError(t *testing.T) {
	manager, host, path := setupManager(t)

	before := host.LoadedPlugins()
	events := manager.Subscribe()

	require.NoError(t, os.WriteFile(path, []byte("this is not [valid toml"), 0o644))
	manager.mu.Lock()
	manager.paths = []string{path}
	manager.mu.Unlock()

	_, err := manager.ReloadNow()
	require.Error(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, EventValidationError, ev.Kind)
	default:
		t.Fatal("no ValidationError event")
	}

	// The running plugins are untouched on validation failure.
	assert.Equal(t, before, host.LoadedPlugins())
}

func TestWatcherDebouncesAndReloads(t *testing.T) {
	manager, _, path := setupManager(t)

	events := manager.Subscribe()

	cfg := DefaultConfig()
	cfg.DebounceMS = 50
	require.NoError(t, manager.Start([]string{path}, cfg))
	defer manager.Stop()

	countC := instanceCount("probe_c")

	updated := `
[pyprland]
plugins = ["probe_a", "probe_b", "probe_c"]

[probe_a]
value = 1

[probe_b]
value = 2

[probe_c]
value = 500
`
	// Rapid successive writes collapse into one reload.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.After(3 * time.Second)
	var sawComplete bool
	for !sawComplete {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed early")
			if ev.Kind == EventReloadComplete {
				sawComplete = true
			}
		case <-deadline:
			t.Fatal("no ReloadComplete event")
		}
	}

	assert.Equal(t, countC+1, instanceCount("probe_c"))
}

func TestStats(t *testing.T) {
	manager, _, path := setupManager(t)
	cfg := DefaultConfig()
	cfg.AutoReload = false
	require.NoError(t, manager.Start([]string{path}, cfg))

	stats := manager.Stats()
	assert.False(t, stats.AutoReloadEnabled)
	assert.Equal(t, 1, stats.WatchedPaths)
}

func TestReloadSummaryFormatting(t *testing.T) {
	assert.Equal(t, "configuration up-to-date, no changes needed", reloadSummary(nil, nil, nil))
	summary := reloadSummary([]string{"a"}, []string{"b"}, []string{"c", "d"})
	assert.Equal(t, "reload complete: removed: a; added: b; reloaded: c, d", summary)
}
