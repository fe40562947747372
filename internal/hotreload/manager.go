package hotreload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/plugins"
	"github.com/hyprshell/hyprshell/pkg/config"
)

// EventKind tags reload events.
type EventKind string

const (
	EventConfigChanged   EventKind = "config_changed"
	EventPluginReload    EventKind = "plugin_reload"
	EventValidationError EventKind = "validation_error"
	EventReloadComplete  EventKind = "reload_complete"
)

// Event is a reload notification delivered to subscribers.
type Event struct {
	Kind    EventKind
	Path    string
	Plugin  string
	Message string
}

// Config tunes reload behavior.
type Config struct {
	AutoReload          bool `mapstructure:"auto_reload"`
	DebounceMS          int  `mapstructure:"debounce_ms"`
	ValidateBeforeApply bool `mapstructure:"validate_before_apply"`
	BackupOnReload      bool `mapstructure:"backup_on_reload"`
	PreservePluginState bool `mapstructure:"preserve_plugin_state"`
	PartialReload       bool `mapstructure:"partial_reload"`
}

// DefaultConfig enables watching with a 500 ms debounce.
func DefaultConfig() Config {
	return Config{
		AutoReload:          true,
		DebounceMS:          500,
		ValidateBeforeApply: true,
		BackupOnReload:      true,
		PreservePluginState: true,
		PartialReload:       true,
	}
}

// Stats summarizes manager activity.
type Stats struct {
	AutoReloadEnabled    bool
	WatchedPaths         int
	LastReload           time.Time
	BackupCount          int
	PreservedStateCount  int
}

// Manager watches config files and orchestrates partial or full plugin
// reloads through the host.
type Manager struct {
	logger *logrus.Logger
	host   *plugins.Host

	mu            sync.Mutex
	config        Config
	paths         []string
	watcher       *fsnotify.Watcher
	subscribers   []chan Event
	timers        map[string]*time.Timer
	lastReload    time.Time
	backups       map[string]string
	preserved     map[string]json.RawMessage
	currentConfig *config.Config
	stopped       bool

	reloadsTotal prometheus.Counter
}

// NewManager builds a reload manager over the host. currentConfig is the
// configuration the plugins were initially loaded from.
func NewManager(logger *logrus.Logger, host *plugins.Host, currentConfig *config.Config, registry prometheus.Registerer) *Manager {
	m := &Manager{
		logger:        logger,
		host:          host,
		config:        DefaultConfig(),
		timers:        make(map[string]*time.Timer),
		backups:       make(map[string]string),
		preserved:     make(map[string]json.RawMessage),
		currentConfig: currentConfig,
		reloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyprshell_config_reloads_total",
			Help: "Configuration reloads applied",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.reloadsTotal)
	}
	return m
}

// Start begins watching the configured paths. Directories are watched
// rather than the files themselves so editor replace-by-rename keeps
// working.
func (m *Manager) Start(paths []string, cfg Config) error {
	if cfg.DebounceMS <= 0 {
		cfg.DebounceMS = 500
	}

	m.mu.Lock()
	m.config = cfg
	m.paths = append([]string(nil), paths...)
	m.mu.Unlock()

	if !cfg.AutoReload {
		m.logger.Info("Hot reload started without file watching")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	watched := make(map[string]bool)
	for _, path := range paths {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		watched[dir] = true
		m.logger.WithField("dir", dir).Debug("Watching config directory")
	}

	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go m.watchLoop()

	m.logger.WithField("paths", len(paths)).Info("Hot reload manager started")
	return nil
}

// Stop ends file watching and closes subscriber channels.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	if m.watcher != nil {
		m.watcher.Close()
	}
	for _, t := range m.timers {
		t.Stop()
	}
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}

// Subscribe returns a buffered event stream; slow consumers drop events
// rather than blocking the reload path.
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Stats reports current manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		AutoReloadEnabled:   m.config.AutoReload,
		WatchedPaths:        len(m.paths),
		LastReload:          m.lastReload,
		BackupCount:         len(m.backups),
		PreservedStateCount: len(m.preserved),
	}
}

func (m *Manager) publish(event Event) {
	m.mu.Lock()
	subscribers := append([]chan Event(nil), m.subscribers...)
	m.mu.Unlock()
	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (m *Manager) watchLoop() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			path := m.matchPath(ev.Name)
			if path == "" {
				continue
			}
			m.debounce(path)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.WithError(err).Warn("File watcher error")
		}
	}
}

func (m *Manager) matchPath(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range m.paths {
		if filepath.Clean(path) == filepath.Clean(name) {
			return path
		}
	}
	return ""
}

// debounce collapses bursts of modifications: only the latest change to
// a path within the window produces a reload.
func (m *Manager) debounce(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	window := time.Duration(m.config.DebounceMS) * time.Millisecond
	if timer, ok := m.timers[path]; ok {
		timer.Reset(window)
		return
	}
	m.timers[path] = time.AfterFunc(window, func() {
		m.mu.Lock()
		delete(m.timers, path)
		m.mu.Unlock()

		m.publish(Event{Kind: EventConfigChanged, Path: path})
		if err := m.handleConfigChange(path); err != nil {
			m.logger.WithError(err).WithField("path", path).Error("Config reload failed")
			m.publish(Event{Kind: EventValidationError, Path: path, Message: err.Error()})
		}
	})
}

func (m *Manager) handleConfigChange(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	newConfig, err := config.Parse(string(content))
	if err != nil {
		return err
	}

	m.mu.Lock()
	cfg := m.config
	m.mu.Unlock()

	if cfg.BackupOnReload {
		m.mu.Lock()
		m.backups[path] = string(content)
		m.mu.Unlock()
	}

	if cfg.PreservePluginState {
		m.captureStates()
	}

	if cfg.PartialReload {
		if _, err := m.applyPartialReload(newConfig); err != nil {
			return err
		}
	} else {
		if err := m.applyFullReload(newConfig); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.currentConfig = newConfig
	m.lastReload = time.Now()
	m.mu.Unlock()

	m.reloadsTotal.Inc()
	m.publish(Event{Kind: EventReloadComplete, Path: path})
	m.logger.WithField("path", path).Info("Configuration reloaded")
	return nil
}

// captureStates snapshots every stateful plugin's state blob.
func (m *Manager) captureStates() {
	for _, name := range m.host.LoadedPlugins() {
		state, err := m.host.PluginState(name)
		if err != nil {
			continue
		}
		m.mu.Lock()
		m.preserved[name] = state
		m.mu.Unlock()
	}
}

// applyPartialReload reloads only what the config diff requires:
// removals first, then additions, then changed-slice reloads.
func (m *Manager) applyPartialReload(newConfig *config.Config) (summary string, err error) {
	current := m.host.LoadedPlugins()
	wanted := newConfig.PluginNames()

	currentSet := make(map[string]bool, len(current))
	for _, name := range current {
		currentSet[name] = true
	}
	wantedSet := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		wantedSet[name] = true
	}

	var removed, added, reloaded []string

	for _, name := range current {
		if !wantedSet[name] {
			if err := m.host.UnloadPlugin(name); err != nil {
				return "", fmt.Errorf("unload %s: %w", name, err)
			}
			removed = append(removed, name)
		}
	}

	for _, name := range wanted {
		if !currentSet[name] {
			if err := m.host.LoadPlugin(name, newConfig.PluginConfig(name)); err != nil {
				return "", fmt.Errorf("load %s: %w", name, err)
			}
			added = append(added, name)
		}
	}

	for _, name := range wanted {
		if !currentSet[name] {
			continue
		}
		oldSlice, err := m.host.PluginConfig(name)
		if err != nil {
			continue
		}
		newSlice := newConfig.PluginConfig(name)
		if config.PluginConfigEqual(oldSlice, newSlice) {
			continue
		}

		m.mu.Lock()
		state, hasState := m.preserved[name]
		m.mu.Unlock()
		if hasState {
			if err := m.host.PreservePluginState(name, state); err != nil {
				m.logger.WithError(err).WithField("plugin", name).Warn("Failed to hand state to reload")
			}
		}

		if err := m.host.ReloadPlugin(name, newSlice); err != nil {
			return "", fmt.Errorf("reload %s: %w", name, err)
		}
		reloaded = append(reloaded, name)
		m.publish(Event{Kind: EventPluginReload, Plugin: name})
	}

	return reloadSummary(removed, added, reloaded), nil
}

// applyFullReload tears everything down and rebuilds from the new
// config, restoring preserved states best-effort.
func (m *Manager) applyFullReload(newConfig *config.Config) error {
	m.host.UnloadAll()
	if err := m.host.LoadFromConfig(newConfig); err != nil {
		return err
	}

	m.mu.Lock()
	preserved := make(map[string]json.RawMessage, len(m.preserved))
	for name, state := range m.preserved {
		preserved[name] = state
	}
	m.mu.Unlock()

	for name, state := range preserved {
		if err := m.host.RestorePluginState(name, state); err != nil {
			m.logger.WithError(err).WithField("plugin", name).Warn("Failed to restore plugin state")
		}
	}
	return nil
}

// ReloadNow re-reads the primary config file and applies the diff in a
// single pass, returning a human-readable summary for the Success reply.
func (m *Manager) ReloadNow() (string, error) {
	m.mu.Lock()
	if len(m.paths) == 0 {
		m.mu.Unlock()
		return "", fmt.Errorf("no config paths configured")
	}
	path := m.paths[0]
	preserve := m.config.PreservePluginState
	m.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	newConfig, err := config.Parse(string(content))
	if err != nil {
		m.publish(Event{Kind: EventValidationError, Path: path, Message: err.Error()})
		return "", err
	}

	if preserve {
		m.captureStates()
	}

	summary, err := m.applyPartialReload(newConfig)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.currentConfig = newConfig
	m.lastReload = time.Now()
	m.mu.Unlock()

	m.reloadsTotal.Inc()
	m.publish(Event{Kind: EventReloadComplete, Path: path})
	return summary, nil
}

func reloadSummary(removed, added, reloaded []string) string {
	var parts []string
	if len(removed) > 0 {
		parts = append(parts, "removed: "+strings.Join(removed, ", "))
	}
	if len(added) > 0 {
		parts = append(parts, "added: "+strings.Join(added, ", "))
	}
	if len(reloaded) > 0 {
		parts = append(parts, "reloaded: "+strings.Join(reloaded, ", "))
	}
	if len(parts) == 0 {
		return "configuration up-to-date, no changes needed"
	}
	return "reload complete: " + strings.Join(parts, "; ")
}
