package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyprshell/hyprshell/internal/compositor"
	"github.com/hyprshell/hyprshell/pkg/config"
)

// recordState is the lifecycle position of a plugin record.
type recordState string

const (
	stateLoaded    recordState = "loaded"
	stateReloading recordState = "reloading"
)

type pluginRecord struct {
	plugin Plugin
	config map[string]interface{}
	state  recordState

	// preserved holds the state blob between unload and the replacement
	// instance's restore during a reload.
	preserved json.RawMessage
}

// Host owns the loaded plugins, fans compositor events out to them, and
// routes client commands. All operations serialize behind one lock; a
// plugin never sees concurrent HandleEvent calls.
type Host struct {
	logger  *logrus.Logger
	tracer  trace.Tracer
	runtime *Runtime

	mu      sync.Mutex
	records map[string]*pluginRecord
	order   []string
}

// NewHost creates an empty plugin host.
func NewHost(logger *logrus.Logger, runtime *Runtime) *Host {
	return &Host{
		logger:  logger,
		tracer:  otel.Tracer("plugins.host"),
		runtime: runtime,
		records: make(map[string]*pluginRecord),
	}
}

// LoadPlugins instantiates every plugin the config declares, in order.
// Unknown names warn and are skipped.
func (h *Host) LoadPlugins(cfg *config.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range cfg.PluginNames() {
		if err := h.loadLocked(name, cfg.PluginConfig(name)); err != nil {
			h.logger.WithError(err).WithField("plugin", name).Error("Failed to load plugin")
		}
	}

	h.logger.WithField("plugin_count", len(h.records)).Info("Plugins loaded")
	return nil
}

// LoadPlugin loads a single plugin from its config slice.
func (h *Host) LoadPlugin(name string, pluginConfig map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(name, pluginConfig)
}

func (h *Host) loadLocked(name string, pluginConfig map[string]interface{}) error {
	if _, exists := h.records[name]; exists {
		return fmt.Errorf("plugin %q already loaded", name)
	}

	factory, ok := Lookup(name)
	if !ok {
		h.logger.WithField("plugin", name).Warn("Unknown plugin, skipping")
		return nil
	}

	plugin := factory(h.runtime)
	if err := plugin.Init(pluginConfig); err != nil {
		return fmt.Errorf("init plugin %q: %w", name, err)
	}

	h.records[name] = &pluginRecord{
		plugin: plugin,
		config: pluginConfig,
		state:  stateLoaded,
	}
	h.order = append(h.order, name)

	h.logger.WithField("plugin", name).Info("Plugin loaded")
	return nil
}

// UnloadPlugin removes a plugin, running its Cleanup when present.
func (h *Host) UnloadPlugin(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloadLocked(name)
}

func (h *Host) unloadLocked(name string) error {
	record, ok := h.records[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}

	if cleaner, ok := record.plugin.(Cleaner); ok {
		if err := cleaner.Cleanup(); err != nil {
			h.logger.WithError(err).WithField("plugin", name).Error("Plugin cleanup failed")
		}
	}

	delete(h.records, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	h.logger.WithField("plugin", name).Info("Plugin unloaded")
	return nil
}

// ReloadPlugin replaces a plugin instance with a fresh one initialized
// from the new config slice, carrying its state blob across when the
// plugin supports snapshots.
func (h *Host) ReloadPlugin(name string, pluginConfig map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}

	record.state = stateReloading

	preserved := record.preserved
	if preserved == nil {
		if stateful, ok := record.plugin.(Stateful); ok {
			if blob, err := stateful.SnapshotState(); err == nil {
				preserved = blob
			} else {
				h.logger.WithError(err).WithField("plugin", name).Warn("Failed to snapshot plugin state")
			}
		}
	}

	if err := h.unloadLocked(name); err != nil {
		return err
	}
	if err := h.loadLocked(name, pluginConfig); err != nil {
		return err
	}

	if preserved != nil {
		if stateful, ok := h.records[name].plugin.(Stateful); ok {
			if err := stateful.RestoreState(preserved); err != nil {
				h.logger.WithError(err).WithField("plugin", name).Warn("Failed to restore plugin state")
			}
		}
	}
	h.records[name].preserved = nil
	h.records[name].state = stateLoaded

	h.logger.WithField("plugin", name).Info("Plugin reloaded")
	return nil
}

// UnloadAll removes every plugin in reverse load order.
func (h *Host) UnloadAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.order) - 1; i >= 0; i-- {
		name := h.order[i]
		if err := h.unloadLocked(name); err != nil {
			h.logger.WithError(err).WithField("plugin", name).Error("Failed to unload plugin")
		}
	}
}

// LoadFromConfig loads every declared plugin; used by full reloads.
func (h *Host) LoadFromConfig(cfg *config.Config) error {
	return h.LoadPlugins(cfg)
}

// HandleEvent fans an event out to every plugin in registration order.
// A plugin error is logged and does not stop the fan-out.
func (h *Host) HandleEvent(ctx context.Context, event compositor.Event) {
	ctx, span := h.tracer.Start(ctx, "plugins.Host.HandleEvent")
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range h.order {
		record := h.records[name]
		if err := record.plugin.HandleEvent(event); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"plugin": name,
				"event":  event.Kind,
			}).Warn("Plugin failed to handle event")
		}
	}
}

// HandleCommand routes a client verb to one plugin.
func (h *Host) HandleCommand(ctx context.Context, pluginName, verb string, args []string) (string, error) {
	ctx, span := h.tracer.Start(ctx, "plugins.Host.HandleCommand")
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[pluginName]
	if !ok {
		return "", fmt.Errorf("plugin %q not found", pluginName)
	}
	return record.plugin.HandleCommand(verb, args)
}

// PluginState snapshots a plugin's runtime state.
func (h *Host) PluginState(name string) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q not found", name)
	}
	stateful, ok := record.plugin.(Stateful)
	if !ok {
		return nil, fmt.Errorf("plugin %q does not preserve state", name)
	}
	return stateful.SnapshotState()
}

// PreservePluginState stores a state blob to hand to the plugin's next
// instance on reload.
func (h *Host) PreservePluginState(name string, state json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}
	record.preserved = state
	return nil
}

// RestorePluginState pushes a state blob into the loaded plugin.
func (h *Host) RestorePluginState(name string, state json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}
	stateful, ok := record.plugin.(Stateful)
	if !ok {
		return fmt.Errorf("plugin %q does not preserve state", name)
	}
	return stateful.RestoreState(state)
}

// LoadedPlugins returns plugin names in registration order.
func (h *Host) LoadedPlugins() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

// PluginConfig returns the config slice a plugin was last initialized with.
func (h *Host) PluginConfig(name string) (map[string]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q not found", name)
	}
	return record.config, nil
}

// PluginCount returns how many plugins are loaded.
func (h *Host) PluginCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
