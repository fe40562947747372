package cache

import (
	"sync"
	"time"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

// cacheValidity is how long a refreshed snapshot set stays fresh.
const cacheValidity = 2 * time.Second

// MemoryStats summarizes what the cache currently holds.
type MemoryStats struct {
	MonitorCount   int
	WorkspaceCount int
	ConfigCount    int
	VariableCount  int
}

// StateCache is the process-wide snapshot store shared by every plugin.
// Writers swap immutable snapshot pointers under the write lock; readers
// receive those pointers as shared handles, so a held handle keeps
// observing the payload it was handed even across a refresh.
type StateCache struct {
	mu sync.RWMutex

	monitors   map[string]*compositor.Monitor
	workspaces map[int]*compositor.Workspace
	configs    map[string]map[string]interface{}
	variables  map[string]string
	lastUpdate time.Time
	validity   time.Duration
}

// NewStateCache creates an empty cache with the default validity window.
func NewStateCache() *StateCache {
	return &StateCache{
		monitors:   make(map[string]*compositor.Monitor),
		workspaces: make(map[int]*compositor.Workspace),
		configs:    make(map[string]map[string]interface{}),
		variables:  make(map[string]string),
		validity:   cacheValidity,
	}
}

// Monitor returns a shared handle to the named monitor snapshot.
func (c *StateCache) Monitor(name string) (*compositor.Monitor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.monitors[name]
	return m, ok
}

// Workspace returns a shared handle to the workspace snapshot.
func (c *StateCache) Workspace(id int) (*compositor.Workspace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.workspaces[id]
	return w, ok
}

// UpdateMonitors replaces the monitor snapshot set and refreshes the
// validity window. Held handles keep pointing at the old snapshots.
func (c *StateCache) UpdateMonitors(monitors []compositor.Monitor) {
	fresh := make(map[string]*compositor.Monitor, len(monitors))
	for i := range monitors {
		m := monitors[i]
		fresh[m.Name] = &m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitors = fresh
	c.lastUpdate = time.Now()
}

// UpdateWorkspaces replaces the workspace snapshot set.
func (c *StateCache) UpdateWorkspaces(workspaces []compositor.Workspace) {
	fresh := make(map[int]*compositor.Workspace, len(workspaces))
	for i := range workspaces {
		w := workspaces[i]
		fresh[w.ID] = &w
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.workspaces = fresh
	c.lastUpdate = time.Now()
}

// Valid reports whether the snapshots are inside the validity window.
func (c *StateCache) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.lastUpdate.IsZero() && time.Since(c.lastUpdate) < c.validity
}

// MonitorHandles returns shared handles to every monitor snapshot.
func (c *StateCache) MonitorHandles() map[string]*compositor.Monitor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*compositor.Monitor, len(c.monitors))
	for name, m := range c.monitors {
		out[name] = m
	}
	return out
}

// WorkspaceHandles returns shared handles to every workspace snapshot.
func (c *StateCache) WorkspaceHandles() map[int]*compositor.Workspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]*compositor.Workspace, len(c.workspaces))
	for id, w := range c.workspaces {
		out[id] = w
	}
	return out
}

// StoreConfig caches a plugin's config slice.
func (c *StateCache) StoreConfig(plugin string, config map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[plugin] = config
}

// Config returns a plugin's cached config slice.
func (c *StateCache) Config(plugin string) (map[string]interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.configs[plugin]
	return cfg, ok
}

// StoreVariables replaces the shared variable table.
func (c *StateCache) StoreVariables(variables map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables = variables
}

// Variables returns the shared variable table. Callers must not mutate it.
func (c *StateCache) Variables() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.variables
}

// MemoryStats reports cache occupancy.
func (c *StateCache) MemoryStats() MemoryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return MemoryStats{
		MonitorCount:   len(c.monitors),
		WorkspaceCount: len(c.workspaces),
		ConfigCount:    len(c.configs),
		VariableCount:  len(c.variables),
	}
}
