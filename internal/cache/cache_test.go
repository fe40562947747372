package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func TestMonitorHandlesSurviveRefresh(t *testing.T) {
	c := NewStateCache()
	c.UpdateMonitors([]compositor.Monitor{
		{Name: "DP-1", Width: 1920, Height: 1080},
	})

	handle, ok := c.Monitor("DP-1")
	require.True(t, ok)
	assert.Equal(t, 1920, handle.Width)

	// A writer swapping the payload must not disturb held handles.
	c.UpdateMonitors([]compositor.Monitor{
		{Name: "DP-1", Width: 2560, Height: 1440},
	})

	assert.Equal(t, 1920, handle.Width, "held handle keeps observing the old snapshot")

	fresh, ok := c.Monitor("DP-1")
	require.True(t, ok)
	assert.Equal(t, 2560, fresh.Width)
}

func TestWorkspaceLookup(t *testing.T) {
	c := NewStateCache()
	c.UpdateWorkspaces([]compositor.Workspace{
		{ID: 1, Name: "web", Monitor: "DP-1", Windows: 3, LastWindow: "0xaaa"},
		{ID: 2, Name: "code", Monitor: "DP-1", Windows: 1},
	})

	ws, ok := c.Workspace(1)
	require.True(t, ok)
	assert.Equal(t, "web", ws.Name)
	assert.Equal(t, "0xaaa", ws.LastWindow)

	_, ok = c.Workspace(9)
	assert.False(t, ok)
}

func TestValidityWindow(t *testing.T) {
	c := NewStateCache()
	assert.False(t, c.Valid(), "empty cache is stale")

	c.UpdateMonitors(nil)
	assert.True(t, c.Valid())

	c.validity = 10 * time.Millisecond
	time.Sleep(25 * time.Millisecond)
	assert.False(t, c.Valid())
}

func TestConfigAndVariableStorage(t *testing.T) {
	c := NewStateCache()

	c.StoreConfig("scratchpads", map[string]interface{}{"term": "foot"})
	cfg, ok := c.Config("scratchpads")
	require.True(t, ok)
	assert.Equal(t, "foot", cfg["term"])

	_, ok = c.Config("missing")
	assert.False(t, ok)

	c.StoreVariables(map[string]string{"term": "foot"})
	assert.Equal(t, "foot", c.Variables()["term"])
}

func TestHandleMaps(t *testing.T) {
	c := NewStateCache()
	c.UpdateMonitors([]compositor.Monitor{{Name: "DP-1"}, {Name: "HDMI-A-1"}})
	c.UpdateWorkspaces([]compositor.Workspace{{ID: 1}, {ID: 2}, {ID: 3}})

	assert.Len(t, c.MonitorHandles(), 2)
	assert.Len(t, c.WorkspaceHandles(), 3)
}

func TestMemoryStats(t *testing.T) {
	c := NewStateCache()
	c.UpdateMonitors([]compositor.Monitor{{Name: "DP-1"}})
	c.UpdateWorkspaces([]compositor.Workspace{{ID: 1}, {ID: 2}})
	c.StoreConfig("magnify", map[string]interface{}{})
	c.StoreVariables(map[string]string{"a": "1", "b": "2", "c": "3"})

	stats := c.MemoryStats()
	assert.Equal(t, 1, stats.MonitorCount)
	assert.Equal(t, 2, stats.WorkspaceCount)
	assert.Equal(t, 1, stats.ConfigCount)
	assert.Equal(t, 3, stats.VariableCount)
}
