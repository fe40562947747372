package plugins

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/animation"
	"github.com/hyprshell/hyprshell/internal/cache"
	"github.com/hyprshell/hyprshell/internal/compositor"
)

// Plugin is the capability set every plugin implements. Optional
// capabilities (cleanup, state snapshots) are separate interfaces the
// host probes for.
type Plugin interface {
	// Name returns the registry name the plugin was registered under.
	Name() string

	// Init configures the plugin with its slice of the config file.
	Init(config map[string]interface{}) error

	// HandleEvent reacts to one compositor event. Errors are logged by
	// the host and never stop the fan-out.
	HandleEvent(event compositor.Event) error

	// HandleCommand executes a client verb and returns a human-readable
	// result.
	HandleCommand(verb string, args []string) (string, error)
}

// Cleaner is implemented by plugins that hold resources needing release
// on unload.
type Cleaner interface {
	Cleanup() error
}

// Stateful is implemented by plugins whose runtime state should survive
// a reload. The blob's schema is opaque to the host.
type Stateful interface {
	SnapshotState() (json.RawMessage, error)
	RestoreState(state json.RawMessage) error
}

// Runtime carries the shared daemon services a plugin may use.
type Runtime struct {
	Logger    *logrus.Logger
	Bridge    compositor.Bridge
	Engine    *animation.Engine
	Animator  *animation.WindowAnimator
	Cache     *cache.StateCache
	Variables func() map[string]string
}

// Factory builds a fresh plugin instance over the runtime.
type Factory func(rt *Runtime) Plugin

var registry = map[string]Factory{}

// Register adds a plugin factory under its name. Called from package
// init functions; plugins are statically linked into the daemon.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Lookup resolves a registered factory.
func Lookup(name string) (Factory, bool) {
	factory, ok := registry[name]
	return factory, ok
}

// RegisteredNames lists every statically registered plugin.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
