package plugins

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("toggle_special", func(rt *Runtime) Plugin {
		return &ToggleSpecialPlugin{rt: rt, logger: rt.Logger}
	})
}

// ToggleSpecialConfig names the default special workspace.
type ToggleSpecialConfig struct {
	DefaultSpecialName string `mapstructure:"default_special_name"`
}

// ToggleSpecialPlugin toggles special workspaces and can stash the
// focused window onto one.
type ToggleSpecialPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config ToggleSpecialConfig
}

func (p *ToggleSpecialPlugin) Name() string { return "toggle_special" }

func (p *ToggleSpecialPlugin) Init(config map[string]interface{}) error {
	p.config = ToggleSpecialConfig{DefaultSpecialName: "minimized"}
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("toggle_special config: %w", err)
	}
	p.logger.WithField("special", p.config.DefaultSpecialName).Info("Toggle-special plugin initialized")
	return nil
}

func (p *ToggleSpecialPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *ToggleSpecialPlugin) HandleCommand(verb string, args []string) (string, error) {
	name := p.config.DefaultSpecialName
	if len(args) > 0 && args[0] != "" {
		name = args[0]
	}

	switch verb {
	case "", "toggle", "show":
		if err := p.rt.Bridge.ToggleSpecialWorkspace(name); err != nil {
			return "", err
		}
		return fmt.Sprintf("toggled special workspace %s", name), nil
	case "stash":
		// Move the focused window onto the special workspace.
		windows, err := p.rt.Bridge.Clients()
		if err != nil {
			return "", err
		}
		monitor, err := p.rt.Bridge.FocusedMonitor()
		if err != nil {
			return "", err
		}
		for _, w := range windows {
			if w.Address == workspaceLastWindow(p.rt, monitor.ActiveWorkspace.ID) {
				if err := p.rt.Bridge.MoveWindowToWorkspace("special:"+name, w.Address); err != nil {
					return "", err
				}
				return fmt.Sprintf("stashed %s onto special:%s", w.Address, name), nil
			}
		}
		return "", fmt.Errorf("no focused window to stash")
	case "status":
		return fmt.Sprintf("default special workspace: %s", p.config.DefaultSpecialName), nil
	default:
		return "", fmt.Errorf("unknown toggle_special command: %s", verb)
	}
}

func workspaceLastWindow(rt *Runtime, workspaceID int) string {
	if rt.Cache != nil {
		if ws, ok := rt.Cache.Workspace(workspaceID); ok {
			return ws.LastWindow
		}
	}
	workspaces, err := rt.Bridge.Workspaces()
	if err != nil {
		return ""
	}
	for _, ws := range workspaces {
		if ws.ID == workspaceID {
			return ws.LastWindow
		}
	}
	return ""
}
