package plugins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("workspaces_follow_focus", func(rt *Runtime) Plugin {
		return &WorkspacesFollowFocusPlugin{rt: rt, logger: rt.Logger}
	})
}

// WorkspacesFollowFocusConfig tunes workspace-follows-monitor behavior.
type WorkspacesFollowFocusConfig struct {
	FollowWindowFocus        bool `mapstructure:"follow_window_focus"`
	AllowCrossMonitorSwitch  bool `mapstructure:"allow_cross_monitor_switch"`
	WorkspaceRange           int  `mapstructure:"workspace_range"`
}

// WorkspacesFollowFocusPlugin keeps workspaces attached to the focused
// monitor and exposes relative/absolute workspace switching.
type WorkspacesFollowFocusPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config WorkspacesFollowFocusConfig

	focusedMonitor string
}

func (p *WorkspacesFollowFocusPlugin) Name() string { return "workspaces_follow_focus" }

func (p *WorkspacesFollowFocusPlugin) Init(config map[string]interface{}) error {
	p.config = WorkspacesFollowFocusConfig{
		AllowCrossMonitorSwitch: true,
		WorkspaceRange:          10,
	}
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("workspaces_follow_focus config: %w", err)
	}
	p.logger.Info("Workspaces-follow-focus plugin initialized")
	return nil
}

func (p *WorkspacesFollowFocusPlugin) HandleEvent(event compositor.Event) error {
	switch event.Kind {
	case compositor.EventMonitorChanged:
		p.focusedMonitor = event.Monitor
		p.refreshCache()
	case compositor.EventWorkspaceChanged:
		p.refreshCache()
	}
	return nil
}

// refreshCache publishes fresh snapshots for every cache consumer when
// the cached copies have gone stale.
func (p *WorkspacesFollowFocusPlugin) refreshCache() {
	if p.rt.Cache == nil || p.rt.Cache.Valid() {
		return
	}
	if monitors, err := p.rt.Bridge.Monitors(); err == nil {
		p.rt.Cache.UpdateMonitors(monitors)
	}
	if workspaces, err := p.rt.Bridge.Workspaces(); err == nil {
		p.rt.Cache.UpdateWorkspaces(workspaces)
	}
}

func (p *WorkspacesFollowFocusPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "switch":
		if len(args) == 0 {
			return "", fmt.Errorf("switch requires a workspace id or name")
		}
		return p.switchTo(args[0])
	case "change":
		delta := 1
		if len(args) > 0 {
			d, err := strconv.Atoi(args[0])
			if err != nil {
				return "", fmt.Errorf("invalid offset %q", args[0])
			}
			delta = d
		}
		return p.change(delta)
	case "list":
		return p.list()
	case "status":
		return fmt.Sprintf("focused monitor: %s", p.focusedMonitor), nil
	default:
		return "", fmt.Errorf("unknown workspaces_follow_focus command: %s", verb)
	}
}

func (p *WorkspacesFollowFocusPlugin) switchTo(target string) (string, error) {
	monitor, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}

	// Pull the workspace onto the focused monitor before switching, so
	// switching never yanks focus to another output.
	if p.config.AllowCrossMonitorSwitch {
		workspaces, err := p.rt.Bridge.Workspaces()
		if err != nil {
			return "", err
		}
		for _, ws := range workspaces {
			if ws.Name == target || strconv.Itoa(ws.ID) == target {
				if ws.Monitor != monitor.Name {
					if err := p.rt.Bridge.MoveWorkspaceToMonitor(target, monitor.Name); err != nil {
						return "", err
					}
				}
				break
			}
		}
	}

	if err := p.rt.Bridge.DispatchWorkspace(target); err != nil {
		return "", err
	}
	return fmt.Sprintf("Switched to workspace %s", target), nil
}

func (p *WorkspacesFollowFocusPlugin) change(delta int) (string, error) {
	monitor, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}

	next := monitor.ActiveWorkspace.ID + delta
	if next < 1 {
		next = p.config.WorkspaceRange
	} else if next > p.config.WorkspaceRange {
		next = 1
	}
	return p.switchTo(strconv.Itoa(next))
}

func (p *WorkspacesFollowFocusPlugin) list() (string, error) {
	workspaces, err := p.rt.Bridge.Workspaces()
	if err != nil {
		return "", err
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].ID < workspaces[j].ID })

	var lines []string
	for _, ws := range workspaces {
		lines = append(lines, fmt.Sprintf("%d: %s on %s (%d windows)", ws.ID, ws.Name, ws.Monitor, ws.Windows))
	}
	return strings.Join(lines, "\n"), nil
}
