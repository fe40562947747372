package plugins

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("shift_monitors", func(rt *Runtime) Plugin {
		return &ShiftMonitorsPlugin{rt: rt, logger: rt.Logger}
	})
}

// ShiftMonitorsPlugin rotates each monitor's active workspace onto the
// next monitor, in monitor-id order.
type ShiftMonitorsPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
}

func (p *ShiftMonitorsPlugin) Name() string { return "shift_monitors" }

func (p *ShiftMonitorsPlugin) Init(map[string]interface{}) error {
	p.logger.Info("Shift-monitors plugin initialized")
	return nil
}

func (p *ShiftMonitorsPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *ShiftMonitorsPlugin) HandleCommand(verb string, args []string) (string, error) {
	direction := 1
	switch verb {
	case "":
	case "status":
		monitors, err := p.rt.Bridge.Monitors()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d monitors connected", len(monitors)), nil
	default:
		d, err := strconv.Atoi(verb)
		if err != nil {
			return "", fmt.Errorf("invalid direction %q: use +1 or -1", verb)
		}
		direction = d
	}
	return p.shift(direction)
}

func (p *ShiftMonitorsPlugin) shift(direction int) (string, error) {
	monitors, err := p.rt.Bridge.Monitors()
	if err != nil {
		return "", err
	}
	if len(monitors) < 2 {
		return "nothing to shift: fewer than two monitors", nil
	}
	sort.Slice(monitors, func(i, j int) bool { return monitors[i].ID < monitors[j].ID })

	n := len(monitors)
	for i, monitor := range monitors {
		target := monitors[((i+direction)%n+n)%n]
		workspace := strconv.Itoa(monitor.ActiveWorkspace.ID)
		if err := p.rt.Bridge.MoveWorkspaceToMonitor(workspace, target.Name); err != nil {
			return "", fmt.Errorf("move workspace %s to %s: %w", workspace, target.Name, err)
		}
	}

	return fmt.Sprintf("shifted %d workspaces by %+d", n, direction), nil
}
