package plugins

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("lost_windows", func(rt *Runtime) Plugin {
		return &LostWindowsPlugin{rt: rt, logger: rt.Logger}
	})
}

// LostWindowsPlugin rescues floating windows that ended up outside every
// monitor, typically after an output was unplugged.
type LostWindowsPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
}

func (p *LostWindowsPlugin) Name() string { return "lost_windows" }

func (p *LostWindowsPlugin) Init(map[string]interface{}) error {
	p.logger.Info("Lost-windows plugin initialized")
	return nil
}

func (p *LostWindowsPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *LostWindowsPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "", "rescue":
		return p.rescue()
	default:
		return "", fmt.Errorf("unknown lost_windows command: %s", verb)
	}
}

func (p *LostWindowsPlugin) rescue() (string, error) {
	monitors, err := p.rt.Bridge.Monitors()
	if err != nil {
		return "", err
	}
	windows, err := p.rt.Bridge.Clients()
	if err != nil {
		return "", err
	}
	focused, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}

	rescued := 0
	for _, w := range windows {
		if !w.Floating {
			continue
		}
		if onAnyMonitor(w, monitors) {
			continue
		}
		target := strconv.Itoa(focused.ActiveWorkspace.ID)
		if err := p.rt.Bridge.MoveWindowToWorkspace(target, w.Address); err != nil {
			p.logger.WithError(err).WithField("address", w.Address).Warn("Failed to rescue window")
			continue
		}
		x := focused.X + (focused.Width-w.Size[0])/2
		y := focused.Y + (focused.Height-w.Size[1])/2
		if err := p.rt.Bridge.MoveWindowPixel(w.Address, x, y); err != nil {
			p.logger.WithError(err).WithField("address", w.Address).Warn("Failed to center rescued window")
		}
		rescued++
	}

	return fmt.Sprintf("rescued %d lost windows", rescued), nil
}

// onAnyMonitor reports whether the window's center lies inside some
// monitor's geometry.
func onAnyMonitor(w compositor.Window, monitors []compositor.Monitor) bool {
	cx := w.At[0] + w.Size[0]/2
	cy := w.At[1] + w.Size[1]/2
	for _, m := range monitors {
		if m.Disabled {
			continue
		}
		if cx >= m.X && cx < m.X+m.Width && cy >= m.Y && cy < m.Y+m.Height {
			return true
		}
	}
	return false
}
