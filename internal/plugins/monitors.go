package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("monitors", func(rt *Runtime) Plugin {
		return &MonitorsPlugin{rt: rt, logger: rt.Logger, placements: make(map[string]string)}
	})
}

// MonitorsPlugin applies a declarative monitor layout: each config key
// is a monitor name (or description substring) mapped to a hyprland
// monitor rule string ("1920x1080@144,0x0,1").
type MonitorsPlugin struct {
	rt         *Runtime
	logger     *logrus.Logger
	placements map[string]string
}

func (p *MonitorsPlugin) Name() string { return "monitors" }

func (p *MonitorsPlugin) Init(config map[string]interface{}) error {
	for name, raw := range config {
		rule, ok := raw.(string)
		if !ok {
			continue
		}
		p.placements[name] = rule
	}
	p.logger.WithField("placements", len(p.placements)).Info("Monitors plugin initialized")
	return nil
}

func (p *MonitorsPlugin) HandleEvent(event compositor.Event) error {
	// A monitor focus change re-applies the layout.
	if event.Kind == compositor.EventMonitorChanged {
		if err := p.applyLayout(); err != nil {
			return err
		}
	}
	return nil
}

func (p *MonitorsPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "", "relayout":
		if err := p.applyLayout(); err != nil {
			return "", err
		}
		return "monitor layout applied", nil
	case "list":
		return p.list()
	case "status":
		monitors, err := p.rt.Bridge.Monitors()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d monitors, %d placements configured", len(monitors), len(p.placements)), nil
	case "test":
		matched, err := p.matchedPlacements()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("layout test: %d of %d placements match a connected monitor", matched, len(p.placements)), nil
	case "reload":
		if p.rt.Cache != nil {
			if monitors, err := p.rt.Bridge.Monitors(); err == nil {
				p.rt.Cache.UpdateMonitors(monitors)
			}
		}
		return "monitor cache refreshed", nil
	default:
		return "", fmt.Errorf("unknown monitors command: %s", verb)
	}
}

func (p *MonitorsPlugin) applyLayout() error {
	monitors, err := p.rt.Bridge.Monitors()
	if err != nil {
		return err
	}

	for _, monitor := range monitors {
		rule, ok := p.placementFor(monitor)
		if !ok {
			continue
		}
		value := fmt.Sprintf("%s,%s", monitor.Name, rule)
		if err := p.rt.Bridge.SetKeyword("monitor", value); err != nil {
			p.logger.WithError(err).WithField("monitor", monitor.Name).Warn("Failed to apply monitor rule")
		}
	}
	return nil
}

func (p *MonitorsPlugin) placementFor(monitor compositor.Monitor) (string, bool) {
	if rule, ok := p.placements[monitor.Name]; ok {
		return rule, true
	}
	for key, rule := range p.placements {
		if key != "" && strings.Contains(monitor.Description, key) {
			return rule, true
		}
	}
	return "", false
}

func (p *MonitorsPlugin) matchedPlacements() (int, error) {
	monitors, err := p.rt.Bridge.Monitors()
	if err != nil {
		return 0, err
	}
	matched := 0
	for _, monitor := range monitors {
		if _, ok := p.placementFor(monitor); ok {
			matched++
		}
	}
	return matched, nil
}

func (p *MonitorsPlugin) list() (string, error) {
	monitors, err := p.rt.Bridge.Monitors()
	if err != nil {
		return "", err
	}
	sort.Slice(monitors, func(i, j int) bool { return monitors[i].ID < monitors[j].ID })

	var lines []string
	for _, m := range monitors {
		focused := ""
		if m.Focused {
			focused = " (focused)"
		}
		lines = append(lines, fmt.Sprintf("%s: %dx%d@%.0f at %d,%d scale %.1f%s",
			m.Name, m.Width, m.Height, m.RefreshRate, m.X, m.Y, m.Scale, focused))
	}
	return strings.Join(lines, "\n"), nil
}
