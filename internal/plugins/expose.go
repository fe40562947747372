package plugins

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("expose", func(rt *Runtime) Plugin {
		return &ExposePlugin{
			rt:     rt,
			logger: rt.Logger,
			saved:  make(map[string]savedGeometry),
		}
	})
}

// ExposeConfig tunes the overview grid.
type ExposeConfig struct {
	Padding    int  `mapstructure:"padding"`
	IncludeAll bool `mapstructure:"include_all"`
}

type savedGeometry struct {
	X, Y          int
	Width, Height int
}

// ExposePlugin lays every visible window out on a grid for an overview,
// and restores the original geometry on exit.
type ExposePlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config ExposeConfig

	active  bool
	saved   map[string]savedGeometry
	order   []string
	focused int
}

func (p *ExposePlugin) Name() string { return "expose" }

func (p *ExposePlugin) Init(config map[string]interface{}) error {
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("expose config: %w", err)
	}
	if p.config.Padding <= 0 {
		p.config.Padding = 20
	}
	p.logger.Info("Expose plugin initialized")
	return nil
}

func (p *ExposePlugin) HandleEvent(event compositor.Event) error {
	if p.active && event.Kind == compositor.EventWindowClosed {
		delete(p.saved, event.Address)
	}
	return nil
}

func (p *ExposePlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "toggle":
		if p.active {
			return p.exit()
		}
		return p.enter()
	case "show":
		return p.enter()
	case "hide", "exit":
		return p.exit()
	case "next":
		return p.cycle(1)
	case "prev", "previous":
		return p.cycle(-1)
	case "status":
		if p.active {
			return fmt.Sprintf("expose active with %d windows", len(p.order)), nil
		}
		return "expose inactive", nil
	default:
		return "", fmt.Errorf("unknown expose command: %s", verb)
	}
}

func (p *ExposePlugin) enter() (string, error) {
	if p.active {
		return "expose already active", nil
	}

	monitor, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}
	windows, err := p.rt.Bridge.Clients()
	if err != nil {
		return "", err
	}

	var shown []compositor.Window
	for _, w := range windows {
		if !p.config.IncludeAll && w.Workspace.ID != monitor.ActiveWorkspace.ID {
			continue
		}
		shown = append(shown, w)
	}
	if len(shown) == 0 {
		return "no windows to expose", nil
	}
	sort.Slice(shown, func(i, j int) bool { return shown[i].Address < shown[j].Address })

	cols := int(math.Ceil(math.Sqrt(float64(len(shown)))))
	rows := (len(shown) + cols - 1) / cols
	cellW := (monitor.Width - (cols+1)*p.config.Padding) / cols
	cellH := (monitor.Height - (rows+1)*p.config.Padding) / rows

	p.saved = make(map[string]savedGeometry, len(shown))
	p.order = p.order[:0]

	for i, w := range shown {
		p.saved[w.Address] = savedGeometry{X: w.At[0], Y: w.At[1], Width: w.Size[0], Height: w.Size[1]}
		p.order = append(p.order, w.Address)

		col := i % cols
		row := i / cols
		x := monitor.X + p.config.Padding + col*(cellW+p.config.Padding)
		y := monitor.Y + p.config.Padding + row*(cellH+p.config.Padding)

		if err := p.rt.Bridge.MoveWindowPixel(w.Address, x, y); err != nil {
			p.logger.WithError(err).WithField("address", w.Address).Warn("Failed to place window in grid")
			continue
		}
		if err := p.rt.Bridge.ResizeWindow(w.Address, cellW, cellH); err != nil {
			p.logger.WithError(err).WithField("address", w.Address).Warn("Failed to resize window for grid")
		}
	}

	p.active = true
	p.focused = 0
	return fmt.Sprintf("expose: showing %d windows", len(shown)), nil
}

func (p *ExposePlugin) exit() (string, error) {
	if !p.active {
		return "expose not active", nil
	}

	for address, geo := range p.saved {
		if err := p.rt.Bridge.MoveWindowPixel(address, geo.X, geo.Y); err != nil {
			p.logger.WithError(err).WithField("address", address).Warn("Failed to restore window position")
			continue
		}
		if err := p.rt.Bridge.ResizeWindow(address, geo.Width, geo.Height); err != nil {
			p.logger.WithError(err).WithField("address", address).Warn("Failed to restore window size")
		}
	}

	restored := len(p.saved)
	p.active = false
	p.saved = make(map[string]savedGeometry)
	p.order = nil
	return fmt.Sprintf("expose: restored %d windows", restored), nil
}

func (p *ExposePlugin) cycle(delta int) (string, error) {
	if !p.active || len(p.order) == 0 {
		return "", fmt.Errorf("expose not active")
	}
	p.focused = ((p.focused+delta)%len(p.order) + len(p.order)) % len(p.order)
	address := p.order[p.focused]
	return fmt.Sprintf("focused window %s", address), nil
}

// SnapshotState preserves grid membership across reloads so an active
// overview can still be exited cleanly.
func (p *ExposePlugin) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Active bool                     `json:"active"`
		Saved  map[string]savedGeometry `json:"saved"`
		Order  []string                 `json:"order"`
	}{p.active, p.saved, p.order})
}

func (p *ExposePlugin) RestoreState(state json.RawMessage) error {
	var snap struct {
		Active bool                     `json:"active"`
		Saved  map[string]savedGeometry `json:"saved"`
		Order  []string                 `json:"order"`
	}
	if err := json.Unmarshal(state, &snap); err != nil {
		return err
	}
	p.active = snap.Active
	if snap.Saved != nil {
		p.saved = snap.Saved
	}
	p.order = snap.Order
	return nil
}
