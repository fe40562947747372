package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/animation"
	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("scratchpads", func(rt *Runtime) Plugin {
		return &ScratchpadsPlugin{
			rt:     rt,
			logger: rt.Logger,
			pads:   make(map[string]*ScratchpadConfig),
			states: make(map[string]*scratchpadState),
		}
	})
}

// ScratchpadConfig declares one named drop-down window.
type ScratchpadConfig struct {
	Command   string `mapstructure:"command"`
	Class     string `mapstructure:"class"`
	Size      string `mapstructure:"size"`
	Animation string `mapstructure:"animation"`
	Duration  int    `mapstructure:"duration"`
	Easing    string `mapstructure:"easing"`
	Offset    string `mapstructure:"offset"`
	Lazy      bool   `mapstructure:"lazy"`

	// CloseOnHide closes the window after the hide animation instead of
	// keeping it parked off-screen.
	CloseOnHide bool `mapstructure:"close_on_hide"`
}

type scratchpadState struct {
	Address string `json:"address"`
	Visible bool   `json:"visible"`
}

// ScratchpadsPlugin manages named toggleable drop-down windows, animated
// in and out through the window animator.
type ScratchpadsPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	pads   map[string]*ScratchpadConfig
	states map[string]*scratchpadState
}

func (p *ScratchpadsPlugin) Name() string { return "scratchpads" }

func (p *ScratchpadsPlugin) Init(config map[string]interface{}) error {
	for name, raw := range config {
		table, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		var sc ScratchpadConfig
		if err := mapstructure.Decode(table, &sc); err != nil {
			return fmt.Errorf("scratchpad %q: %w", name, err)
		}
		if sc.Size == "" {
			sc.Size = "50% 50%"
		}
		if p.rt.Variables != nil {
			sc.Command = expandVariables(sc.Command, p.rt.Variables())
		}
		p.pads[name] = &sc
		p.logger.WithField("scratchpad", name).Debug("Registered scratchpad")
	}

	p.logger.WithField("count", len(p.pads)).Info("Scratchpads plugin initialized")
	return nil
}

func (p *ScratchpadsPlugin) HandleEvent(event compositor.Event) error {
	if event.Kind != compositor.EventWindowClosed {
		return nil
	}
	for name, state := range p.states {
		if state.Address == event.Address {
			delete(p.states, name)
			p.logger.WithField("scratchpad", name).Debug("Scratchpad window closed externally")
		}
	}
	return nil
}

func (p *ScratchpadsPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "toggle":
		if len(args) == 0 {
			return "", fmt.Errorf("toggle requires a scratchpad name")
		}
		return p.toggle(args[0])
	case "show":
		if len(args) == 0 {
			return "", fmt.Errorf("show requires a scratchpad name")
		}
		return p.show(args[0])
	case "hide":
		if len(args) == 0 {
			return "", fmt.Errorf("hide requires a scratchpad name")
		}
		return p.hide(args[0])
	case "list":
		names := make([]string, 0, len(p.pads))
		for name := range p.pads {
			names = append(names, name)
		}
		sort.Strings(names)
		return "Available scratchpads: " + strings.Join(names, ", "), nil
	case "status":
		visible := 0
		var animating []string
		for name, state := range p.states {
			if state.Visible {
				visible++
			}
			if p.rt.Animator == nil {
				continue
			}
			if showing, ok := p.rt.Animator.AnimationDirection(state.Address); ok {
				direction := "hiding"
				if showing {
					direction = "showing"
				}
				animating = append(animating, fmt.Sprintf("%s (%s)", name, direction))
			}
		}
		status := fmt.Sprintf("%d scratchpads configured, %d visible", len(p.pads), visible)
		if len(animating) > 0 {
			sort.Strings(animating)
			status += ", animating: " + strings.Join(animating, ", ")
		}
		return status, nil
	default:
		return "", fmt.Errorf("unknown scratchpads command: %s", verb)
	}
}

func (p *ScratchpadsPlugin) toggle(name string) (string, error) {
	if _, ok := p.pads[name]; !ok {
		return "", fmt.Errorf("scratchpad %q not found", name)
	}
	if state, ok := p.states[name]; ok && state.Visible {
		return p.hide(name)
	}
	return p.show(name)
}

func (p *ScratchpadsPlugin) show(name string) (string, error) {
	sc, ok := p.pads[name]
	if !ok {
		return "", fmt.Errorf("scratchpad %q not found", name)
	}

	monitor, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}
	p.rt.Animator.SetActiveMonitor(*monitor)

	size, err := parseSize(sc.Size, monitor.Width, monitor.Height)
	if err != nil {
		return "", err
	}
	target := [2]int{(monitor.Width - size[0]) / 2, (monitor.Height - size[1]) / 2}

	window, err := p.rt.Animator.ShowWindow(context.Background(), sc.Command, target, size, p.animationConfig(sc))
	if err != nil {
		return "", err
	}

	p.states[name] = &scratchpadState{Address: window.Address, Visible: true}
	return fmt.Sprintf("Showed scratchpad %s", name), nil
}

func (p *ScratchpadsPlugin) hide(name string) (string, error) {
	sc, ok := p.pads[name]
	if !ok {
		return "", fmt.Errorf("scratchpad %q not found", name)
	}
	state, ok := p.states[name]
	if !ok || !state.Visible {
		return fmt.Sprintf("Scratchpad %s is not visible", name), nil
	}

	windows, err := p.rt.Bridge.Clients()
	if err != nil {
		return "", err
	}
	var window *compositor.Window
	for i := range windows {
		if windows[i].Address == state.Address {
			window = &windows[i]
			break
		}
	}
	if window == nil {
		delete(p.states, name)
		return fmt.Sprintf("Scratchpad %s window is gone", name), nil
	}

	monitor, err := p.rt.Bridge.FocusedMonitor()
	if err != nil {
		return "", err
	}
	p.rt.Animator.SetActiveMonitor(*monitor)

	current := [2]int{window.At[0] - monitor.X, window.At[1] - monitor.Y}
	size := [2]int{window.Size[0], window.Size[1]}
	if err := p.rt.Animator.HideWindow(context.Background(), state.Address, current, size, p.animationConfig(sc)); err != nil {
		return "", err
	}

	state.Visible = false
	if sc.CloseOnHide {
		// The hide animation owns the geometry; close once it settles.
		address := state.Address
		go func() {
			for p.rt.Animator.IsAnimating(address) {
				time.Sleep(50 * time.Millisecond)
			}
			if err := p.rt.Animator.CloseWindow(address); err != nil {
				p.logger.WithError(err).WithField("address", address).Debug("Failed to close scratchpad window")
			}
		}()
	}
	return fmt.Sprintf("Hid scratchpad %s", name), nil
}

func (p *ScratchpadsPlugin) animationConfig(sc *ScratchpadConfig) animation.Config {
	cfg := animation.DefaultConfig()
	if sc.Animation != "" {
		cfg.AnimationType = sc.Animation
	}
	if sc.Duration > 0 {
		cfg.Duration = sc.Duration
	}
	if sc.Easing != "" {
		cfg.Easing = sc.Easing
	}
	if sc.Offset != "" {
		cfg.Offset = sc.Offset
	}
	return cfg
}

// SnapshotState preserves which scratchpads are bound to which windows.
func (p *ScratchpadsPlugin) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(p.states)
}

// RestoreState re-adopts window bindings from a previous instance.
func (p *ScratchpadsPlugin) RestoreState(state json.RawMessage) error {
	restored := make(map[string]*scratchpadState)
	if err := json.Unmarshal(state, &restored); err != nil {
		return err
	}
	for name, st := range restored {
		if _, ok := p.pads[name]; ok {
			p.states[name] = st
		}
	}
	return nil
}

// parseSize resolves a "W H" size spec where each part is "Npx", "N%",
// or bare pixels.
func parseSize(spec string, screenWidth, screenHeight int) ([2]int, error) {
	parts := strings.Fields(spec)
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("size %q must be \"WIDTH HEIGHT\"", spec)
	}
	w, err := animation.ParseOffset(parts[0], screenWidth)
	if err != nil {
		return [2]int{}, err
	}
	h, err := animation.ParseOffset(parts[1], screenHeight)
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{w, h}, nil
}

func expandVariables(s string, variables map[string]string) string {
	for name, value := range variables {
		s = strings.ReplaceAll(s, "["+name+"]", value)
	}
	return s
}
