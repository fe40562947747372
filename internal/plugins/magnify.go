package plugins

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/animation"
	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("magnify", func(rt *Runtime) Plugin {
		return &MagnifyPlugin{rt: rt, logger: rt.Logger, zoom: 1.0}
	})
}

// MagnifyConfig tunes screen magnification.
type MagnifyConfig struct {
	Factor   float64 `mapstructure:"factor"`
	Duration int     `mapstructure:"duration"`
	Animated bool    `mapstructure:"animated"`
	MaxZoom  float64 `mapstructure:"max_zoom"`
}

// MagnifyPlugin drives the compositor's cursor zoom, optionally easing
// zoom transitions through the animation engine.
type MagnifyPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config MagnifyConfig
	zoom   float64
}

func (p *MagnifyPlugin) Name() string { return "magnify" }

func (p *MagnifyPlugin) Init(config map[string]interface{}) error {
	p.config = MagnifyConfig{Factor: 2.0, Duration: 300, Animated: true, MaxZoom: 10.0}
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("magnify config: %w", err)
	}
	p.logger.WithField("factor", p.config.Factor).Info("Magnify plugin initialized")
	return nil
}

func (p *MagnifyPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *MagnifyPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "toggle":
		if p.zoom > 1.0 {
			return p.setZoom(1.0)
		}
		return p.setZoom(p.config.Factor)
	case "set":
		if len(args) == 0 {
			return "", fmt.Errorf("set requires a zoom level")
		}
		zoom, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", fmt.Errorf("invalid zoom level %q", args[0])
		}
		return p.setZoom(zoom)
	case "change":
		if len(args) == 0 {
			return "", fmt.Errorf("change requires a delta")
		}
		delta, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", fmt.Errorf("invalid zoom delta %q", args[0])
		}
		return p.setZoom(p.zoom + delta)
	case "reset":
		return p.setZoom(1.0)
	case "status":
		return fmt.Sprintf("zoom: %.2f", p.zoom), nil
	default:
		return "", fmt.Errorf("unknown magnify command: %s", verb)
	}
}

func (p *MagnifyPlugin) setZoom(target float64) (string, error) {
	if target < 1.0 {
		target = 1.0
	}
	if target > p.config.MaxZoom {
		target = p.config.MaxZoom
	}

	if !p.config.Animated || p.rt.Engine == nil {
		if err := p.applyZoom(target); err != nil {
			return "", err
		}
		p.zoom = target
		return fmt.Sprintf("zoom set to %.2f", target), nil
	}

	cfg := animation.Config{
		AnimationType: "complex",
		Duration:      p.config.Duration,
		Easing:        "ease-out-cubic",
		Properties: []animation.PropertyConfig{
			{Property: "zoom", From: fmt.Sprintf("%g", p.zoom), To: fmt.Sprintf("%g", target)},
		},
	}

	id := "magnify_" + uuid.NewString()
	if err := p.rt.Engine.Start(context.Background(), id, cfg, nil, nil); err != nil {
		return "", err
	}

	go func() {
		ticker := time.NewTicker(16 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			props, ok := p.rt.Engine.CurrentProperties(id)
			if !ok {
				break
			}
			if v, ok := props["zoom"]; ok {
				if err := p.applyZoom(v.AsFloat()); err != nil {
					p.logger.WithError(err).Debug("Failed to apply zoom frame")
				}
			}
		}
		// Settle exactly on the target once the engine forgets the id.
		if err := p.applyZoom(target); err != nil {
			p.logger.WithError(err).Debug("Failed to settle zoom")
		}
	}()

	p.zoom = target
	return fmt.Sprintf("zoom animating to %.2f", target), nil
}

func (p *MagnifyPlugin) applyZoom(zoom float64) error {
	return p.rt.Bridge.SetKeyword("cursor:zoom_factor", strconv.FormatFloat(zoom, 'f', 3, 64))
}

// Cleanup resets zoom so a reload never strands a magnified session.
func (p *MagnifyPlugin) Cleanup() error {
	if p.zoom != 1.0 {
		return p.applyZoom(1.0)
	}
	return nil
}
