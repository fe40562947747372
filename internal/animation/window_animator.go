package animation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

// ErrNoWindow is returned when a spawned application never produced a
// matching window within the wait timeout.
var ErrNoWindow = errors.New("no window appeared within timeout")

const (
	// windowWaitTimeout bounds how long ShowWindow polls for the
	// spawned window's class to appear.
	windowWaitTimeout = 5 * time.Second
	windowWaitPoll    = 100 * time.Millisecond
)

// windowAnimation tracks one in-flight window animation, keyed by the
// compositor window address.
type windowAnimation struct {
	address        string
	originalPos    [2]int
	originalSize   [2]int
	targetPos      [2]int
	targetSize     [2]int
	animationID    string
	showing        bool
}

// WindowAnimator binds engine output to real windows through the
// compositor bridge. It holds a shared handle of the bridge; lifetimes
// are anchored at the daemon.
type WindowAnimator struct {
	logger *logrus.Logger
	tracer trace.Tracer
	engine *Engine
	bridge compositor.Bridge

	mu            sync.Mutex
	activeMonitor compositor.Monitor
	animations    map[string]*windowAnimation
}

// NewWindowAnimator wires an animator over the engine and bridge.
func NewWindowAnimator(logger *logrus.Logger, engine *Engine, bridge compositor.Bridge) *WindowAnimator {
	return &WindowAnimator{
		logger:     logger,
		tracer:     otel.Tracer("animation.window_animator"),
		engine:     engine,
		bridge:     bridge,
		animations: make(map[string]*windowAnimation),
	}
}

// SetActiveMonitor records the monitor whose geometry and refresh rate
// drive coordinate translation and the frame-apply cadence.
func (wa *WindowAnimator) SetActiveMonitor(monitor compositor.Monitor) {
	wa.mu.Lock()
	wa.activeMonitor = monitor
	wa.mu.Unlock()
	wa.engine.SetScreenSize(monitor.Width, monitor.Height)
}

func (wa *WindowAnimator) monitor() compositor.Monitor {
	wa.mu.Lock()
	defer wa.mu.Unlock()
	return wa.activeMonitor
}

// ShowWindow spawns app off-screen, waits for its window, pins it, and
// animates it to targetPos (monitor-relative coordinates). Returns the
// window snapshot, or ErrNoWindow when the window never appeared.
func (wa *WindowAnimator) ShowWindow(ctx context.Context, app string, targetPos, size [2]int, config Config) (*compositor.Window, error) {
	ctx, span := wa.tracer.Start(ctx, "animation.WindowAnimator.ShowWindow")
	defer span.End()

	monitor := wa.monitor()

	startPos, err := wa.showStartPosition(targetPos, size, monitor, config)
	if err != nil {
		return nil, err
	}

	appClass := "toggle_" + app
	execSpec := fmt.Sprintf("[float; move %d %d; size %d %d] %s --app-id %s",
		startPos[0], startPos[1], size[0], size[1], app, appClass)
	if err := wa.bridge.Spawn(execSpec); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", app, err)
	}

	window, err := wa.waitForWindowByClass(appClass, windowWaitTimeout)
	if err != nil {
		return nil, err
	}
	address := window.Address

	if err := wa.bridge.PinWindow(address); err != nil {
		wa.logger.WithError(err).WithField("address", address).Warn("Failed to pin window for animation")
	}

	absStart := [2]int{monitor.X + startPos[0], monitor.Y + startPos[1]}
	absTarget := [2]int{monitor.X + targetPos[0], monitor.Y + targetPos[1]}

	animationID := "show_" + address
	wa.mu.Lock()
	wa.animations[address] = &windowAnimation{
		address:      address,
		originalPos:  absStart,
		originalSize: size,
		targetPos:    absTarget,
		targetSize:   size,
		animationID:  animationID,
		showing:      true,
	}
	wa.mu.Unlock()

	targets := map[string]Value{
		"x":      Pixels(absTarget[0]),
		"y":      Pixels(absTarget[1]),
		"width":  Pixels(size[0]),
		"height": Pixels(size[1]),
	}
	if config.AnimationType == "fade" {
		targets["opacity"] = Scalar(1.0)
	}
	if config.AnimationType == "scale" {
		targets["scale"] = Scalar(1.0)
	}

	if err := wa.engine.Start(ctx, animationID, config, nil, targets); err != nil {
		wa.mu.Lock()
		delete(wa.animations, address)
		wa.mu.Unlock()
		return nil, err
	}

	go wa.applyLoop(address, animationID, config.AnimationType, monitor.RefreshRate)
	return window, nil
}

// HideWindow animates a window from its current position to the derived
// exit position; the window is left there for the caller to close or
// keep.
func (wa *WindowAnimator) HideWindow(ctx context.Context, address string, currentPos, size [2]int, config Config) error {
	ctx, span := wa.tracer.Start(ctx, "animation.WindowAnimator.HideWindow")
	defer span.End()

	monitor := wa.monitor()
	absCurrent := [2]int{monitor.X + currentPos[0], monitor.Y + currentPos[1]}

	exit, err := wa.hideExitPosition(absCurrent, size, monitor, config)
	if err != nil {
		return err
	}

	animationID := "hide_" + address
	wa.mu.Lock()
	wa.animations[address] = &windowAnimation{
		address:      address,
		originalPos:  absCurrent,
		originalSize: size,
		targetPos:    exit,
		targetSize:   size,
		animationID:  animationID,
		showing:      false,
	}
	wa.mu.Unlock()

	// Hide animates from a known current position, so the property list
	// carries the explicit from/to pairs instead of the derive-start path.
	hideConfig := config
	hideConfig.Properties = []PropertyConfig{
		{Property: "x", From: fmt.Sprintf("%dpx", absCurrent[0]), To: fmt.Sprintf("%dpx", exit[0])},
		{Property: "y", From: fmt.Sprintf("%dpx", absCurrent[1]), To: fmt.Sprintf("%dpx", exit[1])},
		{Property: "width", From: fmt.Sprintf("%dpx", size[0]), To: fmt.Sprintf("%dpx", size[0])},
		{Property: "height", From: fmt.Sprintf("%dpx", size[1]), To: fmt.Sprintf("%dpx", size[1])},
	}
	if config.AnimationType == "fade" {
		hideConfig.Properties = append(hideConfig.Properties,
			PropertyConfig{Property: "opacity", From: "1.0", To: fmt.Sprintf("%g", config.OpacityFrom)})
	}
	if config.AnimationType == "scale" {
		hideConfig.Properties = append(hideConfig.Properties,
			PropertyConfig{Property: "scale", From: "1.0", To: fmt.Sprintf("%g", config.ScaleFrom)})
	}

	if err := wa.engine.Start(ctx, animationID, hideConfig, nil, nil); err != nil {
		wa.mu.Lock()
		delete(wa.animations, address)
		wa.mu.Unlock()
		return err
	}

	go wa.applyLoop(address, animationID, config.AnimationType, monitor.RefreshRate)
	return nil
}

// CloseWindow is a bridge passthrough.
func (wa *WindowAnimator) CloseWindow(address string) error {
	return wa.bridge.CloseWindow(address)
}

// StopAnimation halts any animation in flight for the window.
func (wa *WindowAnimator) StopAnimation(address string) {
	wa.mu.Lock()
	anim, ok := wa.animations[address]
	if ok {
		delete(wa.animations, address)
	}
	wa.mu.Unlock()

	if ok {
		wa.engine.Stop(context.Background(), anim.animationID)
		wa.logger.WithField("address", address).Info("Stopped window animation")
	}
}

// IsAnimating reports whether the window has an animation in flight.
func (wa *WindowAnimator) IsAnimating(address string) bool {
	wa.mu.Lock()
	defer wa.mu.Unlock()
	_, ok := wa.animations[address]
	return ok
}

// AnimationDirection reports whether the window's in-flight animation
// is showing (true) or hiding (false); ok=false when nothing is in
// flight for the address.
func (wa *WindowAnimator) AnimationDirection(address string) (showing bool, ok bool) {
	wa.mu.Lock()
	defer wa.mu.Unlock()
	anim, ok := wa.animations[address]
	if !ok {
		return false, false
	}
	return anim.showing, true
}

// PerformanceStats surfaces the engine's frame statistics.
func (wa *WindowAnimator) PerformanceStats() PerformanceStats {
	return wa.engine.PerformanceStats()
}

// showStartPosition derives the fully off-screen spawn position for the
// animation type, in monitor-relative coordinates.
func (wa *WindowAnimator) showStartPosition(target, size [2]int, monitor compositor.Monitor, config Config) ([2]int, error) {
	offset := config.Offset
	if offset == "" {
		offset = DefaultConfig().Offset
	}
	offsetX, err := ParseOffset(offset, monitor.Width)
	if err != nil {
		return [2]int{}, err
	}
	offsetY, err := ParseOffset(offset, monitor.Height)
	if err != nil {
		return [2]int{}, err
	}

	switch config.AnimationType {
	case "fromTop", "bounce":
		return [2]int{target[0], -size[1] - offsetY}, nil
	case "fromBottom":
		return [2]int{target[0], monitor.Height + size[1] + offsetY}, nil
	case "fromLeft":
		return [2]int{-size[0] - offsetX, target[1]}, nil
	case "fromRight":
		return [2]int{monitor.Width + size[0] + offsetX, target[1]}, nil
	case "fromTopLeft":
		return [2]int{-size[0] - offsetX, -size[1] - offsetY}, nil
	case "fromTopRight":
		return [2]int{monitor.Width + size[0] + offsetX, -size[1] - offsetY}, nil
	case "fromBottomLeft":
		return [2]int{-size[0] - offsetX, monitor.Height + size[1] + offsetY}, nil
	case "fromBottomRight":
		return [2]int{monitor.Width + size[0] + offsetX, monitor.Height + size[1] + offsetY}, nil
	default:
		// fade, scale, spring, elastic: spawn in place.
		return target, nil
	}
}

// hideExitPosition mirrors the show derivation in absolute coordinates.
func (wa *WindowAnimator) hideExitPosition(current, size [2]int, monitor compositor.Monitor, config Config) ([2]int, error) {
	offset := config.Offset
	if offset == "" {
		offset = DefaultConfig().Offset
	}
	offsetX, err := ParseOffset(offset, monitor.Width)
	if err != nil {
		return [2]int{}, err
	}
	offsetY, err := ParseOffset(offset, monitor.Height)
	if err != nil {
		return [2]int{}, err
	}

	switch config.AnimationType {
	case "toTop", "fromTop", "bounce":
		return [2]int{current[0], monitor.Y - size[1] - offsetY}, nil
	case "toBottom", "fromBottom":
		return [2]int{current[0], monitor.Y + monitor.Height + offsetY}, nil
	case "toLeft", "fromLeft":
		return [2]int{monitor.X - size[0] - offsetX, current[1]}, nil
	case "toRight", "fromRight":
		return [2]int{monitor.X + monitor.Width + offsetX, current[1]}, nil
	default:
		return current, nil
	}
}

// waitForWindowByClass polls the client list until a window whose class
// contains the wanted class appears, or the timeout elapses.
func (wa *WindowAnimator) waitForWindowByClass(class string, timeout time.Duration) (*compositor.Window, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		windows, err := wa.bridge.Clients()
		if err != nil {
			return nil, err
		}
		for i := range windows {
			if strings.Contains(strings.ToLower(windows[i].Class), strings.ToLower(class)) {
				return &windows[i], nil
			}
		}
		time.Sleep(windowWaitPoll)
	}
	return nil, ErrNoWindow
}

// applyLoop ticks at the monitor's refresh period, pushing the engine's
// property snapshot into real window geometry each frame. Opacity is
// driven only for fade/scale animations; every other type re-asserts
// 1.0 each frame so compositor hover-fading cannot bleed through.
func (wa *WindowAnimator) applyLoop(address, animationID, animationType string, refreshRate float64) {
	if refreshRate <= 0 {
		refreshRate = 60
	}
	tick := time.Duration(float64(time.Second) / refreshRate)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	frames := 0
	for range ticker.C {
		props, ok := wa.engine.CurrentProperties(animationID)
		if !ok {
			break
		}
		frames++
		if err := wa.applyProperties(address, props, animationType); err != nil {
			wa.logger.WithError(err).WithField("address", address).Debug("Failed to apply animation frame")
		}
	}

	wa.mu.Lock()
	anim, tracked := wa.animations[address]
	delete(wa.animations, address)
	wa.mu.Unlock()

	if err := wa.bridge.UnpinWindow(address); err != nil {
		wa.logger.WithError(err).WithField("address", address).Debug("Failed to unpin window")
	}
	direction := "hiding"
	if tracked && anim.showing {
		direction = "showing"
	}
	wa.logger.WithFields(logrus.Fields{
		"address":   address,
		"frames":    frames,
		"direction": direction,
	}).Debug("Window animation loop completed")
}

func (wa *WindowAnimator) applyProperties(address string, props map[string]Value, animationType string) error {
	monitor := wa.monitor()

	x, y := 0, 0
	if v, ok := props["x"]; ok {
		x = v.AsPixels(monitor.Width)
	}
	if v, ok := props["y"]; ok {
		y = v.AsPixels(monitor.Height)
	}
	width, height := 800, 600
	if v, ok := props["width"]; ok {
		width = v.AsPixels(monitor.Width)
	}
	if v, ok := props["height"]; ok {
		height = v.AsPixels(monitor.Height)
	}

	if err := wa.bridge.MoveWindowPixel(address, x, y); err != nil {
		return err
	}
	if err := wa.bridge.ResizeWindow(address, width, height); err != nil {
		return err
	}

	if animationType == "fade" || animationType == "scale" {
		if v, ok := props["opacity"]; ok {
			if err := wa.bridge.SetWindowOpacity(address, v.AsFloat()); err != nil {
				return err
			}
		}
	} else {
		// Directional animations must stay fully opaque each frame.
		_ = wa.bridge.SetWindowOpacity(address, 1.0)
	}
	return nil
}
