package animation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// frameBudget is the per-frame deadline for the 60fps cadence.
const frameBudget = 16 * time.Millisecond

// Config declares a single animation.
type Config struct {
	// AnimationType: fromTop/fromBottom/fromLeft/fromRight and their
	// diagonals, fade, scale, spring, bounce, elastic, or "complex".
	AnimationType string `mapstructure:"animation_type" json:"animation_type"`

	// Duration in milliseconds.
	Duration int `mapstructure:"duration" json:"duration"`

	// Easing is the default easing name for every property.
	Easing string `mapstructure:"easing" json:"easing"`

	// Delay before the animation starts, in milliseconds.
	Delay int `mapstructure:"delay" json:"delay"`

	// Offset distance for directional animations ("200px", "10%", "150").
	Offset string `mapstructure:"offset" json:"offset"`

	// ScaleFrom is the starting scale for scale animations.
	ScaleFrom float64 `mapstructure:"scale_from" json:"scale_from"`

	// OpacityFrom is the starting opacity for fade animations.
	OpacityFrom float64 `mapstructure:"opacity_from" json:"opacity_from"`

	// Spring physics parameters; nil uses the catalog defaults.
	Spring *SpringConfig `mapstructure:"spring" json:"spring,omitempty"`

	// Properties, when set, animates each entry from From to To and the
	// caller's property maps are ignored.
	Properties []PropertyConfig `mapstructure:"properties" json:"properties,omitempty"`

	// Sequence chains follow-on animations after this one completes.
	Sequence []Config `mapstructure:"sequence" json:"sequence,omitempty"`

	// TargetFPS defaults to 60.
	TargetFPS int `mapstructure:"target_fps" json:"target_fps"`

	// HardwareAccelerated hints the compositor toward GPU paths.
	HardwareAccelerated bool `mapstructure:"hardware_accelerated" json:"hardware_accelerated"`
}

// SpringConfig tunes the damped-oscillator easing.
type SpringConfig struct {
	Stiffness       float64 `mapstructure:"stiffness" json:"stiffness"`
	Damping         float64 `mapstructure:"damping" json:"damping"`
	InitialVelocity float64 `mapstructure:"initial_velocity" json:"initial_velocity"`
	Mass            float64 `mapstructure:"mass" json:"mass"`
}

// PropertyConfig animates one named property with an optional override easing.
type PropertyConfig struct {
	Property string `mapstructure:"property" json:"property"`
	From     string `mapstructure:"from" json:"from"`
	To       string `mapstructure:"to" json:"to"`
	Easing   string `mapstructure:"easing" json:"easing,omitempty"`
}

// DefaultConfig returns the configuration defaults shared with the
// scratchpads plugin.
func DefaultConfig() Config {
	return Config{
		AnimationType:       "fromTop",
		Duration:            300,
		Easing:              "ease-out-cubic",
		Offset:              "200px",
		TargetFPS:           60,
		HardwareAccelerated: true,
	}
}

// PerformanceStats summarizes the frame-time window.
type PerformanceStats struct {
	AverageFrameTime time.Duration
	CurrentFPS       float64
	TargetFPS        float64
	ActiveAnimations int
}

type animationState struct {
	config     Config
	startTime  time.Time
	progress   float64
	running    bool
	paused     bool
	timeline   *Timeline
	initial    map[string]Value
	properties map[string]Value
	targets    map[string]Value
}

// Engine owns all in-flight animations and computes per-frame property
// snapshots. Each started animation drives its own frame loop; consumers
// poll CurrentProperties and observe completion as a missing id.
type Engine struct {
	logger *logrus.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	active map[string]*animationState

	screenWidth  int
	screenHeight int

	frameTimes []time.Duration
}

// NewEngine creates an animation engine. Screen dimensions default to
// 1920x1080 until SetScreenSize is called with real monitor geometry.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		logger:       logger,
		tracer:       otel.Tracer("animation.engine"),
		active:       make(map[string]*animationState),
		screenWidth:  1920,
		screenHeight: 1080,
		frameTimes:   make([]time.Duration, 0, 60),
	}
}

// SetScreenSize updates the extent used to resolve percentage offsets.
func (e *Engine) SetScreenSize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screenWidth = width
	e.screenHeight = height
}

// Start registers and launches an animation under the given id.
//
// With an explicit property list, initial and target come from the
// list's From/To pairs and both caller maps are ignored. Otherwise
// single-property mode applies: targetProps holds the FINAL values, the
// engine derives the start from the animation type, and initialProps is
// unused; scratchpad-style callers depend on this pass-final/derive-start
// convention.
func (e *Engine) Start(ctx context.Context, id string, config Config, initialProps, targetProps map[string]Value) error {
	ctx, span := e.tracer.Start(ctx, "animation.Engine.Start")
	defer span.End()

	_ = initialProps
	if config.Duration <= 0 {
		config.Duration = 300
	}
	if config.Easing == "" {
		config.Easing = "ease-out-cubic"
	}
	if config.Offset == "" {
		config.Offset = "200px"
	}
	if config.TargetFPS <= 0 {
		config.TargetFPS = 60
	}

	e.logger.WithFields(logrus.Fields{
		"animation_id": id,
		"type":         config.AnimationType,
		"duration_ms":  config.Duration,
	}).Info("Starting animation")

	var initial, targets map[string]Value
	if len(config.Properties) > 0 {
		initial = make(map[string]Value, len(config.Properties))
		targets = make(map[string]Value, len(config.Properties))
		for _, pc := range config.Properties {
			from, err := ParseValue(pc.From)
			if err != nil {
				return fmt.Errorf("property %q: %w", pc.Property, err)
			}
			to, err := ParseValue(pc.To)
			if err != nil {
				return fmt.Errorf("property %q: %w", pc.Property, err)
			}
			initial[pc.Property] = from
			targets[pc.Property] = to
		}
	} else {
		e.mu.Lock()
		width, height := e.screenWidth, e.screenHeight
		e.mu.Unlock()

		start, err := deriveStartProperties(config, targetProps, width, height)
		if err != nil {
			return err
		}
		initial = start
		targets = cloneValues(targetProps)
	}

	state := &animationState{
		config:     config,
		startTime:  time.Now().Add(time.Duration(config.Delay) * time.Millisecond),
		running:    true,
		timeline:   NewTimeline(time.Duration(config.Duration) * time.Millisecond),
		initial:    initial,
		properties: cloneValues(initial),
		targets:    targets,
	}

	e.mu.Lock()
	e.active[id] = state
	e.mu.Unlock()

	go e.runLoop(id)
	return nil
}

// Stop halts an animation and removes its record; unknown ids are no-ops.
func (e *Engine) Stop(ctx context.Context, id string) {
	ctx, span := e.tracer.Start(ctx, "animation.Engine.Stop")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.active[id]; ok {
		state.running = false
		delete(e.active, id)
		e.logger.WithField("animation_id", id).Info("Stopped animation")
	}
}

// Pause suspends or resumes an animation; unknown ids are no-ops.
func (e *Engine) Pause(id string, paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.active[id]; ok {
		state.paused = paused
	}
}

// CurrentProperties returns the current property snapshot, or ok=false
// once the animation has completed or was never known. Every call after
// completion keeps reporting ok=false.
func (e *Engine) CurrentProperties(id string) (map[string]Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.active[id]
	if !ok {
		return nil, false
	}

	elapsed := time.Since(state.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	if state.timeline.Duration() <= 0 || state.timeline.Complete(elapsed) {
		state.progress = 1.0
		state.running = false
		delete(e.active, id)
		if len(state.config.Sequence) > 0 {
			go e.startSequence(id, state.config.Sequence, cloneValues(state.targets))
		}
		return nil, false
	}

	raw := state.timeline.Progress(elapsed)
	e.interpolateLocked(state, raw)
	return cloneValues(state.properties), true
}

// PerformanceStats reports frame-time statistics over the last 60 frames.
func (e *Engine) PerformanceStats() PerformanceStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	avg := frameBudget
	if len(e.frameTimes) > 0 {
		var total time.Duration
		for _, ft := range e.frameTimes {
			total += ft
		}
		avg = total / time.Duration(len(e.frameTimes))
	}

	fps := 0.0
	if avg > 0 {
		fps = float64(time.Second) / float64(avg)
	}

	return PerformanceStats{
		AverageFrameTime: avg,
		CurrentFPS:       fps,
		TargetFPS:        60,
		ActiveAnimations: len(e.active),
	}
}

// ActiveCount returns how many animations are currently registered.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Engine) runLoop(id string) {
	e.mu.Lock()
	state, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	delay := time.Until(state.startTime)
	durationMS := state.config.Duration
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	totalFrames := int(math.Round(float64(durationMS) / 16.67))
	if totalFrames < 1 {
		totalFrames = 1
	}

	for frame := 0; frame < totalFrames; frame++ {
		frameStart := time.Now()

		progress := 1.0
		if totalFrames > 1 {
			progress = float64(frame) / float64(totalFrames-1)
		}

		e.mu.Lock()
		state, ok := e.active[id]
		if !ok || !state.running || state.paused {
			e.mu.Unlock()
			return
		}
		e.interpolateLocked(state, progress)
		e.mu.Unlock()

		frameTime := time.Since(frameStart)
		e.recordFrameTime(frameTime)

		if frameTime < frameBudget {
			time.Sleep(frameBudget - frameTime)
		}
	}

	e.complete(id)
}

// interpolateLocked eases each property independently from its initial
// toward its target value. Property-list entries use their own easing,
// falling back to the config default.
func (e *Engine) interpolateLocked(state *animationState, rawProgress float64) {
	state.progress = rawProgress

	if len(state.config.Properties) > 0 {
		for _, pc := range state.config.Properties {
			name := pc.Easing
			if name == "" {
				name = state.config.Easing
			}
			eased := Ease(e.resolveEasing(name, state.config.Spring), rawProgress)
			from, okFrom := state.initial[pc.Property]
			to, okTo := state.targets[pc.Property]
			if okFrom && okTo {
				state.properties[pc.Property] = from.Interpolate(to, eased)
			}
		}
		return
	}

	eased := Ease(e.resolveEasing(state.config.Easing, state.config.Spring), rawProgress)
	for name, target := range state.targets {
		if from, ok := state.initial[name]; ok {
			state.properties[name] = from.Interpolate(target, eased)
		}
	}
}

// resolveEasing honors explicit spring parameters when the config asks
// for spring easing.
func (e *Engine) resolveEasing(name string, spring *SpringConfig) Func {
	if name == "spring" && spring != nil && spring.Stiffness > 0 {
		damping := spring.Damping
		if damping <= 0 {
			damping = DefaultSpringDamping
		}
		return Spring(spring.Stiffness, damping)
	}
	return FromName(e.logger, name)
}

func (e *Engine) recordFrameTime(ft time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frameTimes = append(e.frameTimes, ft)
	if len(e.frameTimes) > 60 {
		e.frameTimes = e.frameTimes[1:]
	}
}

// complete removes the record and chains the next sequenced config, if any.
func (e *Engine) complete(id string) {
	e.mu.Lock()
	state, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	state.progress = 1.0
	state.running = false
	delete(e.active, id)
	sequence := state.config.Sequence
	finals := cloneValues(state.targets)
	e.mu.Unlock()

	e.logger.WithField("animation_id", id).Debug("Animation completed")

	if len(sequence) > 0 {
		e.startSequence(id, sequence, finals)
	}
}

// startSequence launches the next config in a sequence chain under the
// same id, using the finished animation's targets as the new finals.
func (e *Engine) startSequence(id string, sequence []Config, finals map[string]Value) {
	next := sequence[0]
	next.Sequence = sequence[1:]
	if err := e.Start(context.Background(), id, next, nil, finals); err != nil {
		e.logger.WithError(err).WithField("animation_id", id).Warn("Failed to start sequenced animation")
	}
}

// deriveStartProperties computes the off-screen start for single-property
// mode. The caller's map holds the final values.
func deriveStartProperties(config Config, finals map[string]Value, screenWidth, screenHeight int) (map[string]Value, error) {
	start := cloneValues(finals)

	shiftX := func(offset int, sign int) {
		if x, ok := start["x"]; ok {
			start["x"] = Pixels(x.AsPixels(screenWidth) + sign*offset)
		}
	}
	shiftY := func(offset int, sign int) {
		if y, ok := start["y"]; ok {
			start["y"] = Pixels(y.AsPixels(screenHeight) + sign*offset)
		}
	}

	horizontal := func() (int, error) { return ParseOffset(config.Offset, screenWidth) }
	vertical := func() (int, error) { return ParseOffset(config.Offset, screenHeight) }

	switch config.AnimationType {
	case "fromTop":
		off, err := vertical()
		if err != nil {
			return nil, err
		}
		shiftY(off, -1)
	case "fromBottom":
		off, err := vertical()
		if err != nil {
			return nil, err
		}
		shiftY(off, +1)
	case "fromLeft":
		off, err := horizontal()
		if err != nil {
			return nil, err
		}
		shiftX(off, -1)
	case "fromRight":
		off, err := horizontal()
		if err != nil {
			return nil, err
		}
		shiftX(off, +1)
	case "fromTopLeft", "fromTopRight", "fromBottomLeft", "fromBottomRight":
		offX, err := horizontal()
		if err != nil {
			return nil, err
		}
		offY, err := vertical()
		if err != nil {
			return nil, err
		}
		if config.AnimationType == "fromTopLeft" || config.AnimationType == "fromBottomLeft" {
			shiftX(offX, -1)
		} else {
			shiftX(offX, +1)
		}
		if config.AnimationType == "fromTopLeft" || config.AnimationType == "fromTopRight" {
			shiftY(offY, -1)
		} else {
			shiftY(offY, +1)
		}
	case "fade":
		start["opacity"] = Scalar(config.OpacityFrom)
	case "scale":
		start["scale"] = Scalar(config.ScaleFrom)
	case "spring", "bounce", "elastic":
		// Values retained; spring parameters flow through the easing.
	}

	return start, nil
}

func cloneValues(in map[string]Value) map[string]Value {
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
