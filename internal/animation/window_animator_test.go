package animation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

// fakeBridge records dispatches and serves canned snapshots.
type fakeBridge struct {
	mu sync.Mutex

	windows  []compositor.Window
	monitors []compositor.Monitor

	spawned   []string
	moves     [][3]interface{}
	opacities []float64
	pinned    []string
	unpinned  []string
	closed    []string

	// spawnCreatesWindow makes the spawned window appear in Clients.
	spawnCreatesWindow bool
}

func (f *fakeBridge) Monitors() ([]compositor.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]compositor.Monitor(nil), f.monitors...), nil
}

func (f *fakeBridge) Workspaces() ([]compositor.Workspace, error) { return nil, nil }

func (f *fakeBridge) Clients() ([]compositor.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]compositor.Window(nil), f.windows...), nil
}

func (f *fakeBridge) FocusedMonitor() (*compositor.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.monitors {
		if f.monitors[i].Focused {
			return &f.monitors[i], nil
		}
	}
	return &f.monitors[0], nil
}

func (f *fakeBridge) MoveWindowPixel(address string, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, [3]interface{}{address, x, y})
	return nil
}

func (f *fakeBridge) ResizeWindow(string, int, int) error { return nil }

func (f *fakeBridge) SetWindowOpacity(_ string, alpha float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opacities = append(f.opacities, alpha)
	return nil
}

func (f *fakeBridge) CloseWindow(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, address)
	return nil
}

func (f *fakeBridge) Spawn(execSpec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, execSpec)
	if f.spawnCreatesWindow {
		f.windows = append(f.windows, compositor.Window{
			Address: "0xfeed",
			Class:   "toggle_foot",
			At:      [2]int{0, 0},
			Size:    [2]int{800, 600},
		})
	}
	return nil
}

func (f *fakeBridge) DispatchWorkspace(string) error              { return nil }
func (f *fakeBridge) MoveWindowToWorkspace(string, string) error  { return nil }
func (f *fakeBridge) MoveWorkspaceToMonitor(string, string) error { return nil }
func (f *fakeBridge) ToggleSpecialWorkspace(string) error         { return nil }
func (f *fakeBridge) SetKeyword(string, string) error             { return nil }

func (f *fakeBridge) PinWindow(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, address)
	return nil
}

func (f *fakeBridge) UnpinWindow(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpinned = append(f.unpinned, address)
	return nil
}

func testAnimator(bridge *fakeBridge) *WindowAnimator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	engine := NewEngine(logger)
	animator := NewWindowAnimator(logger, engine, bridge)
	animator.SetActiveMonitor(compositor.Monitor{
		Name: "DP-1", Width: 1920, Height: 1080, RefreshRate: 120, Focused: true,
	})
	return animator
}

func TestShowWindowSpawnsOffscreenAndPins(t *testing.T) {
	bridge := &fakeBridge{
		spawnCreatesWindow: true,
		monitors:           []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	cfg := Config{AnimationType: "fromTop", Offset: "100px", Duration: 60, Easing: "linear"}
	window, err := animator.ShowWindow(context.Background(), "foot", [2]int{560, 240}, [2]int{800, 600}, cfg)
	require.NoError(t, err)
	require.NotNil(t, window)
	assert.Equal(t, "0xfeed", window.Address)

	bridge.mu.Lock()
	require.Len(t, bridge.spawned, 1)
	spec := bridge.spawned[0]
	pinned := append([]string(nil), bridge.pinned...)
	bridge.mu.Unlock()

	// Spawn rule places the window fully above the screen.
	assert.True(t, strings.HasPrefix(spec, "[float; move 560 -700; size 800 600]"), spec)
	assert.Contains(t, spec, "foot --app-id toggle_foot")
	assert.Contains(t, pinned, "0xfeed")
	assert.True(t, animator.IsAnimating("0xfeed"))

	// The frame-apply task unpins once the engine forgets the id.
	require.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.unpinned) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, animator.IsAnimating("0xfeed"))
}

func TestShowWindowTimesOutWithoutWindow(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	done := make(chan error, 1)
	go func() {
		_, err := animator.ShowWindow(context.Background(), "foot", [2]int{0, 0}, [2]int{100, 100},
			Config{AnimationType: "fromTop", Offset: "10px", Duration: 50})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNoWindow)
	case <-time.After(7 * time.Second):
		t.Fatal("ShowWindow did not time out")
	}
}

func TestOpacityDisciplineForDirectionalAnimations(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	cfg := Config{AnimationType: "fromTop", Offset: "50px", Duration: 80, Easing: "linear"}
	require.NoError(t, animator.HideWindow(context.Background(), "0xabc", [2]int{100, 100}, [2]int{400, 300}, cfg))

	require.Eventually(t, func() bool {
		return !animator.IsAnimating("0xabc")
	}, 2*time.Second, 10*time.Millisecond)

	bridge.mu.Lock()
	opacities := append([]float64(nil), bridge.opacities...)
	bridge.mu.Unlock()

	require.NotEmpty(t, opacities, "frames should re-assert opacity")
	for _, alpha := range opacities {
		assert.Equal(t, 1.0, alpha, "directional frames must stay fully opaque")
	}
}

func TestFadeAnimationDrivesOpacity(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	cfg := Config{AnimationType: "fade", Duration: 80, Easing: "linear", OpacityFrom: 0}
	require.NoError(t, animator.HideWindow(context.Background(), "0xdef", [2]int{100, 100}, [2]int{400, 300}, cfg))

	require.Eventually(t, func() bool {
		return !animator.IsAnimating("0xdef")
	}, 2*time.Second, 10*time.Millisecond)

	bridge.mu.Lock()
	opacities := append([]float64(nil), bridge.opacities...)
	bridge.mu.Unlock()

	require.NotEmpty(t, opacities)
	sawTranslucent := false
	for _, alpha := range opacities {
		if alpha < 1.0 {
			sawTranslucent = true
		}
	}
	assert.True(t, sawTranslucent, "fade should drive opacity below 1.0")
}

func TestHideWindowMovesTowardExit(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	cfg := Config{AnimationType: "fromTop", Offset: "100px", Duration: 80, Easing: "linear"}
	require.NoError(t, animator.HideWindow(context.Background(), "0x123", [2]int{500, 400}, [2]int{640, 480}, cfg))

	require.Eventually(t, func() bool {
		return !animator.IsAnimating("0x123")
	}, 2*time.Second, 10*time.Millisecond)

	bridge.mu.Lock()
	moves := append([][3]interface{}(nil), bridge.moves...)
	bridge.mu.Unlock()

	require.NotEmpty(t, moves)
	// The exit for fromTop is above the monitor: y = -height - offset.
	firstY := moves[0][2].(int)
	lastY := moves[len(moves)-1][2].(int)
	assert.Greater(t, firstY, lastY, "hide should move the window upward")
}

func TestStopAnimation(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	cfg := Config{AnimationType: "fromTop", Offset: "100px", Duration: 5000}
	require.NoError(t, animator.HideWindow(context.Background(), "0x999", [2]int{0, 0}, [2]int{100, 100}, cfg))
	require.True(t, animator.IsAnimating("0x999"))

	animator.StopAnimation("0x999")
	assert.False(t, animator.IsAnimating("0x999"))
}

func TestAnimationDirection(t *testing.T) {
	bridge := &fakeBridge{
		spawnCreatesWindow: true,
		monitors:           []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)

	_, ok := animator.AnimationDirection("0x404")
	assert.False(t, ok, "unknown addresses report no direction")

	showCfg := Config{AnimationType: "fromTop", Offset: "100px", Duration: 5000}
	window, err := animator.ShowWindow(context.Background(), "foot", [2]int{0, 0}, [2]int{800, 600}, showCfg)
	require.NoError(t, err)

	showing, ok := animator.AnimationDirection(window.Address)
	require.True(t, ok)
	assert.True(t, showing, "show animations report the showing direction")
	animator.StopAnimation(window.Address)

	hideCfg := Config{AnimationType: "fromTop", Offset: "100px", Duration: 5000}
	require.NoError(t, animator.HideWindow(context.Background(), "0xhide", [2]int{0, 0}, [2]int{100, 100}, hideCfg))

	showing, ok = animator.AnimationDirection("0xhide")
	require.True(t, ok)
	assert.False(t, showing, "hide animations report the hiding direction")
	animator.StopAnimation("0xhide")
}

func TestCloseWindowPassthrough(t *testing.T) {
	bridge := &fakeBridge{
		monitors: []compositor.Monitor{{Name: "DP-1", Width: 1920, Height: 1080, Focused: true}},
	}
	animator := testAnimator(bridge)
	require.NoError(t, animator.CloseWindow("0x777"))

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	assert.Equal(t, []string{"0x777"}, bridge.closed)
}
