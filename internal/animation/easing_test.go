package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEasingEndpoints(t *testing.T) {
	for _, name := range SupportedEasings() {
		if name == "spring" {
			// The damped-oscillator response approaches 1 asymptotically.
			continue
		}
		fn := FromName(nil, name)
		assert.InDelta(t, 0.0, Ease(fn, 0), 1e-6, "ease(%s, 0)", name)
		assert.InDelta(t, 1.0, Ease(fn, 1), 1e-6, "ease(%s, 1)", name)
	}
}

func TestEasingClamping(t *testing.T) {
	fn := FromName(nil, "ease-in-out")
	assert.Equal(t, Ease(fn, 0), Ease(fn, -0.5))
	assert.Equal(t, Ease(fn, 1), Ease(fn, 1.7))
}

func TestOvershootFamilies(t *testing.T) {
	overshooting := []string{"ease-out-back", "ease-out-elastic", "ease-in-back", "ease-in-elastic"}
	for _, name := range overshooting {
		fn := FromName(nil, name)
		min, max := 0.0, 1.0
		for i := 0; i <= 1000; i++ {
			v := Ease(fn, float64(i)/1000)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		assert.True(t, max > 1.0 || min < 0.0, "%s should overshoot [0,1]", name)
	}
}

func TestEaseOutBackSanity(t *testing.T) {
	fn := FromName(nil, "ease-out-back")
	assert.InDelta(t, 1.0, Ease(fn, 1.0), 1e-9)
	assert.Greater(t, Ease(fn, 0.7), 1.0)
}

func TestFromNameSpellings(t *testing.T) {
	tests := []struct {
		name string
		t    float64
	}{
		{"easeInOut", 0.3},
		{"ease-in-out", 0.3},
		{"EASE-IN-OUT", 0.3},
	}
	want := Ease(FromName(nil, "ease-in-out"), 0.3)
	for _, tc := range tests {
		assert.InDelta(t, want, Ease(FromName(nil, tc.name), tc.t), 1e-9, tc.name)
	}
}

func TestUnknownEasingFallsBackToLinear(t *testing.T) {
	fn := FromName(nil, "definitely-not-an-easing")
	for _, v := range []float64{0, 0.25, 0.5, 0.99, 1} {
		assert.Equal(t, v, Ease(fn, v))
	}
	assert.False(t, IsSupported("definitely-not-an-easing"))
}

func TestCubicBezierParsing(t *testing.T) {
	require.True(t, IsSupported("cubic-bezier(0.25, 0.1, 0.25, 1.0)"))
	fn := FromName(nil, "cubic-bezier(0.25, 0.1, 0.25, 1.0)")
	assert.InDelta(t, 0.0, Ease(fn, 0), 1e-9)
	assert.InDelta(t, 1.0, Ease(fn, 1), 1e-9)

	assert.False(t, IsSupported("cubic-bezier(0.25, 0.1)"))
	assert.False(t, IsSupported("cubic-bezier(a, b, c, d)"))
}

func TestSpringRegimes(t *testing.T) {
	tests := []struct {
		name      string
		stiffness float64
		damping   float64
	}{
		{"underdamped", 300, 10},
		{"critically damped", 100, 20},
		{"overdamped", 100, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn := Spring(tc.stiffness, tc.damping)
			assert.InDelta(t, 0.0, Ease(fn, 0), 1e-6)
			// All regimes settle near 1 by the end of the normalized window.
			assert.InDelta(t, 1.0, Ease(fn, 1), 0.25)
		})
	}
}

func TestBounceKnots(t *testing.T) {
	fn := FromName(nil, "bounce")
	result := Ease(fn, 0.8)
	assert.Greater(t, result, 0.8)
	assert.LessOrEqual(t, result, 1.0)
}
