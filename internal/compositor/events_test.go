package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventCommaSafety(t *testing.T) {
	// Window titles may contain commas; bounded splits must keep them whole.
	event, ok := ParseEvent("openwindow>>0x12345,1,firefox,GitHub - user/repo: Issues, Pull Requests", nil)
	require.True(t, ok)
	assert.Equal(t, EventWindowOpened, event.Kind)
	assert.Equal(t, "0x12345", event.Address)
	assert.Contains(t, event.Raw, "Issues, Pull Requests")
}

func TestParseEventWindowTitleWithCommas(t *testing.T) {
	event, ok := ParseEvent("windowtitle>>0xADDR,hello, world, again", nil)
	require.True(t, ok)
	assert.Equal(t, EventOther, event.Kind)
	assert.Equal(t, "windowtitle>>0xADDR,hello, world, again", event.Raw)
}

func TestParseEventAllKinds(t *testing.T) {
	tests := []struct {
		line string
		kind EventKind
		want func(t *testing.T, e Event)
	}{
		{"workspace>>5", EventWorkspaceChanged, func(t *testing.T, e Event) {
			assert.Equal(t, "5", e.Workspace)
		}},
		{"focusedmon>>DP-1,workspace1", EventMonitorChanged, func(t *testing.T, e Event) {
			assert.Equal(t, "DP-1", e.Monitor)
		}},
		{"closewindow>>0x12345", EventWindowClosed, func(t *testing.T, e Event) {
			assert.Equal(t, "0x12345", e.Address)
		}},
		{"movewindow>>0x12345,workspace2", EventWindowMoved, func(t *testing.T, e Event) {
			assert.Equal(t, "0x12345", e.Address)
		}},
		{"activewindow>>firefox,GitHub - home", EventWindowFocusChanged, func(t *testing.T, e Event) {
			assert.Equal(t, "firefox", e.Class)
		}},
	}

	for _, tc := range tests {
		event, ok := ParseEvent(tc.line, nil)
		require.True(t, ok, tc.line)
		assert.Equal(t, tc.kind, event.Kind, tc.line)
		tc.want(t, event)
	}
}

func TestParseEventFiltering(t *testing.T) {
	filters := []string{"openwindow"}

	_, ok := ParseEvent("openwindow>>0x1,ws,app,title", filters)
	assert.True(t, ok)

	_, ok = ParseEvent("somethingelse>>data", filters)
	assert.False(t, ok)
}

func TestParseEventMalformed(t *testing.T) {
	for _, line := range []string{"no separator here", "", ">>"} {
		_, ok := ParseEvent(line, nil)
		assert.False(t, ok, "%q should not parse", line)
	}
}

func TestParseEventUnknownPassesThroughAsOther(t *testing.T) {
	event, ok := ParseEvent("urgent>>0x555", nil)
	require.True(t, ok)
	assert.Equal(t, EventOther, event.Kind)
	assert.Equal(t, "urgent>>0x555", event.Raw)
}
