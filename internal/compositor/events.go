package compositor

import "strings"

// DefaultEventFilters keeps parsing focused on the events plugins react
// to; everything else short-circuits before the per-event split.
var DefaultEventFilters = []string{
	"workspace",
	"focusedmon",
	"openwindow",
	"closewindow",
	"movewindow",
	"resizewindow",
	"changefloatingmode",
	"urgent",
	"minimize",
	"windowtitle",
	"activewindow",
}

// ParseEvent parses a raw `EVENT>>DATA` line into a structured event.
// The data side is split with bounded arity per event so that window
// titles containing commas are never truncated. Returns ok=false for
// malformed or filtered-out lines.
func ParseEvent(line string, filters []string) (Event, bool) {
	name, data, found := strings.Cut(line, ">>")
	if !found {
		return Event{}, false
	}
	name = strings.TrimSpace(name)
	data = strings.TrimSpace(data)
	if name == "" {
		return Event{}, false
	}

	if len(filters) > 0 {
		matched := false
		for _, filter := range filters {
			if strings.HasPrefix(name, filter) {
				matched = true
				break
			}
		}
		if !matched {
			return Event{}, false
		}
	}

	switch name {
	case "workspace":
		return Event{Kind: EventWorkspaceChanged, Workspace: data, Raw: line}, true

	case "focusedmon":
		// monitorname,workspacename
		parts := strings.SplitN(data, ",", 2)
		return Event{Kind: EventMonitorChanged, Monitor: parts[0], Raw: line}, true

	case "openwindow":
		// address,workspacename,class,title (title may contain commas)
		parts := strings.SplitN(data, ",", 4)
		return Event{Kind: EventWindowOpened, Address: parts[0], Raw: line}, true

	case "closewindow":
		return Event{Kind: EventWindowClosed, Address: data, Raw: line}, true

	case "movewindow":
		// address,workspace
		parts := strings.SplitN(data, ",", 2)
		return Event{Kind: EventWindowMoved, Address: parts[0], Raw: line}, true

	case "activewindow":
		// class,title (title may contain commas)
		parts := strings.SplitN(data, ",", 2)
		return Event{Kind: EventWindowFocusChanged, Class: parts[0], Raw: line}, true

	default:
		return Event{Kind: EventOther, Raw: line}, true
	}
}
