package compositor

// Monitor is a point-in-time snapshot of a compositor output.
type Monitor struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate float64 `json:"refreshRate"`
	Scale       float64 `json:"scale"`
	Transform   int     `json:"transform"`
	Focused     bool    `json:"focused"`
	Disabled    bool    `json:"disabled"`

	ActiveWorkspace WorkspaceRef `json:"activeWorkspace"`
}

// WorkspaceRef is the compact workspace reference embedded in other
// snapshots.
type WorkspaceRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Workspace is a point-in-time snapshot of a compositor workspace.
type Workspace struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Monitor    string `json:"monitor"`
	Windows    int    `json:"windows"`
	LastWindow string `json:"lastwindow"`
}

// Window is a point-in-time snapshot of a client window.
type Window struct {
	Address   string       `json:"address"`
	At        [2]int       `json:"at"`
	Size      [2]int       `json:"size"`
	Workspace WorkspaceRef `json:"workspace"`
	Class     string       `json:"class"`
	Title     string       `json:"title"`
	Floating  bool         `json:"floating"`
	Monitor   int          `json:"monitor"`
	Pinned    bool         `json:"pinned"`
	PID       int          `json:"pid"`
}

// EventKind discriminates parsed compositor events.
type EventKind string

const (
	EventWorkspaceChanged   EventKind = "workspace_changed"
	EventMonitorChanged     EventKind = "monitor_changed"
	EventWindowOpened       EventKind = "window_opened"
	EventWindowClosed       EventKind = "window_closed"
	EventWindowMoved        EventKind = "window_moved"
	EventWindowFocusChanged EventKind = "window_focus_changed"
	EventOther              EventKind = "other"

	// EventChannelOverflow reports subscriber-channel drops; it is an
	// error signal, never a silent loss.
	EventChannelOverflow EventKind = "channel_overflow"
)

// Event is a structured compositor event. Only the fields relevant to
// the kind are populated; Raw always carries the original line.
type Event struct {
	Kind      EventKind
	Workspace string
	Monitor   string
	Address   string
	Class     string
	Raw       string
}

// Bridge is the window-manipulation and query surface the animator and
// plugins program against.
type Bridge interface {
	Monitors() ([]Monitor, error)
	Workspaces() ([]Workspace, error)
	Clients() ([]Window, error)
	FocusedMonitor() (*Monitor, error)

	MoveWindowPixel(address string, x, y int) error
	ResizeWindow(address string, width, height int) error
	SetWindowOpacity(address string, alpha float64) error
	CloseWindow(address string) error
	Spawn(execSpec string) error
	DispatchWorkspace(target string) error
	MoveWindowToWorkspace(workspace string, address string) error
	MoveWorkspaceToMonitor(workspace, monitor string) error
	ToggleSpecialWorkspace(name string) error
	SetKeyword(key, value string) error
	PinWindow(address string) error
	UnpinWindow(address string) error
}
