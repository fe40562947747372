package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// InstanceSignatureEnv is set by the compositor for every child of the
// session; its absence means no compositor is running.
const InstanceSignatureEnv = "HYPRLAND_INSTANCE_SIGNATURE"

const (
	commandSocketName = ".socket.sock"
	eventSocketName   = ".socket2.sock"

	// eventChannelCapacity bounds the subscriber channel; overflow is
	// reported, never silently dropped.
	eventChannelCapacity = 1000

	dialTimeout = 3 * time.Second
)

// ReconnectConfig tunes the event-stream backoff.
type ReconnectConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig matches the daemon's tolerance for compositor
// restarts.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:        10,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ConnectionState tracks event-stream health.
type ConnectionState struct {
	Connected   bool
	Failures    int
	LastAttempt time.Time
	InstanceSig string
}

// Client speaks the compositor's line-oriented IPC: a request/response
// command socket and a streaming event socket.
type Client struct {
	logger    *logrus.Logger
	socketDir string
	reconnect ReconnectConfig

	stateMu sync.RWMutex
	state   ConnectionState

	filterMu sync.RWMutex
	filters  []string

	subscribeMu sync.Mutex
	stopCh      chan struct{}
}

// Connect verifies the compositor advertises an instance and resolves
// the IPC socket directory. It fails when the environment carries no
// instance signature.
func Connect(logger *logrus.Logger) (*Client, error) {
	sig := os.Getenv(InstanceSignatureEnv)
	if sig == "" {
		return nil, fmt.Errorf("%s not set: compositor not detected", InstanceSignatureEnv)
	}

	dir := socketDir(sig)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("compositor socket directory %s: %w", dir, err)
	}

	client := &Client{
		logger:    logger,
		socketDir: dir,
		reconnect: DefaultReconnectConfig(),
		filters:   append([]string(nil), DefaultEventFilters...),
		stopCh:    make(chan struct{}),
	}
	client.state.InstanceSig = sig
	client.state.Connected = true

	logger.WithField("socket_dir", dir).Info("Connected to compositor IPC")
	return client, nil
}

func socketDir(sig string) string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		dir := filepath.Join(runtime, "hypr", sig)
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	return filepath.Join(os.TempDir(), "hypr", sig)
}

// State returns a copy of the connection-state record.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// SetEventFilters replaces the event-name filter list.
func (c *Client) SetEventFilters(filters []string) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filters = append([]string(nil), filters...)
}

// Close stops the event subscription.
func (c *Client) Close() {
	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}

// request performs one command round-trip on the command socket.
func (c *Client) request(command string) ([]byte, error) {
	conn, err := net.DialTimeout("unix", filepath.Join(c.socketDir, commandSocketName), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("compositor command socket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write([]byte(command)); err != nil {
		return nil, fmt.Errorf("write %q: %w", command, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply for %q: %w", command, err)
	}
	return reply, nil
}

func (c *Client) dispatch(args string) error {
	reply, err := c.request("dispatch " + args)
	if err != nil {
		return err
	}
	if s := string(reply); s != "ok" && s != "" {
		return fmt.Errorf("dispatch %q: %s", args, s)
	}
	return nil
}

// Monitors queries current monitor snapshots.
func (c *Client) Monitors() ([]Monitor, error) {
	reply, err := c.request("j/monitors")
	if err != nil {
		return nil, err
	}
	var monitors []Monitor
	if err := json.Unmarshal(reply, &monitors); err != nil {
		return nil, fmt.Errorf("decode monitors: %w", err)
	}
	return monitors, nil
}

// Workspaces queries current workspace snapshots.
func (c *Client) Workspaces() ([]Workspace, error) {
	reply, err := c.request("j/workspaces")
	if err != nil {
		return nil, err
	}
	var workspaces []Workspace
	if err := json.Unmarshal(reply, &workspaces); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}
	return workspaces, nil
}

// Clients queries current window snapshots.
func (c *Client) Clients() ([]Window, error) {
	reply, err := c.request("j/clients")
	if err != nil {
		return nil, err
	}
	var windows []Window
	if err := json.Unmarshal(reply, &windows); err != nil {
		return nil, fmt.Errorf("decode clients: %w", err)
	}
	return windows, nil
}

// FocusedMonitor returns the monitor that currently has focus.
func (c *Client) FocusedMonitor() (*Monitor, error) {
	monitors, err := c.Monitors()
	if err != nil {
		return nil, err
	}
	for i := range monitors {
		if monitors[i].Focused {
			return &monitors[i], nil
		}
	}
	return nil, fmt.Errorf("no focused monitor found")
}

// MoveWindowPixel moves a window to absolute pixel coordinates.
func (c *Client) MoveWindowPixel(address string, x, y int) error {
	return c.dispatch(fmt.Sprintf("movewindowpixel exact %d %d,address:%s", x, y, address))
}

// ResizeWindow resizes a window to exact pixel dimensions.
func (c *Client) ResizeWindow(address string, width, height int) error {
	return c.dispatch(fmt.Sprintf("resizewindowpixel exact %d %d,address:%s", width, height, address))
}

// SetWindowOpacity sets the window's alpha override.
func (c *Client) SetWindowOpacity(address string, alpha float64) error {
	reply, err := c.request(fmt.Sprintf("setprop address:%s alpha %.3f", address, alpha))
	if err != nil {
		return err
	}
	if s := string(reply); s != "ok" && s != "" {
		return fmt.Errorf("setprop alpha: %s", s)
	}
	return nil
}

// CloseWindow asks the compositor to close a window.
func (c *Client) CloseWindow(address string) error {
	return c.dispatch("closewindow address:" + address)
}

// Spawn launches an application, optionally carrying window rules in
// the exec spec ("[float; move X Y; size W H] app").
func (c *Client) Spawn(execSpec string) error {
	return c.dispatch("exec " + execSpec)
}

// DispatchWorkspace switches to a workspace by id, name, or special:NAME.
func (c *Client) DispatchWorkspace(target string) error {
	return c.dispatch("workspace " + target)
}

// MoveWindowToWorkspace moves a window to the given workspace.
func (c *Client) MoveWindowToWorkspace(workspace, address string) error {
	return c.dispatch(fmt.Sprintf("movetoworkspacesilent %s,address:%s", workspace, address))
}

// MoveWorkspaceToMonitor re-homes a workspace onto a monitor.
func (c *Client) MoveWorkspaceToMonitor(workspace, monitor string) error {
	return c.dispatch(fmt.Sprintf("moveworkspacetomonitor %s %s", workspace, monitor))
}

// ToggleSpecialWorkspace toggles the named special workspace; empty name
// toggles the default one.
func (c *Client) ToggleSpecialWorkspace(name string) error {
	if name == "" {
		return c.dispatch("togglespecialworkspace")
	}
	return c.dispatch("togglespecialworkspace " + name)
}

// SetKeyword sets a runtime config keyword.
func (c *Client) SetKeyword(key, value string) error {
	reply, err := c.request(fmt.Sprintf("keyword %s %s", key, value))
	if err != nil {
		return err
	}
	if s := string(reply); s != "ok" && s != "" {
		return fmt.Errorf("keyword %s: %s", key, s)
	}
	return nil
}

// PinWindow pins a window so workspace switches cannot carry it away
// mid-animation.
func (c *Client) PinWindow(address string) error {
	return c.SetKeyword("windowrulev2", fmt.Sprintf("pin,address:%s", address))
}

// UnpinWindow removes the pin rule added by PinWindow.
func (c *Client) UnpinWindow(address string) error {
	return c.SetKeyword("windowrulev2", fmt.Sprintf("unset pin,address:%s", address))
}

// SubscribeEvents opens the event stream and returns a bounded channel
// of parsed events, delivered in arrival order. A full channel surfaces
// as an EventChannelOverflow event once space frees; the connection
// reconnects with exponential backoff on loss.
func (c *Client) SubscribeEvents() <-chan Event {
	ch := make(chan Event, eventChannelCapacity)
	go c.eventLoop(ch)
	return ch
}

func (c *Client) eventLoop(ch chan<- Event) {
	defer close(ch)

	delay := c.reconnect.InitialDelay
	failures := 0
	var dropped int

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		conn, err := net.DialTimeout("unix", filepath.Join(c.socketDir, eventSocketName), dialTimeout)
		if err != nil {
			failures++
			c.setConnected(false, failures)
			if failures > c.reconnect.MaxRetries {
				c.logger.WithError(err).Error("Compositor event stream unreachable, giving up")
				return
			}
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": failures,
				"delay":   delay,
			}).Warn("Compositor event stream lost, reconnecting")
			select {
			case <-time.After(delay):
			case <-c.stopCh:
				return
			}
			delay = time.Duration(float64(delay) * c.reconnect.BackoffMultiplier)
			if delay > c.reconnect.MaxDelay {
				delay = c.reconnect.MaxDelay
			}
			continue
		}

		failures = 0
		delay = c.reconnect.InitialDelay
		c.setConnected(true, 0)
		c.logger.Debug("Compositor event stream connected")

		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 64*1024), 64*1024)
		for scanner.Scan() {
			select {
			case <-c.stopCh:
				conn.Close()
				return
			default:
			}

			c.filterMu.RLock()
			filters := c.filters
			c.filterMu.RUnlock()

			event, ok := ParseEvent(scanner.Text(), filters)
			if !ok {
				continue
			}

			if dropped > 0 {
				overflow := Event{
					Kind: EventChannelOverflow,
					Raw:  fmt.Sprintf("event channel overflow: %d events dropped", dropped),
				}
				select {
				case ch <- overflow:
					dropped = 0
				default:
				}
			}

			select {
			case ch <- event:
			default:
				dropped++
				c.logger.WithField("dropped", dropped).Error("Event channel full, dropping event")
			}
		}

		conn.Close()
		c.setConnected(false, failures)
		if err := scanner.Err(); err != nil {
			c.logger.WithError(err).Warn("Compositor event stream read error")
		}
	}
}

func (c *Client) setConnected(connected bool, failures int) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state.Connected = connected
	c.state.Failures = failures
	c.state.LastAttempt = time.Now()
}
