package ipc

import (
	"os"
	"path/filepath"
)

// socketFileName is the fixed control-socket name under the runtime dir.
const socketFileName = "hyprshell.sock"

// MaxPayloadSize caps request and response frames at 1 MiB; a declared
// length above this is rejected before the body is read.
const MaxPayloadSize = 1024 * 1024

// Message types for client requests.
const (
	MessageToggle          = "toggle"
	MessageExpose          = "expose"
	MessageExposeAction    = "expose_action"
	MessageWorkspaceAction = "workspace_action"
	MessageMagnifyAction   = "magnify_action"
	MessageReload          = "reload"
	MessageStatus          = "status"
	MessageList            = "list"
)

// Response types for daemon replies.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
	ResponseStatus  = "status"
	ResponseList    = "list"
)

// Message is a client request. Type discriminates the variant; only the
// fields that variant uses are set.
type Message struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Action string `json:"action,omitempty"`
	Arg    string `json:"arg,omitempty"`
}

// Response is a daemon reply. Type discriminates the variant.
type Response struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`

	Version       string `json:"version,omitempty"`
	UptimeSeconds uint64 `json:"uptime_seconds,omitempty"`
	PluginsLoaded int    `json:"plugins_loaded,omitempty"`

	Items []string `json:"items,omitempty"`
}

// SocketPath derives the control-socket location from XDG_RUNTIME_DIR,
// falling back to the temp directory.
func SocketPath() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, socketFileName)
	}
	return filepath.Join(os.TempDir(), socketFileName)
}
