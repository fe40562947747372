package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyprshell/hyprshell/internal/plugins"
)

// ioTimeout is the hard deadline applied to every read and write on a
// control connection.
const ioTimeout = 10 * time.Second

// Reloader triggers a manual configuration reload and returns a
// human-readable summary.
type Reloader interface {
	ReloadNow() (string, error)
}

// Server is the length-prefixed control-socket server linking the CLI to
// the plugin host.
type Server struct {
	logger   *logrus.Logger
	tracer   trace.Tracer
	host     *plugins.Host
	reloader Reloader
	version  string

	startTime time.Time
	listener  net.Listener

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
}

// NewServer builds a control server over the plugin host. The reloader
// may be nil until hot reload is wired in.
func NewServer(logger *logrus.Logger, host *plugins.Host, reloader Reloader, version string, registry prometheus.Registerer) *Server {
	s := &Server{
		logger:    logger,
		tracer:    otel.Tracer("ipc.server"),
		host:      host,
		reloader:  reloader,
		version:   version,
		startTime: time.Now(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyprshell_ipc_requests_total",
			Help: "Control-socket requests handled",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyprshell_ipc_errors_total",
			Help: "Control-socket requests that failed",
		}),
	}
	if registry != nil {
		registry.MustRegister(s.requestsTotal, s.errorsTotal)
	}
	return s
}

// SetReloader wires the hot-reload manager after construction.
func (s *Server) SetReloader(reloader Reloader) { s.reloader = reloader }

// Start binds the socket and serves connections until Stop. Bind
// failures are fatal to the daemon.
func (s *Server) Start() error {
	path := SocketPath()
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("bind control socket %s: %w", path, err)
	}
	s.listener = listener
	s.logger.WithField("socket", path).Info("Control server listening")

	go s.acceptLoop()
	return nil
}

// Stop closes the listener.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			s.logger.WithError(err).Error("Failed to accept control connection")
			continue
		}
		go func() {
			if err := s.handleConn(conn); err != nil {
				s.logger.WithError(err).Warn("Control connection error")
			}
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) error {
	ctx, span := s.tracer.Start(context.Background(), "ipc.Server.handleConn")
	defer span.End()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return fmt.Errorf("read request length: %w", err)
	}
	msgLen := binary.LittleEndian.Uint32(lenBuf[:])

	// Reject oversize frames before touching the body.
	if msgLen > MaxPayloadSize {
		s.errorsTotal.Inc()
		return fmt.Errorf("request too large: %d bytes", msgLen)
	}

	payload := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return fmt.Errorf("read request payload: %w", err)
	}

	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		s.errorsTotal.Inc()
		return fmt.Errorf("decode request: %w", err)
	}

	s.requestsTotal.Inc()
	response := s.process(ctx, message)
	if response.Type == ResponseError {
		s.errorsTotal.Inc()
	}

	out, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(out)))
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write response length: %w", err)
	}
	if _, err := conn.Write(out); err != nil {
		return fmt.Errorf("write response payload: %w", err)
	}
	return nil
}

func (s *Server) process(ctx context.Context, message Message) Response {
	ctx, span := s.tracer.Start(ctx, "ipc.Server.process")
	defer span.End()

	s.logger.WithField("type", message.Type).Debug("Processing control request")

	switch message.Type {
	case MessageToggle:
		return s.command(ctx, "scratchpads", "toggle", []string{message.Name})

	case MessageExpose:
		return s.command(ctx, "expose", "toggle", nil)

	case MessageExposeAction:
		return s.command(ctx, "expose", message.Action, nil)

	case MessageWorkspaceAction:
		var args []string
		if message.Arg != "" {
			args = []string{message.Arg}
		}
		return s.command(ctx, "workspaces_follow_focus", message.Action, args)

	case MessageMagnifyAction:
		var args []string
		if message.Arg != "" {
			args = []string{message.Arg}
		}
		return s.command(ctx, "magnify", message.Action, args)

	case MessageReload:
		if s.reloader == nil {
			return Response{Type: ResponseError, Message: "hot reload is not enabled"}
		}
		summary, err := s.reloader.ReloadNow()
		if err != nil {
			return Response{Type: ResponseError, Message: err.Error()}
		}
		return Response{Type: ResponseSuccess, Message: summary}

	case MessageStatus:
		return Response{
			Type:          ResponseStatus,
			Version:       s.version,
			UptimeSeconds: uint64(time.Since(s.startTime).Seconds()),
			PluginsLoaded: s.host.PluginCount(),
		}

	case MessageList:
		result, err := s.host.HandleCommand(ctx, "scratchpads", "list", nil)
		if err != nil {
			return Response{Type: ResponseError, Message: err.Error()}
		}
		items := []string{result}
		if rest, found := strings.CutPrefix(result, "Available scratchpads: "); found {
			items = strings.Split(rest, ", ")
		}
		return Response{Type: ResponseList, Items: items}

	default:
		return Response{Type: ResponseError, Message: fmt.Sprintf("unknown request type %q", message.Type)}
	}
}

func (s *Server) command(ctx context.Context, plugin, verb string, args []string) Response {
	result, err := s.host.HandleCommand(ctx, plugin, verb, args)
	if err != nil {
		return Response{Type: ResponseError, Message: err.Error()}
	}
	return Response{Type: ResponseSuccess, Message: result}
}
