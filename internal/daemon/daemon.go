package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyprshell/hyprshell/internal/animation"
	"github.com/hyprshell/hyprshell/internal/cache"
	"github.com/hyprshell/hyprshell/internal/compositor"
	"github.com/hyprshell/hyprshell/internal/hotreload"
	"github.com/hyprshell/hyprshell/internal/ipc"
	"github.com/hyprshell/hyprshell/internal/plugins"
	"github.com/hyprshell/hyprshell/pkg/config"
)

// Options configure daemon startup.
type Options struct {
	ConfigPath  string
	Version     string
	MetricsAddr string
}

// Daemon wires the compositor bridge, animation engine, plugin host,
// control server, and hot reload into one long-running process.
type Daemon struct {
	logger *logrus.Logger
	tracer trace.Tracer
	opts   Options

	cfg      *config.Config
	bridge   *compositor.Client
	cache    *cache.StateCache
	engine   *animation.Engine
	animator *animation.WindowAnimator
	host     *plugins.Host
	server   *ipc.Server
	reload   *hotreload.Manager

	registry      *prometheus.Registry
	metricsServer *http.Server
	eventsTotal   prometheus.Counter
	activeAnims   prometheus.GaugeFunc
}

// New loads the configuration, connects to the compositor, and builds
// every subsystem. A missing compositor instance signature is fatal.
func New(logger *logrus.Logger, opts Options) (*Daemon, error) {
	logger.WithField("config", opts.ConfigPath).Info("Loading configuration")
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	bridge, err := compositor.Connect(logger)
	if err != nil {
		return nil, err
	}

	stateCache := cache.NewStateCache()
	stateCache.StoreVariables(cfg.Daemon.Variables)
	for _, name := range cfg.PluginNames() {
		stateCache.StoreConfig(name, cfg.PluginConfig(name))
	}

	engine := animation.NewEngine(logger)
	animator := animation.NewWindowAnimator(logger, engine, bridge)

	if monitor, err := bridge.FocusedMonitor(); err == nil {
		animator.SetActiveMonitor(*monitor)
	} else {
		logger.WithError(err).Warn("Could not resolve focused monitor at startup")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	runtime := &plugins.Runtime{
		Logger:    logger,
		Bridge:    bridge,
		Engine:    engine,
		Animator:  animator,
		Cache:     stateCache,
		Variables: stateCache.Variables,
	}

	host := plugins.NewHost(logger, runtime)
	if err := host.LoadPlugins(cfg); err != nil {
		return nil, err
	}

	server := ipc.NewServer(logger, host, nil, opts.Version, registry)
	reload := hotreload.NewManager(logger, host, cfg, registry)
	server.SetReloader(reload)

	d := &Daemon{
		logger:   logger,
		tracer:   otel.Tracer("daemon"),
		opts:     opts,
		cfg:      cfg,
		bridge:   bridge,
		cache:    stateCache,
		engine:   engine,
		animator: animator,
		host:     host,
		server:   server,
		reload:   reload,
		registry: registry,
		eventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyprshell_compositor_events_total",
			Help: "Compositor events dispatched to plugins",
		}),
		activeAnims: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hyprshell_active_animations",
			Help: "Animations currently in flight",
		}, func() float64 { return float64(engine.ActiveCount()) }),
	}
	registry.MustRegister(d.eventsTotal, d.activeAnims)

	return d, nil
}

// Run starts every subsystem and pumps compositor events into the
// plugin host until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "daemon.Run")
	defer span.End()

	if err := d.server.Start(); err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	if err := d.reload.Start([]string{d.cfg.Path()}, hotreload.DefaultConfig()); err != nil {
		d.logger.WithError(err).Error("Failed to start hot reload")
	}

	if d.opts.MetricsAddr != "" {
		d.startMetricsServer()
	}

	events := d.bridge.SubscribeEvents()
	d.logger.Info("Daemon started")

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil

		case event, ok := <-events:
			if !ok {
				d.logger.Error("Compositor event stream closed")
				d.shutdown()
				return fmt.Errorf("compositor event stream closed")
			}
			d.handleEvent(ctx, event)
		}
	}
}

func (d *Daemon) handleEvent(ctx context.Context, event compositor.Event) {
	ctx, span := d.tracer.Start(ctx, "daemon.handleEvent")
	defer span.End()

	d.eventsTotal.Inc()

	switch event.Kind {
	case compositor.EventChannelOverflow:
		d.logger.WithField("detail", event.Raw).Error("Compositor event channel overflowed")
	case compositor.EventMonitorChanged, compositor.EventWorkspaceChanged:
		d.refreshCache()
	}

	d.host.HandleEvent(ctx, event)
}

// refreshCache republishes monitor/workspace snapshots when the cached
// set has aged past its validity window.
func (d *Daemon) refreshCache() {
	if d.cache.Valid() {
		return
	}
	if monitors, err := d.bridge.Monitors(); err == nil {
		d.cache.UpdateMonitors(monitors)
		for _, m := range monitors {
			if m.Focused {
				d.animator.SetActiveMonitor(m)
				break
			}
		}
	}
	if workspaces, err := d.bridge.Workspaces(); err == nil {
		d.cache.UpdateWorkspaces(workspaces)
	}
}

func (d *Daemon) startMetricsServer() {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	d.metricsServer = &http.Server{
		Addr:         d.opts.MetricsAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		d.logger.WithField("addr", d.opts.MetricsAddr).Info("Starting metrics server")
		if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

func (d *Daemon) shutdown() {
	d.logger.Info("Shutting down daemon")

	d.server.Stop()
	d.reload.Stop()
	d.host.UnloadAll()
	d.bridge.Close()

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			d.logger.WithError(err).Error("Failed to shut down metrics server")
		}
	}

	d.logger.Info("Daemon shutdown complete")
}
