package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	stdnet "net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coupdegrace/server/internal/combat"
	"coupdegrace/server/internal/config"
	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/execution"
	servernet "coupdegrace/server/internal/net"
	"coupdegrace/server/internal/net/ws"
	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/prototype"
	"coupdegrace/server/internal/sim"
	"coupdegrace/server/internal/telemetry"
	"coupdegrace/server/internal/verbs"
	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
	loggingSinks "coupdegrace/server/logging/sinks"
)

// Deps overrides process-level collaborators. Zero values select defaults.
type Deps struct {
	Logger telemetry.Logger
	Clock  logging.Clock
	Stdout io.Writer
}

// Server is a fully wired game server that has not started serving yet.
type Server struct {
	Handler  http.Handler
	Loop     *sim.Loop
	Router   *logging.Router
	Counters *telemetry.Counters
	World    *world.World
	Hub      *popup.Hub

	settings config.Config
	logger   telemetry.Logger
	zap      *zap.Logger
}

// New builds every subsystem from settings. Close must be called to flush
// the event router.
func New(settings config.Config, deps Deps) (*Server, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	logConfig := settings.Logging()
	var zapLogger *zap.Logger
	if logConfig.HasSink("zap") {
		built, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to construct zap logger: %w", err)
		}
		zapLogger = built
	}

	logger := deps.Logger
	if logger == nil {
		if zapLogger != nil {
			logger = telemetry.WrapZap(zapLogger)
		} else {
			logger = telemetry.WrapLogger(log.Default())
		}
	}
	fallbackLogger := log.Default()
	if provider, ok := logger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	sinks, err := buildSinks(logConfig, stdout, zapLogger)
	if err != nil {
		return nil, err
	}
	router, err := logging.NewRouter(logConfig, clock, fallbackLogger, sinks)
	if err != nil {
		closeSinks(sinks)
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}

	catalog, err := loadCatalog(settings.Prototypes)
	if err != nil {
		router.Close(context.Background())
		return nil, err
	}

	counters := telemetry.NewCounters()
	w := world.New(world.Config{Seed: settings.Seed, InteractionRange: settings.InteractionRange}, world.Deps{Publisher: router})
	scheduler := doafter.New(doafter.Config{World: w, Clock: clock, Metrics: counters})
	melee := combat.NewMeleeSystem(combat.MeleeConfig{World: w, Publisher: router})
	guns := combat.NewGunSystem(combat.GunConfig{World: w, Publisher: router})
	hub := popup.NewHub(popup.HubConfig{Logger: logger, Metrics: counters})

	registry := verbs.NewRegistry(w)
	executions := execution.NewSystem(execution.Config{
		World:     w,
		Melee:     melee,
		Guns:      guns,
		Scheduler: scheduler,
		Popups:    hub,
		Publisher: router,
		Logger:    logger,
	})
	melee.OnGetDamage(executions.OnGetMeleeDamage)
	registry.Register(executions.Verbs)

	engine, err := sim.NewEngine(sim.EngineConfig{
		World:      w,
		Scheduler:  scheduler,
		Verbs:      registry,
		Prototypes: catalog,
		Replies:    hub,
		Deps:       sim.Deps{Logger: logger, Metrics: counters, Clock: clock},
	})
	if err != nil {
		router.Close(context.Background())
		return nil, err
	}
	loop := sim.NewLoop(engine, sim.LoopConfig{
		TickRate:        settings.TickRate,
		CatchupMaxTicks: 4,
		CommandCapacity: settings.CommandCapacity,
		PerActorLimit:   settings.PerActorLimit,
		WarningStep:     settings.CommandCapacity / 4,
	}, sim.LoopHooks{
		OnQueueWarning: func(length int) {
			logger.Printf("[sim] command queue length=%d", length)
		},
	})

	socket := ws.NewHandler(hub, loop, ws.HandlerConfig{Logger: logger, Metrics: counters})
	handler := servernet.NewHTTPHandler(socket, servernet.HTTPHandlerConfig{
		Logger:    logger,
		Telemetry: counters,
		TickRate:  settings.TickRate,
		Seed:      settings.Seed,
	})

	return &Server{
		Handler:  handler,
		Loop:     loop,
		Router:   router,
		Counters: counters,
		World:    w,
		Hub:      hub,
		settings: settings,
		logger:   logger,
		zap:      zapLogger,
	}, nil
}

// Close flushes the event router and the zap logger.
func (s *Server) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	err := s.Router.Close(ctx)
	if s.zap != nil {
		s.zap.Sync()
	}
	return err
}

// Serve runs the simulation loop and the HTTP server on ln until ctx is
// cancelled or either fails.
func (s *Server) Serve(ctx context.Context, ln stdnet.Listener) error {
	srv := &http.Server{Handler: s.Handler, ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	stop := make(chan struct{})
	group.Go(func() error {
		s.Loop.Run(stop)
		return nil
	})
	group.Go(func() error {
		s.logger.Printf("server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		close(stop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Run builds the server from settings and serves on settings.Addr until ctx
// is cancelled.
func Run(ctx context.Context, settings config.Config) error {
	server, err := New(settings, Deps{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if cerr := server.Close(closeCtx); cerr != nil {
			server.logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	ln, err := stdnet.Listen("tcp", settings.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.Addr, err)
	}
	return server.Serve(ctx, ln)
}

// buildSinks constructs the enabled sinks. On error every sink already built
// is closed, releasing any file it opened.
func buildSinks(cfg logging.Config, stdout io.Writer, zapLogger *zap.Logger) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		var sink logging.Sink
		switch name {
		case "console":
			sink = loggingSinks.NewConsole(stdout)
		case "json":
			if cfg.JSON.FilePath == "" {
				sink = loggingSinks.NewJSON(stdout, cfg.JSON.FlushInterval)
				break
			}
			file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				closeSinks(sinks)
				return nil, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
			}
			sink = loggingSinks.NewJSONFile(file, cfg.JSON.FlushInterval)
		case "zap":
			sink = loggingSinks.NewZap(zapLogger)
		case "memory":
			sink = loggingSinks.NewMemory()
		default:
			closeSinks(sinks)
			return nil, fmt.Errorf("%w: unknown log sink %q", config.ErrInvalid, name)
		}
		sinks = append(sinks, logging.NamedSink{Name: name, Sink: sink})
	}
	return sinks, nil
}

func closeSinks(sinks []logging.NamedSink) {
	for _, named := range sinks {
		named.Sink.Close(context.Background())
	}
}

func loadCatalog(path string) (*prototype.Catalog, error) {
	if path == "" {
		return prototype.Bundled()
	}
	return prototype.Load(path)
}
