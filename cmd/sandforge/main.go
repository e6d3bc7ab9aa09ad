package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/SandForge/internal/adapter/cached"
	sfhttp "github.com/Strob0t/SandForge/internal/adapter/http"
	sfmcp "github.com/Strob0t/SandForge/internal/adapter/mcp"
	"github.com/Strob0t/SandForge/internal/adapter/memstore"
	"github.com/Strob0t/SandForge/internal/adapter/natskv"
	"github.com/Strob0t/SandForge/internal/adapter/openai"
	"github.com/Strob0t/SandForge/internal/adapter/postgres"
	"github.com/Strob0t/SandForge/internal/adapter/procbox"
	"github.com/Strob0t/SandForge/internal/adapter/storagevfs"
	"github.com/Strob0t/SandForge/internal/adapter/ws"
	"github.com/Strob0t/SandForge/internal/config"
	"github.com/Strob0t/SandForge/internal/eventbus"
	"github.com/Strob0t/SandForge/internal/logger"
	"github.com/Strob0t/SandForge/internal/middleware"
	"github.com/Strob0t/SandForge/internal/port/storage"
	"github.com/Strob0t/SandForge/internal/resilience"
	"github.com/Strob0t/SandForge/internal/service"
	"github.com/Strob0t/SandForge/internal/telemetry"
)

const busDrainInterval = 50 * time.Millisecond

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
		"sandbox_transport", cfg.Sandbox.Transport,
		"provider", cfg.Agent.LLM.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// --- Storage ---
	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStore()
	slog.Info("storage ready", "backend", store.BackendName())

	// --- Secrets ---
	if cfg.Agent.LLM.APIKey == "" {
		if key := loadAPIKey(ctx, store); key != "" {
			cfg.Agent.LLM.APIKey = key
		}
	}

	// --- Ports ---
	bus := eventbus.New()
	fs := storagevfs.New(store)
	shell := procbox.NewPort(cfg.Sandbox, cfg.NATS.URL)
	slog.Info("sandbox port created", "ready", shell.IsReady())

	llm := openai.NewClient(cfg.Agent.LLM)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---
	dispatcher := service.NewDispatcher(shell, fs, bus, log)
	runtime := service.NewAgentRuntime(cfg.Agent, llm, dispatcher, bus, log)
	sessions := service.NewSessionService(store, log)
	hub := ws.NewHub()

	// --- HTTP ---
	handlers := sfhttp.NewHandlers(runtime, sessions, llm, shell, store, hub)

	r := chi.NewRouter()
	r.Use(sfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(sfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(telemetry.HTTPMiddleware(cfg.Logging.Service))
	sfhttp.MountRoutes(r, handlers, hub.HandleWS)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // turns can be slow
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ws.PumpBus(gctx, bus, hub, busDrainInterval)
		return nil
	})

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var mcpServer *sfmcp.Server
	if cfg.Server.MCPEnabled {
		mcpServer = sfmcp.NewServer(
			sfmcp.ServerConfig{Addr: ":3001", Name: "sandforge", Version: "0.1.0"},
			sfmcp.ServerDeps{Shell: shell, FS: fs},
		)
		g.Go(func() error {
			return mcpServer.Start()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if mcpServer != nil {
			_ = mcpServer.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects and connects the configured storage backend, optionally
// layering the read-through cache over it.
func buildStore(ctx context.Context, cfg *config.Config) (storage.Port, func(), error) {
	var (
		store   storage.Port
		cleanup = func() {}
	)

	switch cfg.Storage.Backend {
	case "memory":
		store = memstore.New()

	case "nats":
		kv, err := natskv.Connect(ctx, cfg.NATS.URL, cfg.NATS.KVBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("nats kv: %w", err)
		}
		store = kv

	case "postgres":
		if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store = postgres.NewStore(pool)
		cleanup = pool.Close

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Cache.Enabled {
		cachedStore, err := cached.New(store, cfg.Cache.MaxSizeMB<<20, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		inner := cleanup
		cleanup = func() {
			cachedStore.Close()
			inner()
		}
		store = cachedStore
	}

	return store, cleanup, nil
}
