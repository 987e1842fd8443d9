package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairsona/internal/config"
	"pairsona/internal/geo"
	"pairsona/internal/obs"
	"pairsona/internal/session"
	"pairsona/internal/ws"
)

// Application wires the components in dependency order:
// resolver -> supervisor -> handler -> HTTP server.
type Application struct {
	config     *config.Config
	resolver   *geo.Resolver
	supervisor *session.Supervisor
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	obs.EnableDebug(cfg.Debug)

	resolver, err := geo.New(cfg.Geo.DatabasePath, cfg.Geo.CacheSize)
	if resolver == nil {
		return nil, fmt.Errorf("failed to initialize location resolver: %w", err)
	}
	if err != nil {
		// Lookup failures degrade to unknown; an unreadable database is
		// not fatal either.
		obs.Error("geo.open", obs.Fields{"err": err.Error(), "path": cfg.Geo.DatabasePath})
	}

	supervisor := session.New(session.Options{
		Policy:        cfg.Match.Policy,
		MaxWait:       cfg.Match.MaxWait,
		ShutdownGrace: cfg.Match.ShutdownGrace,
	})

	handler := ws.NewHandler(supervisor, resolver, ws.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:     mux,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		// Write timeout would sever long-lived websocket responses, so
		// only non-upgraded endpoints get one via the handler configs.
	}

	return &Application{
		config:     cfg,
		resolver:   resolver,
		supervisor: supervisor,
		httpServer: httpServer,
	}, nil
}

func (app *Application) Start(ctx context.Context) error {
	obs.Info("app.start", obs.Fields{"addr": app.httpServer.Addr, "policy": app.config.Match.Policy})

	if err := app.supervisor.Start(); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.supervisor.Shutdown(context.Background())
		return err
	case <-time.After(100 * time.Millisecond):
		obs.Info("app.ready", nil)
		return nil
	case <-ctx.Done():
		_ = app.supervisor.Shutdown(context.Background())
		return ctx.Err()
	}
}

// Stop shuts down in reverse order: stop accepting, drain pairs, close
// the geolocation database.
func (app *Application) Stop(ctx context.Context) error {
	obs.Info("app.stop", nil)

	if err := app.httpServer.Shutdown(ctx); err != nil {
		obs.Error("app.http_shutdown", obs.Fields{"err": err.Error()})
	}
	if err := app.supervisor.Shutdown(ctx); err != nil {
		obs.Error("app.supervisor_shutdown", obs.Fields{"err": err.Error()})
	}
	if err := app.resolver.Close(); err != nil {
		obs.Error("app.geo_close", obs.Fields{"err": err.Error()})
	}

	obs.Info("app.stopped", nil)
	return nil
}

func main() {
	if err := run(); err != nil {
		obs.Error("app.fatal", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("PAIRSONA_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		obs.Info("app.signal", obs.Fields{"signal": sig.String()})

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			cfg.Match.ShutdownGrace+10*time.Second)
		defer shutdownCancel()

		if err := app.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
