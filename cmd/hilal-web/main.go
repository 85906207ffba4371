// Hilalscope web server.
// Serves crescent visibility maps, single-location summaries, Qibla
// directions and saved places over a JSON/GeoJSON REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/internal/observability"
	"github.com/unklstewy/hilalscope/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (default from config)")
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 30 * time.Second

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return eris.Wrap(err, "failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return eris.Wrap(err, "invalid config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "failed to init logger")
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	collector, err := observability.NewScanCollector(nil)
	if err != nil {
		return err
	}

	engine, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}

	var places placeRepository
	var health func(context.Context) bool
	if cfg.Database.Enabled {
		database, err := db.ConnectWithRetry(ctx, cfg.Database, 5, time.Second)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.InitSchema(ctx); err != nil {
			return err
		}
		places = db.NewPlaceRepository(database)
		health = func(ctx context.Context) bool { return db.HealthCheck(ctx, database) }
	}

	srv, err := NewServer(engine, collector, app.NewGeocoder(cfg.Geocode), places, health)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("server listening", zap.String("addr", httpServer.Addr))
		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	zap.L().Info("server stopped")
	return nil
}
