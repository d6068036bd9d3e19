package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"dataflow-gateway/internal/api"
	"dataflow-gateway/internal/backend"
	"dataflow-gateway/internal/blob"
	"dataflow-gateway/internal/config"
	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/openapi"
	"dataflow-gateway/internal/queue"
	"dataflow-gateway/internal/render"
	"dataflow-gateway/internal/store"
	"dataflow-gateway/internal/templates"
)

var version = "dev"

func main() {
	loadDotEnv()

	host := flag.String("host", "", "bind address, overrides HTTP_ADDR")
	dev := flag.Bool("dev", false, "development mode: debug logs, error detail, template reload")
	seed := flag.Bool("seed", false, "load the demo registry on first engine use")
	flag.Parse()

	cfg := config.Load()
	if *host != "" {
		cfg.HTTPAddr = *host
	}
	if *dev {
		cfg.Env = "dev"
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	openapi.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engines := engine.NewProvider(engineFactory(cfg, *seed, logger))
	defer func() {
		if err := engines.Close(); err != nil {
			logger.Error("close engine", "error", err)
		}
	}()

	tmpl, err := loadTemplates(cfg, logger)
	if err != nil {
		logger.Error("load templates", "error", err)
		os.Exit(1)
	}

	server := api.New(api.Options{
		Engines:   engines,
		Templates: tmpl,
		Logger:    logger,
		DevMode:   cfg.DevMode(),
	})
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("gateway stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.DevMode() {
		level = slog.LevelDebug
	} else if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// engineFactory connects to the engine's registry, intake and object store.
// It runs on the first request that needs the engine, not at startup.
func engineFactory(cfg config.Config, seed bool, logger *slog.Logger) engine.Factory {
	return func(ctx context.Context) (engine.API, error) {
		st, err := store.Open(ctx, cfg.RegistryDSN)
		if err != nil {
			return nil, err
		}
		if cfg.RegistryMigrate || seed {
			if err := st.RunMigrations(ctx); err != nil {
				st.Close()
				return nil, err
			}
		}
		if seed {
			if err := store.SeedDemo(ctx, st); err != nil {
				st.Close()
				return nil, err
			}
		}

		q := queue.NewRedisQueue(cfg)
		if err := q.Ping(ctx); err != nil {
			st.Close()
			_ = q.Close()
			return nil, err
		}

		blobs, err := blob.New(ctx, cfg)
		if err != nil {
			st.Close()
			_ = q.Close()
			return nil, err
		}

		logger.Info("engine connected", "blob_backend", cfg.BlobBackend, "intake_priority", cfg.IntakePriority)
		return backend.New(backend.Options{
			Registry: st,
			Intake:   q,
			Blobs:    blobs,
			Renderer: render.New(blobs, cfg.RenderPreviewWidth, cfg.RenderMaxRows),
			Priority: cfg.IntakePriority,
			Logger:   logger,
			Closers:  []func() error{q.Close},
		})
	}
}

func loadTemplates(cfg config.Config, logger *slog.Logger) (*templates.Registry, error) {
	if cfg.TemplateDir == "" {
		return templates.Embedded()
	}
	tmpl, err := templates.Dir(cfg.TemplateDir, cfg.DevMode(), logger)
	if err != nil {
		return nil, err
	}
	if err := tmpl.Check(); err != nil {
		return nil, fmt.Errorf("template dir %s: %w", cfg.TemplateDir, err)
	}
	return tmpl, nil
}

// loadDotEnv loads the nearest .env walking up from the working directory.
// Variables already set in the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
