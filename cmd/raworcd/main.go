// Command raworcd runs the Raworc control plane: the HTTP API, the session
// lifecycle worker, and the reconciliation loops, all against one Postgres
// database and one container engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/api"
	"github.com/kandev/raworc/internal/auth"
	"github.com/kandev/raworc/internal/bootstrap"
	"github.com/kandev/raworc/internal/common/config"
	"github.com/kandev/raworc/internal/common/logger"
	"github.com/kandev/raworc/internal/container"
	"github.com/kandev/raworc/internal/db"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/reconciler"
	"github.com/kandev/raworc/internal/store"
	"github.com/kandev/raworc/internal/volume"
	"github.com/kandev/raworc/internal/worker"
)

// version is set by the release build; "dev" otherwise.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting raworcd", zap.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.Open(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer conn.Close()

	st := store.New(conn)
	if err := st.InitSchema(ctx); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}
	log.Info("connected to postgres")

	bus, err := events.New(cfg.NATS, log)
	if err != nil {
		log.Fatal("failed to initialize event bus", zap.Error(err))
	}
	defer bus.Close()

	dockerClient, err := container.NewClient(cfg.Docker, log)
	if err != nil {
		log.Fatal("failed to initialize container client", zap.Error(err))
	}
	defer dockerClient.Close()
	if err := dockerClient.Ping(ctx); err != nil {
		log.Fatal("failed to connect to container engine", zap.Error(err))
	}
	log.Info("connected to container engine")

	volumes := volume.NewManager(cfg.HostAgent.VolumesPath, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDurationTime())

	if err := bootstrap.Seed(ctx, st, log); err != nil {
		log.Fatal("failed to seed admin principal", zap.Error(err))
	}

	w := worker.New(st, dockerClient, volumes, bus, cfg.HostAgent, cfg.Session, log)
	w.Start(ctx)
	defer w.Stop()
	log.Info("started lifecycle worker")

	rec := reconciler.New(st, dockerClient, log)
	rec.Start(ctx)
	defer rec.Stop()
	log.Info("started reconciliation loops")

	server := api.New(st, tokens, bus, log, version)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down raworcd")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
}
