package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/db"
	taskgrpc "github.com/Rajvira10/todoist-netlify/services/tasks/adapters/grpc"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/notify"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest/handlers"
	"github.com/Rajvira10/todoist-netlify/services/tasks/config"
	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

const (
	shutdownTimeout = 10 * time.Second
	healthInterval  = 15 * time.Second
)

func main() {
	// config
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "tasks-service server configuration file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	// logger
	log := mustMakeLogger(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("starting tasks-service server")

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %v", err)
	}

	// database adapter
	storage, err := db.New(log, cfg.DBDriver, cfg.DBAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %v", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("failed to close db connection", "error", err)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate db: %v", err)
	}

	// notification sink
	sink, err := notify.New(log, cfg.Notify)
	if err != nil {
		return fmt.Errorf("failed to init notifier: %v", err)
	}

	authn, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to init auth: %v", err)
	}

	// core
	dispatcher := core.NewDispatcher(log, storage, storage, sink, cfg.Dispatch.Core(), nil)
	tasksService := core.NewService(storage, storage, core.ServiceConfig{
		Location:     loc,
		StoreTimeout: cfg.Dispatch.StoreTimeout,
		Waker:        dispatcher,
	})

	// http
	mux := http.NewServeMux()
	handlers.Register(mux, log, handlers.Deps{Tasks: tasksService, Auth: authn}, cfg.RequestTimeout)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		ReadHeaderTimeout: cfg.RequestTimeout,
		Handler:           mux,
	}

	// grpc health
	listener, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer()
	health := taskgrpc.NewHealth(log, storage, dispatcher, cfg.Dispatch.StoreTimeout)
	health.Register(grpcServer)
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return health.Run(gctx, healthInterval)
	})
	g.Go(func() error {
		log.Info("tasks-service gRPC server is running", "address", cfg.GRPCAddress)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("tasks-service http server is running", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("shutting down tasks-service server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func mustMakeLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
