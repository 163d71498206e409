package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/delta-silence/ticket-intake/internal/api/http"
	"github.com/delta-silence/ticket-intake/internal/api/http/handlers"
	"github.com/delta-silence/ticket-intake/internal/config"
	"github.com/delta-silence/ticket-intake/internal/events"
	"github.com/delta-silence/ticket-intake/internal/observability"
	"github.com/delta-silence/ticket-intake/internal/service"
	"github.com/delta-silence/ticket-intake/internal/store"
	"github.com/delta-silence/ticket-intake/internal/store/boltstore"
	"github.com/delta-silence/ticket-intake/internal/store/github"
	"github.com/delta-silence/ticket-intake/internal/worker"
)

type contentStore interface {
	store.ContentStore
	store.Pinger
}

func main() {
	flagSet := pflag.NewFlagSet("ticket-intake", pflag.ContinueOnError)
	envFiles := flagSet.StringArray("env-file", []string{".env"}, "env file to load before reading the environment (repeatable)")
	addr := flagSet.String("addr", "", "listen address, overrides APP_HOST and APP_PORT")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	contents, closeStore, err := newContentStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init content store", zap.Error(err))
	}
	defer closeStore()

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      contents,
		Path:       cfg.GitHub.Path,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Backend, contents, metrics),
		Tickets: handlers.NewTicketsHandler(ticketService),
	})

	listenAddr := cfg.App.Addr()
	if *addr != "" {
		listenAddr = *addr
	}
	logger.Info("starting server",
		zap.String("addr", listenAddr),
		zap.String("env", cfg.App.Env),
		zap.String("store", cfg.Store.Backend))

	go func() {
		if err := app.Listen(listenAddr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func newContentStore(cfg *config.Config, logger *zap.Logger) (contentStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendGitHub:
		s, err := github.NewContentsStore(github.Config{
			BaseURL: cfg.GitHub.BaseURL,
			Token:   cfg.GitHub.Token,
			Owner:   cfg.GitHub.Owner,
			Repo:    cfg.GitHub.Repo,
			Branch:  cfg.GitHub.Branch,
			Timeout: cfg.GitHub.Timeout(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.StoreBackendBolt:
		s, err := boltstore.New(cfg.Bolt.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ensure(cfg.GitHub.Path, []byte("[]")); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
