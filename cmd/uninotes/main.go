package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/config"
	"uninotes/pkg/events"
	"uninotes/pkg/handlers"
	"uninotes/pkg/logging"
	"uninotes/pkg/metrics"
	"uninotes/pkg/middleware"
	"uninotes/pkg/performance"
	"uninotes/pkg/services"
	"uninotes/pkg/storage"
	"uninotes/pkg/tracing"
)

// storageDebounce collapses bursts of external writes to one namespace.
const storageDebounce = 250 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logging.New(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"listen":      cfg.ListenAddr,
		"api":         cfg.APIBaseURL,
		"data_dir":    cfg.DataDir,
		"driver":      cfg.StorageDriver,
		"config_file": config.GetConfigFilePath(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	shutdownTracing, err := tracing.InitTracing(cfg.JaegerEndpoint, log)
	if err != nil {
		log.WithError(err).Warn("Tracing disabled")
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open durable storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Error closing store")
		}
	}()

	bus := events.NewBus(log)
	manager := auth.NewManager(store, bus, cfg.CookieSecure, log)
	go manager.Run(ctx)

	// External writes to the file backend become storage events
	debouncer := performance.NewDebouncer(storageDebounce)
	defer debouncer.Stop()
	if w, ok := store.(storage.Watcher); ok {
		w.Watch(func(c storage.Change) {
			debouncer.Debounce(c.Namespace, func() {
				bus.Publish(events.Event{Type: events.StorageChanged, Namespace: c.Namespace})
			})
		})
	}

	if cfg.Kafka.Enabled() {
		groupID := cfg.Kafka.GroupID + "-" + bus.Origin()
		broker := events.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID)
		defer broker.Close()
		go events.NewRelay(bus, broker, log).Run(ctx)
		log.WithField("topic", cfg.Kafka.Topic).Info("Kafka event relay started")
	}

	janitor := services.NewJanitor(store, manager, bus, cfg.SessionIdleTTL, log)
	if _, err := janitor.Schedule(cfg.JanitorInterval); err != nil {
		log.WithError(err).Fatal("Failed to schedule janitor")
	}
	janitor.Start()
	defer janitor.Stop()

	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, log)
	inflight := performance.NewInFlight()
	shared, err := services.NewSharedService()
	if err != nil {
		log.WithError(err).Fatal("Failed to load shared notes preview")
	}

	h, err := handlers.New(handlers.Deps{
		Manager:    manager,
		Bus:        bus,
		Limiter:    middleware.NewIPRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		Auth:       services.NewAuthService(client, log),
		Notes:      services.NewNoteService(client, bus, inflight, log),
		Categories: services.NewCategoryService(client, inflight, log),
		Tags:       services.NewTagService(client, inflight, log),
		Users:      services.NewUserService(client, inflight, log),
		Admin:      services.NewAdminService(client, log),
		Shared:     shared,
		Log:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise handlers")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed")
	}
}
