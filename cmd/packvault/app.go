package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/justtherip/packvault/internal/db"
	"github.com/justtherip/packvault/internal/handlers"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/repository/postgres"
	"github.com/justtherip/packvault/internal/service/auth"
	"github.com/justtherip/packvault/internal/service/catalog"
	"github.com/justtherip/packvault/internal/service/draw"
	"github.com/justtherip/packvault/internal/service/inventory"
	"github.com/justtherip/packvault/internal/service/ledger"
	"github.com/justtherip/packvault/internal/service/pack"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	scheduler *catalog.Scheduler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	verifier, err := auth.NewVerifier(auth.Config{SecretKey: c.SecretKey}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token verifier. Err: %w", err)
	}
	ledgerService := ledger.NewService(storage)
	packService := pack.NewService(storage, ledgerService, draw.New(nil), log)
	inventoryService := inventory.NewService(storage, packService, log)

	// Catalog sync pipeline. The syncer always backs the manual endpoint;
	// the in-process scheduler is opt-in.
	client := catalog.NewClient(c.TCGBaseURL, log)
	syncer := catalog.NewSyncer(client, storage, log, catalog.Options{
		Categories: c.SyncCategories,
	})

	var scheduler *catalog.Scheduler
	if c.SyncEnabled {
		scheduler, err = catalog.NewScheduler(syncer, c.SyncSchedule, log)
		if err != nil {
			return nil, fmt.Errorf("error while creating sync scheduler. Err: %w", err)
		}
	}

	mux := handlers.NewRouter(
		verifier,
		packService,
		ledgerService,
		inventoryService,
		syncer,
		c.CronSecret,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		scheduler:  scheduler,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			<-s.scheduler.Stop().Done()
		}()
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
