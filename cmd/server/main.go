package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "warehouse-ledger/internal/adapters/web"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"
	"warehouse-ledger/internal/logger"
	"warehouse-ledger/internal/worker"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	docService := core.NewDocumentService(pool)
	ledger := core.NewLedger(pool)
	allocator := core.NewLocationAllocator(pool)
	outbox := core.NewOutboxRepository(pool)
	availability := core.NewAvailabilityService(pool)

	svc := app.NewAppService(
		pool,
		core.NewMasterDataService(pool),
		core.NewStockQueryService(pool),
		availability,
		allocator,
		core.NewPurchaseOrderService(pool, docService, zl),
		core.NewSalesOrderService(pool, docService, availability, zl),
		core.NewTransferService(pool, docService, availability, zl),
		core.NewReceiptService(pool, ledger, allocator, docService, outbox, zl),
		zl,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, zl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	relay := worker.NewOutboxWorker(outbox, worker.NewLogPublisher(zl), zl, cfg.OutboxInterval, cfg.OutboxBatchSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return relay.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("server stopped")
}
