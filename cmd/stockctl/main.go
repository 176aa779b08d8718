package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"warehouse-ledger/internal/adapters/cli"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"
	"warehouse-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Operator output goes to stdout; only warnings and errors are logged.
	zl, err := logger.New("warn", cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	docService := core.NewDocumentService(pool)
	availability := core.NewAvailabilityService(pool)
	allocator := core.NewLocationAllocator(pool)
	svc := app.NewAppService(
		pool,
		core.NewMasterDataService(pool),
		core.NewStockQueryService(pool),
		availability,
		allocator,
		core.NewPurchaseOrderService(pool, docService, zl),
		core.NewSalesOrderService(pool, docService, availability, zl),
		core.NewTransferService(pool, docService, availability, zl),
		core.NewReceiptService(pool, core.NewLedger(pool), allocator,
			docService, core.NewOutboxRepository(pool), zl),
		zl,
	)

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		pool.Close()
		os.Exit(1)
	}
}
