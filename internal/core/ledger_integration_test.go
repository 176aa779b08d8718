package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"warehouse-ledger/internal/core"
	"warehouse-ledger/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// testEnv bundles the services every integration test needs.
type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	ledger    *core.Ledger
	docs      core.DocumentService
	avail     core.AvailabilityService
	receipts  core.ReceiptService
	pos       core.PurchaseOrderService
	sos       core.SalesOrderService
	transfers core.TransferService
	master    core.MasterDataService
	stock     core.StockQueryService
	outbox    core.OutboxRepository
}

// Seed ids (identities restart on every setup):
//
//	products:   1 = P-100 Widget (threshold 5), 2 = P-200 Gadget
//	warehouses: 1 = MAIN, 2 = EAST
//	supplier 1, customer 1
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE outbox_events, stock_out_details, stock_out_receipts, stock_in_details, stock_in_receipts,
		               transfer_lines, transfers, sales_order_lines, sales_orders,
		               purchase_order_lines, purchase_orders, document_sequences,
		               inventory_records, locations, warehouses, customers, suppliers, products
		RESTART IDENTITY CASCADE;

		INSERT INTO products (code, name, unit, cost_price, sell_price, low_stock_threshold) VALUES
		('P-100', 'Widget', 'unit', 10.00, 15.00, 5),
		('P-200', 'Gadget', 'unit', 20.00, 30.00, 0);

		INSERT INTO warehouses (code, name) VALUES
		('MAIN', 'Main Warehouse'),
		('EAST', 'East Warehouse');

		INSERT INTO suppliers (code, name) VALUES ('S-1', 'Acme Supply');
		INSERT INTO customers (code, name) VALUES ('C-1', 'Beta Retail');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := setupTestDB(t)

	ledger := core.NewLedger(pool)
	docs := core.NewDocumentService(pool)
	avail := core.NewAvailabilityService(pool)
	outbox := core.NewOutboxRepository(pool)
	return &testEnv{
		ctx:       context.Background(),
		pool:      pool,
		ledger:    ledger,
		docs:      docs,
		avail:     avail,
		receipts:  core.NewReceiptService(pool, ledger, core.NewLocationAllocator(pool), docs, outbox, nil),
		pos:       core.NewPurchaseOrderService(pool, docs, nil),
		sos:       core.NewSalesOrderService(pool, docs, avail, nil),
		transfers: core.NewTransferService(pool, docs, avail, nil),
		master:    core.NewMasterDataService(pool),
		stock:     core.NewStockQueryService(pool),
		outbox:    outbox,
	}
}

const (
	widget    = 1
	gadget    = 2
	mainWH    = 1
	eastWH    = 2
	supplier1 = 1
	customer1 = 1
	actor     = 42
)

func (e *testEnv) addLocation(t *testing.T, warehouseID int, code string, capacity int) int {
	t.Helper()
	loc, err := e.master.CreateLocation(e.ctx, warehouseID, code, capacity)
	if err != nil {
		t.Fatalf("CreateLocation %s failed: %v", code, err)
	}
	return loc.ID
}

// seedStock writes a ledger row directly, bypassing receipts, to set up a starting position.
func (e *testEnv) seedStock(t *testing.T, productID, locationID, qty int) {
	t.Helper()
	if _, err := e.pool.Exec(e.ctx,
		"INSERT INTO inventory_records (product_id, location_id, quantity) VALUES ($1, $2, $3)",
		productID, locationID, qty,
	); err != nil {
		t.Fatalf("seed stock failed: %v", err)
	}
}

func (e *testEnv) qty(t *testing.T, productID, locationID int) int {
	t.Helper()
	q, err := e.ledger.GetQuantity(e.ctx, productID, locationID)
	if err != nil {
		t.Fatalf("GetQuantity failed: %v", err)
	}
	return q
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := e.pool.QueryRow(e.ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func (e *testEnv) year() int { return time.Now().Year() }

func yesterday() time.Time { return time.Now().AddDate(0, 0, -1) }
func tomorrow() time.Time  { return time.Now().AddDate(0, 0, 1) }

func lines(productID, qty int) []core.OrderLineInput {
	return []core.OrderLineInput{{ProductID: productID, Quantity: qty}}
}

func (e *testEnv) createPO(t *testing.T, warehouseID int, in []core.OrderLineInput) *core.PurchaseOrder {
	t.Helper()
	po, err := e.pos.CreatePurchaseOrder(e.ctx, core.CreatePurchaseOrderInput{
		ActorID: actor, SupplierID: supplier1, WarehouseID: warehouseID, ExpectedDate: yesterday(), Lines: in,
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	return po
}

func (e *testEnv) createSO(t *testing.T, warehouseID int, in []core.OrderLineInput) *core.SalesOrder {
	t.Helper()
	so, report, err := e.sos.CreateSalesOrder(e.ctx, core.CreateSalesOrderInput{
		ActorID: actor, CustomerID: customer1, WarehouseID: warehouseID, ExpectedDate: tomorrow(), Lines: in,
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder failed: %v", err)
	}
	if so == nil {
		t.Fatalf("CreateSalesOrder rejected: %s", report.Message)
	}
	return so
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestLedger_AdjustCreatesRowAndRejectsNegative(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 100)

	tx, err := env.pool.Begin(env.ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(env.ctx)

	got, err := env.ledger.AdjustTx(env.ctx, tx, widget, loc, 30)
	if err != nil {
		t.Fatalf("AdjustTx(+30) failed: %v", err)
	}
	if got != 30 {
		t.Errorf("expected 30 after first adjustment, got %d", got)
	}

	_, err = env.ledger.AdjustTx(env.ctx, tx, widget, loc, -31)
	if !core.IsCode(err, core.ErrCodeNegativeStock) {
		t.Fatalf("expected NEGATIVE_STOCK, got %v", err)
	}

	_, err = env.ledger.AdjustTx(env.ctx, tx, gadget, loc, -1)
	if !core.IsCode(err, core.ErrCodeNegativeStock) {
		t.Fatalf("expected NEGATIVE_STOCK for missing row, got %v", err)
	}
}

func TestLedger_AdjustEnforcesCapacity(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 50)
	env.seedStock(t, gadget, loc, 40)

	tx, err := env.pool.Begin(env.ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(env.ctx)

	// Capacity is shared across products.
	if _, err := env.ledger.AdjustTx(env.ctx, tx, widget, loc, 11); !core.IsCode(err, core.ErrCodeCapacityExceeded) {
		t.Fatalf("expected CAPACITY_EXCEEDED, got %v", err)
	}
	if _, err := env.ledger.AdjustTx(env.ctx, tx, widget, loc, 10); err != nil {
		t.Fatalf("AdjustTx(+10) should fit exactly: %v", err)
	}
}

func TestLedger_SumOverLocationsEqualsWarehouseTotal(t *testing.T) {
	env := setupTestEnv(t)
	a := env.addLocation(t, mainWH, "A-01", 100)
	b := env.addLocation(t, mainWH, "A-02", 100)
	e := env.addLocation(t, eastWH, "E-01", 100)
	env.seedStock(t, widget, a, 12)
	env.seedStock(t, widget, b, 30)
	env.seedStock(t, widget, e, 99)

	total, err := env.ledger.GetTotalForWarehouse(env.ctx, widget, mainWH)
	if err != nil {
		t.Fatalf("GetTotalForWarehouse failed: %v", err)
	}
	if sum := env.qty(t, widget, a) + env.qty(t, widget, b); total != sum {
		t.Errorf("warehouse total %d != sum over locations %d", total, sum)
	}
	if total != 42 {
		t.Errorf("expected 42, got %d", total)
	}
	if q := env.qty(t, gadget, a); q != 0 {
		t.Errorf("never-stocked pair should read 0, got %d", q)
	}
}

func TestDocumentService_GaplessNumbers(t *testing.T) {
	env := setupTestEnv(t)

	for want := 1; want <= 3; want++ {
		tx, err := env.pool.Begin(env.ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		num, err := env.docs.NextNumberTx(env.ctx, tx, core.DocTypeGoodsReceipt, 2026)
		if err != nil {
			t.Fatalf("NextNumberTx failed: %v", err)
		}
		if num != core.FormatDocumentNumber("GR", 2026, int64(want)) {
			t.Errorf("expected GR number %d, got %s", want, num)
		}
		if err := tx.Commit(env.ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	// A rolled-back allocation does not leave a gap.
	tx, _ := env.pool.Begin(env.ctx)
	if _, err := env.docs.NextNumberTx(env.ctx, tx, core.DocTypeGoodsReceipt, 2026); err != nil {
		t.Fatalf("NextNumberTx failed: %v", err)
	}
	_ = tx.Rollback(env.ctx)

	last, err := env.docs.LastNumber(env.ctx, core.DocTypeGoodsReceipt, 2026)
	if err != nil {
		t.Fatalf("LastNumber failed: %v", err)
	}
	if last != 3 {
		t.Errorf("expected last number 3 after rollback, got %d", last)
	}
}

func TestMasterData_LocationCapacityMustBePositive(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := env.master.CreateLocation(env.ctx, mainWH, "BAD", 0); !core.IsCode(err, core.ErrCodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY, got %v", err)
	}
	if _, err := env.master.CreateLocation(env.ctx, 999, "X", 5); !core.IsCode(err, core.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown warehouse, got %v", err)
	}
	env.addLocation(t, mainWH, "A-01", 5)
	if _, err := env.master.CreateLocation(env.ctx, mainWH, "A-01", 5); !core.IsCode(err, core.ErrCodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for duplicate code, got %v", err)
	}

	p, err := env.master.CreateProduct(env.ctx, core.ProductInput{Code: "P-300", Name: "Bolt", SellPrice: decimal.NewFromInt(2)})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p.Unit != "unit" {
		t.Errorf("expected default unit, got %q", p.Unit)
	}
}
