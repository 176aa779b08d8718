package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warehouse-ledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type appService struct {
	pool         *pgxpool.Pool
	master       core.MasterDataService
	stock        core.StockQueryService
	availability core.AvailabilityService
	allocator    core.LocationAllocator
	purchases    core.PurchaseOrderService
	sales        core.SalesOrderService
	transfers    core.TransferService
	receipts     core.ReceiptService
	logger       *zap.Logger
	now          func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	master core.MasterDataService,
	stock core.StockQueryService,
	availability core.AvailabilityService,
	allocator core.LocationAllocator,
	purchases core.PurchaseOrderService,
	sales core.SalesOrderService,
	transfers core.TransferService,
	receipts core.ReceiptService,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		pool:         pool,
		master:       master,
		stock:        stock,
		availability: availability,
		allocator:    allocator,
		purchases:    purchases,
		sales:        sales,
		transfers:    transfers,
		receipts:     receipts,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *appService) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("no database pool configured")
	}
	return s.pool.Ping(ctx)
}

// parseDate parses a YYYY-MM-DD date. An empty string means today when allowEmpty is set.
func (s *appService) parseDate(field, value string, allowEmpty bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if allowEmpty {
			return s.now(), nil
		}
		return time.Time{}, core.Newf(core.ErrCodeInvalidRequest, "%s is required", field)
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, core.Newf(core.ErrCodeInvalidRequest, "%s must be YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}

func toCoreLines(in []OrderLineInput) []core.OrderLineInput {
	out := make([]core.OrderLineInput, len(in))
	for i, l := range in {
		out[i] = core.OrderLineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

func toReceiptLines(in []ReceiptLineInput) []core.ReceiptLineInput {
	out := make([]core.ReceiptLineInput, len(in))
	for i, l := range in {
		out[i] = core.ReceiptLineInput{ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

// ── Master data ──────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	return s.master.CreateProduct(ctx, core.ProductInput{
		Code:              req.Code,
		Name:              req.Name,
		Unit:              req.Unit,
		CostPrice:         req.CostPrice,
		SellPrice:         req.SellPrice,
		LowStockThreshold: req.LowStockThreshold,
	})
}

func (s *appService) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	return s.master.GetProduct(ctx, id)
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.master.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) CreateWarehouse(ctx context.Context, req CreatePartyRequest) (*core.Warehouse, error) {
	return s.master.CreateWarehouse(ctx, req.Code, req.Name)
}

func (s *appService) ListWarehouses(ctx context.Context) (*WarehouseListResult, error) {
	warehouses, err := s.master.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	return &WarehouseListResult{Warehouses: warehouses}, nil
}

func (s *appService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error) {
	return s.master.CreateLocation(ctx, req.WarehouseID, req.Code, req.Capacity)
}

func (s *appService) ListLocations(ctx context.Context, warehouseID int) (*LocationListResult, error) {
	locations, err := s.master.ListLocations(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	return &LocationListResult{WarehouseID: warehouseID, Locations: locations}, nil
}

func (s *appService) CreateSupplier(ctx context.Context, req CreatePartyRequest) (*core.Supplier, error) {
	return s.master.CreateSupplier(ctx, req.Code, req.Name)
}

func (s *appService) CreateCustomer(ctx context.Context, req CreatePartyRequest) (*core.Customer, error) {
	return s.master.CreateCustomer(ctx, req.Code, req.Name)
}

// ── Stock queries ────────────────────────────────────────────────────────────

func (s *appService) GetStock(ctx context.Context, productID, warehouseID int) (*StockResult, error) {
	levels, err := s.stock.GetStock(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) ListLowStock(ctx context.Context, warehouseID int) (*LowStockResult, error) {
	items, err := s.stock.ListLowStock(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	return &LowStockResult{Items: items}, nil
}

func (s *appService) GetLocationOccupancy(ctx context.Context, warehouseID int) (*OccupancyResult, error) {
	locations, err := s.stock.GetLocationOccupancy(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	return &OccupancyResult{WarehouseID: warehouseID, Locations: locations}, nil
}

func (s *appService) ListInventoryRecords(ctx context.Context, locationID int) (*InventoryRecordsResult, error) {
	records, err := s.stock.ListInventoryRecords(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return &InventoryRecordsResult{LocationID: locationID, Records: records}, nil
}

// SuggestPlacement previews a put-away without locking or writing. The result may be stale by the
// time goods arrive; the receipt plans again under lock.
func (s *appService) SuggestPlacement(ctx context.Context, req PlacementRequest) (*PlacementResult, error) {
	if len(req.Lines) == 0 {
		return nil, core.Newf(core.ErrCodeInvalidRequest, "at least one line is required")
	}
	requests := make([]core.PlacementRequest, len(req.Lines))
	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, core.Newf(core.ErrCodeInvalidQuantity, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		requests[i] = core.PlacementRequest{ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity}
	}
	placements, err := s.allocator.Suggest(ctx, req.WarehouseID, requests)
	if err != nil {
		return nil, err
	}
	return &PlacementResult{WarehouseID: req.WarehouseID, Placements: placements}, nil
}

func (s *appService) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*core.AvailabilityReport, error) {
	asOf, err := s.parseDate("as_of", req.AsOf, true)
	if err != nil {
		return nil, err
	}
	lines := make([]core.AvailabilityRequestLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.AvailabilityRequestLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return s.availability.CheckAvailability(ctx, req.WarehouseID, asOf, lines)
}

// ── Purchase orders ──────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	expected, err := s.parseDate("expected_date", req.ExpectedDate, false)
	if err != nil {
		return nil, err
	}
	po, err := s.purchases.CreatePurchaseOrder(ctx, core.CreatePurchaseOrderInput{
		ActorID:      req.ActorID,
		SupplierID:   req.SupplierID,
		WarehouseID:  req.WarehouseID,
		ExpectedDate: expected,
		Lines:        toCoreLines(req.Lines),
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrderResult, error) {
	po, err := s.purchases.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) ListPurchaseOrders(ctx context.Context, status string) (*PurchaseOrdersResult, error) {
	orders, err := s.purchases.ListPurchaseOrders(ctx, core.PurchaseOrderStatus(strings.ToUpper(status)))
	if err != nil {
		return nil, err
	}
	return &PurchaseOrdersResult{PurchaseOrders: orders}, nil
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, id, actorID int) (*PurchaseOrderResult, error) {
	po, err := s.purchases.CancelPurchaseOrder(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

func (s *appService) PromoteReadyToReceive(ctx context.Context) (int, error) {
	n, err := s.purchases.PromoteReadyToReceive(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purchase orders promoted to READY_TO_RECEIVE", zap.Int("count", n))
	}
	return n, nil
}

func (s *appService) ReceivePurchaseOrder(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error) {
	warehouseID := req.WarehouseID
	if warehouseID == 0 {
		po, err := s.purchases.GetPurchaseOrder(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		warehouseID = po.WarehouseID
	}
	return s.receipts.StockIn(ctx, core.StockInRequest{
		ParentType:     core.ParentPurchaseOrder,
		ParentID:       req.ParentID,
		WarehouseID:    warehouseID,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          toReceiptLines(req.Lines),
	})
}

// ── Sales orders ─────────────────────────────────────────────────────────────

func (s *appService) CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*SalesOrderResult, error) {
	expected, err := s.parseDate("expected_date", req.ExpectedDate, false)
	if err != nil {
		return nil, err
	}
	so, report, err := s.sales.CreateSalesOrder(ctx, core.CreateSalesOrderInput{
		ActorID:      req.ActorID,
		CustomerID:   req.CustomerID,
		WarehouseID:  req.WarehouseID,
		ExpectedDate: expected,
		Lines:        toCoreLines(req.Lines),
	})
	if err != nil {
		return nil, err
	}
	return &SalesOrderResult{SalesOrder: so, Availability: report}, nil
}

func (s *appService) GetSalesOrder(ctx context.Context, id int) (*SalesOrderResult, error) {
	so, err := s.sales.GetSalesOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SalesOrderResult{SalesOrder: so}, nil
}

func (s *appService) ListSalesOrders(ctx context.Context, status string) (*SalesOrdersResult, error) {
	orders, err := s.sales.ListSalesOrders(ctx, core.SalesOrderStatus(strings.ToUpper(status)))
	if err != nil {
		return nil, err
	}
	return &SalesOrdersResult{SalesOrders: orders}, nil
}

func (s *appService) CancelSalesOrder(ctx context.Context, id, actorID int) (*SalesOrderResult, error) {
	so, err := s.sales.CancelSalesOrder(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	return &SalesOrderResult{SalesOrder: so}, nil
}

func (s *appService) ShipSalesOrder(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error) {
	warehouseID := req.WarehouseID
	if warehouseID == 0 {
		so, err := s.sales.GetSalesOrder(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		warehouseID = so.WarehouseID
	}
	return s.receipts.StockOut(ctx, core.StockOutRequest{
		ParentType:     core.ParentSalesOrder,
		ParentID:       req.ParentID,
		WarehouseID:    warehouseID,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          toReceiptLines(req.Lines),
	})
}

// ── Transfers ────────────────────────────────────────────────────────────────

func (s *appService) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*TransferResult, error) {
	expected, err := s.parseDate("expected_date", req.ExpectedDate, false)
	if err != nil {
		return nil, err
	}
	t, report, err := s.transfers.CreateTransfer(ctx, core.CreateTransferInput{
		ActorID:                req.ActorID,
		SourceWarehouseID:      req.SourceWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		ExpectedDate:           expected,
		Lines:                  toCoreLines(req.Lines),
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: t, Availability: report}, nil
}

func (s *appService) GetTransfer(ctx context.Context, id int) (*TransferResult, error) {
	t, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: t}, nil
}

func (s *appService) ListTransfers(ctx context.Context, status string) (*TransfersResult, error) {
	transfers, err := s.transfers.ListTransfers(ctx, core.TransferStatus(strings.ToUpper(status)))
	if err != nil {
		return nil, err
	}
	return &TransfersResult{Transfers: transfers}, nil
}

func (s *appService) CancelTransfer(ctx context.Context, id, actorID int) (*TransferResult, error) {
	t, err := s.transfers.CancelTransfer(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: t}, nil
}

func (s *appService) ShipTransfer(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error) {
	warehouseID := req.WarehouseID
	if warehouseID == 0 {
		t, err := s.transfers.GetTransfer(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		warehouseID = t.SourceWarehouseID
	}
	return s.receipts.StockOut(ctx, core.StockOutRequest{
		ParentType:     core.ParentTransfer,
		ParentID:       req.ParentID,
		WarehouseID:    warehouseID,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          toReceiptLines(req.Lines),
	})
}

func (s *appService) ReceiveTransfer(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error) {
	warehouseID := req.WarehouseID
	if warehouseID == 0 {
		t, err := s.transfers.GetTransfer(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		warehouseID = t.DestinationWarehouseID
	}
	return s.receipts.StockIn(ctx, core.StockInRequest{
		ParentType:     core.ParentTransfer,
		ParentID:       req.ParentID,
		WarehouseID:    warehouseID,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          toReceiptLines(req.Lines),
	})
}

// ── Receipts ─────────────────────────────────────────────────────────────────

func (s *appService) GetReceipt(ctx context.Context, direction core.ReceiptDirection, id int) (*core.Receipt, error) {
	switch direction {
	case core.DirectionIn:
		return s.receipts.GetStockInReceipt(ctx, id)
	case core.DirectionOut:
		return s.receipts.GetStockOutReceipt(ctx, id)
	}
	return nil, core.Newf(core.ErrCodeInvalidRequest, "unknown receipt direction %q", direction)
}

func (s *appService) ListReceipts(ctx context.Context, parentType core.ReceiptParentType, parentID int) (*ReceiptsResult, error) {
	receipts, err := s.receipts.ListReceiptsForOrder(ctx, parentType, parentID)
	if err != nil {
		return nil, err
	}
	return &ReceiptsResult{Receipts: receipts}, nil
}
