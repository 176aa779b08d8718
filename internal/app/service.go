package app

import (
	"context"

	"warehouse-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// ── Master data ──────────────────────────────────────────────────────────

	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)
	GetProduct(ctx context.Context, id int) (*core.Product, error)
	ListProducts(ctx context.Context) (*ProductListResult, error)
	CreateWarehouse(ctx context.Context, req CreatePartyRequest) (*core.Warehouse, error)
	ListWarehouses(ctx context.Context) (*WarehouseListResult, error)

	// CreateLocation adds a location with a positive capacity to a warehouse.
	CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error)
	ListLocations(ctx context.Context, warehouseID int) (*LocationListResult, error)
	CreateSupplier(ctx context.Context, req CreatePartyRequest) (*core.Supplier, error)
	CreateCustomer(ctx context.Context, req CreatePartyRequest) (*core.Customer, error)

	// ── Stock queries ────────────────────────────────────────────────────────

	// GetStock returns ledger totals per product and warehouse. Zero ids mean "all".
	GetStock(ctx context.Context, productID, warehouseID int) (*StockResult, error)
	ListLowStock(ctx context.Context, warehouseID int) (*LowStockResult, error)
	GetLocationOccupancy(ctx context.Context, warehouseID int) (*OccupancyResult, error)
	ListInventoryRecords(ctx context.Context, locationID int) (*InventoryRecordsResult, error)
	SuggestPlacement(ctx context.Context, req PlacementRequest) (*PlacementResult, error)

	// CheckAvailability projects current + expected incoming − pending outgoing for each line.
	CheckAvailability(ctx context.Context, req AvailabilityRequest) (*core.AvailabilityReport, error)

	// ── Purchase orders ──────────────────────────────────────────────────────

	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)
	GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrderResult, error)
	// ListPurchaseOrders promotes due orders to READY_TO_RECEIVE before listing.
	ListPurchaseOrders(ctx context.Context, status string) (*PurchaseOrdersResult, error)
	CancelPurchaseOrder(ctx context.Context, id, actorID int) (*PurchaseOrderResult, error)
	// PromoteReadyToReceive runs the READY_TO_RECEIVE sweep for today and returns the number promoted.
	PromoteReadyToReceive(ctx context.Context) (int, error)
	// ReceivePurchaseOrder books a stock-in against a READY_TO_RECEIVE or PARTIALLY_RECEIVED order.
	ReceivePurchaseOrder(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error)

	// ── Sales orders ─────────────────────────────────────────────────────────

	// CreateSalesOrder returns a result with a nil SalesOrder when availability rejected it.
	CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*SalesOrderResult, error)
	GetSalesOrder(ctx context.Context, id int) (*SalesOrderResult, error)
	ListSalesOrders(ctx context.Context, status string) (*SalesOrdersResult, error)
	CancelSalesOrder(ctx context.Context, id, actorID int) (*SalesOrderResult, error)
	// ShipSalesOrder books a stock-out against a PENDING or PARTIAL order.
	ShipSalesOrder(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error)

	// ── Transfers ────────────────────────────────────────────────────────────

	// CreateTransfer returns a result with a nil Transfer when availability at the source rejected it.
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*TransferResult, error)
	GetTransfer(ctx context.Context, id int) (*TransferResult, error)
	ListTransfers(ctx context.Context, status string) (*TransfersResult, error)
	CancelTransfer(ctx context.Context, id, actorID int) (*TransferResult, error)
	// ShipTransfer books a stock-out from the source warehouse.
	ShipTransfer(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error)
	// ReceiveTransfer books a stock-in into the destination warehouse.
	ReceiveTransfer(ctx context.Context, req ReceiptRequest) (*core.ReceiptResult, error)

	// ── Receipts ─────────────────────────────────────────────────────────────

	GetReceipt(ctx context.Context, direction core.ReceiptDirection, id int) (*core.Receipt, error)
	ListReceipts(ctx context.Context, parentType core.ReceiptParentType, parentID int) (*ReceiptsResult, error)
}
