package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is an order to receive product into a warehouse from a supplier.
type PurchaseOrder struct {
	ID           int                 `json:"id"`
	PONumber     string              `json:"po_number"`
	SupplierID   int                 `json:"supplier_id"`
	SupplierCode string              `json:"supplier_code"` // joined from suppliers
	SupplierName string              `json:"supplier_name"` // joined from suppliers
	WarehouseID  int                 `json:"warehouse_id"`
	Status       PurchaseOrderStatus `json:"status"`
	ExpectedDate string              `json:"expected_date"` // YYYY-MM-DD
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	CreatedBy    int                 `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	CancelledAt  *time.Time          `json:"cancelled_at,omitempty"`
	Lines        []OrderLine         `json:"lines"`
}

// CreatePurchaseOrderInput carries a purchase order intake request.
type CreatePurchaseOrderInput struct {
	ActorID      int
	SupplierID   int
	WarehouseID  int
	ExpectedDate time.Time
	Lines        []OrderLineInput
}

// PurchaseOrderService provides purchase order lifecycle operations.
type PurchaseOrderService interface {
	// CreatePurchaseOrder persists an ORDERED purchase order, or READY_TO_RECEIVE when the
	// expected date is not in the future. No availability check applies to incoming goods.
	CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error)

	// GetPurchaseOrder returns the order with per-line received quantities.
	GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error)

	// ListPurchaseOrders promotes due ORDERED orders first, then lists.
	// An empty status returns all orders.
	ListPurchaseOrders(ctx context.Context, status PurchaseOrderStatus) ([]PurchaseOrder, error)

	// CancelPurchaseOrder is legal only while the order is ORDERED.
	CancelPurchaseOrder(ctx context.Context, id, actorID int) (*PurchaseOrder, error)

	// PromoteReadyToReceive moves every ORDERED order whose expected date is on or before asOf
	// to READY_TO_RECEIVE and returns how many changed. Idempotent.
	PromoteReadyToReceive(ctx context.Context, asOf time.Time) (int, error)
}
