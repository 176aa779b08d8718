package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptParentType names the kind of order a receipt books against.
type ReceiptParentType string

const (
	ParentPurchaseOrder ReceiptParentType = "PURCHASE_ORDER"
	ParentSalesOrder    ReceiptParentType = "SALES_ORDER"
	ParentTransfer      ReceiptParentType = "TRANSFER"
)

// ReceiptDirection distinguishes goods arriving from goods leaving.
type ReceiptDirection string

const (
	DirectionIn  ReceiptDirection = "IN"
	DirectionOut ReceiptDirection = "OUT"
)

// ReceiptLineInput is one requested movement. For stock-in LocationID is the preferred
// destination (0 lets the allocator choose); for stock-out it is the required source.
// An unset UnitPrice takes the parent order line's price.
type ReceiptLineInput struct {
	ProductID  int             `json:"product_id"`
	LocationID int             `json:"location_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
}

// StockInRequest books goods arriving against a purchase order or the receiving side of a transfer.
type StockInRequest struct {
	ParentType     ReceiptParentType
	ParentID       int
	WarehouseID    int
	ActorID        int
	IdempotencyKey string
	Lines          []ReceiptLineInput
}

// StockOutRequest books goods leaving against a sales order or the shipping side of a transfer.
type StockOutRequest struct {
	ParentType     ReceiptParentType
	ParentID       int
	WarehouseID    int
	ActorID        int
	IdempotencyKey string
	Lines          []ReceiptLineInput
}

// Receipt is an immutable stock-in or stock-out record.
type Receipt struct {
	ID            int               `json:"id"`
	Direction     ReceiptDirection  `json:"direction"`
	ReceiptNumber string            `json:"receipt_number"`
	ParentType    ReceiptParentType `json:"parent_type"`
	ParentID      int               `json:"parent_id"`
	WarehouseID   int               `json:"warehouse_id"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	CreatedBy     int               `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	Details       []ReceiptDetail   `json:"details"`
}

// ReceiptDetail is one line of a receipt: a product moved to or from one location.
type ReceiptDetail struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	LocationID  int             `json:"location_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ReceiptResult is what a receipt intake returns to the caller.
type ReceiptResult struct {
	ReceiptID     int    `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	// ParentStatus is the recomputed status of the order or transfer.
	ParentStatus string `json:"parent_status"`
	// Replayed is set when the idempotency key matched an earlier receipt and nothing moved.
	Replayed bool            `json:"replayed"`
	Details  []ReceiptDetail `json:"details"`
}

// ReceiptService is the only writer of the inventory ledger. Each call is one transaction.
type ReceiptService interface {
	StockIn(ctx context.Context, req StockInRequest) (*ReceiptResult, error)
	StockOut(ctx context.Context, req StockOutRequest) (*ReceiptResult, error)

	GetStockInReceipt(ctx context.Context, id int) (*Receipt, error)
	GetStockOutReceipt(ctx context.Context, id int) (*Receipt, error)
	// ListReceiptsForOrder returns stock-in and stock-out receipts of a parent, oldest first.
	ListReceiptsForOrder(ctx context.Context, parentType ReceiptParentType, parentID int) ([]Receipt, error)
}

func validateReceiptLines(lines []ReceiptLineInput, requireLocation bool) error {
	if len(lines) == 0 {
		return Newf(ErrCodeInvalidRequest, "receipt must have at least one line")
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Newf(ErrCodeInvalidQuantity, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if l.UnitPrice.Valid && l.UnitPrice.Decimal.IsNegative() {
			return Newf(ErrCodeInvalidRequest, "line %d: unit price cannot be negative", i+1)
		}
		if requireLocation && l.LocationID == 0 {
			return Newf(ErrCodeInvalidRequest, "line %d: location is required", i+1)
		}
	}
	return nil
}
