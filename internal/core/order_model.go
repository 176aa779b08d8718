package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLineInput is one requested line of a purchase order, sales order or transfer.
// An unset UnitPrice takes the product's default price (cost price for purchases and
// transfers, sell price for sales). An explicit zero is recorded as zero.
type OrderLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
}

// OrderLine is a persisted order line together with how much of it has moved.
type OrderLine struct {
	ID          int             `json:"id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"` // joined from products
	ProductName string          `json:"product_name"` // joined from products
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Shipped     int             `json:"shipped"`
	Received    int             `json:"received"`
}

// Progress converts the line into the input of the status derivation functions.
func (l OrderLine) Progress() LineProgress {
	return LineProgress{ProductID: l.ProductID, Ordered: l.Quantity, Shipped: l.Shipped, Received: l.Received}
}

func linesProgress(lines []OrderLine) []LineProgress {
	out := make([]LineProgress, len(lines))
	for i, l := range lines {
		out[i] = l.Progress()
	}
	return out
}

// SalesOrder is an order to ship product out of a warehouse to a customer.
// Status progresses through the state machine:
//
//	PENDING → PARTIAL → COMPLETED
//	PENDING → CANCELLED
type SalesOrder struct {
	ID           int              `json:"id"`
	OrderNumber  string           `json:"order_number"`
	CustomerID   int              `json:"customer_id"`
	CustomerCode string           `json:"customer_code"` // joined from customers
	CustomerName string           `json:"customer_name"` // joined from customers
	WarehouseID  int              `json:"warehouse_id"`
	Status       SalesOrderStatus `json:"status"`
	ExpectedDate string           `json:"expected_date"` // YYYY-MM-DD
	TotalAmount  decimal.Decimal  `json:"total_amount"`
	CreatedBy    int              `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
	Lines        []OrderLine      `json:"lines"`
}

// CreateSalesOrderInput carries an order intake request. ActorID is resolved by the caller.
type CreateSalesOrderInput struct {
	ActorID      int
	CustomerID   int
	WarehouseID  int
	ExpectedDate time.Time
	Lines        []OrderLineInput
}

// SalesOrderService provides sales order intake and lifecycle operations.
type SalesOrderService interface {
	// CreateSalesOrder checks availability first. When any line is unavailable the report is
	// returned with a nil order and nothing is persisted.
	CreateSalesOrder(ctx context.Context, in CreateSalesOrderInput) (*SalesOrder, *AvailabilityReport, error)
	GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error)
	// ListSalesOrders filters by status; an empty status returns all orders.
	ListSalesOrders(ctx context.Context, status SalesOrderStatus) ([]SalesOrder, error)
	// CancelSalesOrder is legal only while the order is PENDING.
	CancelSalesOrder(ctx context.Context, id, actorID int) (*SalesOrder, error)
}

// validateOrderLines checks the shape shared by every order intake.
func validateOrderLines(lines []OrderLineInput) error {
	if len(lines) == 0 {
		return Newf(ErrCodeInvalidRequest, "order must have at least one line")
	}
	seen := make(map[int]bool, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Newf(ErrCodeInvalidQuantity, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if l.UnitPrice.Valid && l.UnitPrice.Decimal.IsNegative() {
			return Newf(ErrCodeInvalidRequest, "line %d: unit price cannot be negative, got %s", i+1, l.UnitPrice.Decimal)
		}
		if seen[l.ProductID] {
			return Newf(ErrCodeInvalidRequest, "line %d: product %d appears more than once", i+1, l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return nil
}

func availabilityLines(lines []OrderLineInput) []AvailabilityRequestLine {
	out := make([]AvailabilityRequestLine, len(lines))
	for i, l := range lines {
		out[i] = AvailabilityRequestLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}
