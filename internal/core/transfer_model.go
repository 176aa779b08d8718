package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer moves product from one warehouse to another. Until receipts exist against it, it is
// pending outgoing stock for the source and expected incoming stock for the destination.
type Transfer struct {
	ID                     int             `json:"id"`
	TransferNumber         string          `json:"transfer_number"`
	SourceWarehouseID      int             `json:"source_warehouse_id"`
	DestinationWarehouseID int             `json:"destination_warehouse_id"`
	Status                 TransferStatus  `json:"status"`
	ExpectedDate           string          `json:"expected_date"` // YYYY-MM-DD
	TotalAmount            decimal.Decimal `json:"total_amount"`
	CreatedBy              int             `json:"created_by"`
	CreatedAt              time.Time       `json:"created_at"`
	CancelledAt            *time.Time      `json:"cancelled_at,omitempty"`
	Lines                  []OrderLine     `json:"lines"`
}

type CreateTransferInput struct {
	ActorID                int
	SourceWarehouseID      int
	DestinationWarehouseID int
	ExpectedDate           time.Time
	Lines                  []OrderLineInput
}

// TransferService handles intake and lifecycle of transfers. Shipping and receiving go through
// the ReceiptService with the transfer as parent.
type TransferService interface {
	// CreateTransfer checks availability on the source warehouse first; when any line is short
	// the report is returned with a nil transfer and nothing is persisted.
	CreateTransfer(ctx context.Context, in CreateTransferInput) (*Transfer, *AvailabilityReport, error)
	GetTransfer(ctx context.Context, id int) (*Transfer, error)
	ListTransfers(ctx context.Context, status TransferStatus) ([]Transfer, error)
	// CancelTransfer is legal only while the transfer is PENDING.
	CancelTransfer(ctx context.Context, id, actorID int) (*Transfer, error)
}
