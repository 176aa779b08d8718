package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AvailabilityRequestLine is one (product, quantity) pair to check.
type AvailabilityRequestLine struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// AvailabilityLine is the projection for one product in one warehouse.
type AvailabilityLine struct {
	ProductID        int    `json:"product_id"`
	ProductCode      string `json:"product_code,omitempty"`
	Found            bool   `json:"found"`
	Requested        int    `json:"requested"`
	Current          int    `json:"current"`
	ExpectedIncoming int    `json:"expected_incoming"`
	PendingOutgoing  int    `json:"pending_outgoing"`
	Available        int    `json:"available"`
	IsAvailable      bool   `json:"is_available"`
}

// AvailabilityReport is valid only when every line is available. Message names the first failure.
type AvailabilityReport struct {
	WarehouseID int                `json:"warehouse_id"`
	AsOf        time.Time          `json:"as_of"`
	Valid       bool               `json:"valid"`
	Message     string             `json:"message,omitempty"`
	Lines       []AvailabilityLine `json:"lines"`
}

// Evaluate fills Available and IsAvailable from the three inputs.
func (l *AvailabilityLine) Evaluate() {
	l.Available = l.Current + l.ExpectedIncoming - l.PendingOutgoing
	l.IsAvailable = l.Found && l.Available >= l.Requested
}

// NewAvailabilityReport evaluates every line and sets the overall verdict.
func NewAvailabilityReport(warehouseID int, asOf time.Time, lines []AvailabilityLine) *AvailabilityReport {
	r := &AvailabilityReport{WarehouseID: warehouseID, AsOf: asOf, Valid: true, Lines: lines}
	for i := range r.Lines {
		l := &r.Lines[i]
		l.Evaluate()
		if l.IsAvailable || !r.Valid {
			continue
		}
		r.Valid = false
		if !l.Found {
			r.Message = fmt.Sprintf("product %d not found", l.ProductID)
		} else {
			r.Message = fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
				l.ProductCode, l.Available, l.Requested)
		}
	}
	return r
}

// Err converts an invalid report into an error coded after its first failing line.
func (r *AvailabilityReport) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	for _, l := range r.Lines {
		if l.IsAvailable {
			continue
		}
		if !l.Found {
			return Wrap(ErrCodeNotFound, r.Message, nil)
		}
		break
	}
	return Wrap(ErrCodeInsufficientStock, r.Message, nil)
}

// AvailabilityService projects net availability from the ledger and open orders and transfers.
// It never writes and never locks.
type AvailabilityService interface {
	CheckAvailability(ctx context.Context, warehouseID int, asOf time.Time, lines []AvailabilityRequestLine) (*AvailabilityReport, error)
	CheckAvailabilityTx(ctx context.Context, tx pgx.Tx, warehouseID int, asOf time.Time, lines []AvailabilityRequestLine) (*AvailabilityReport, error)
}

type availabilityService struct {
	pool *pgxpool.Pool
}

func NewAvailabilityService(pool *pgxpool.Pool) AvailabilityService {
	return &availabilityService{pool: pool}
}

// CheckAvailability reads from one repeatable-read snapshot so the four sums are consistent.
func (s *availabilityService) CheckAvailability(ctx context.Context, warehouseID int, asOf time.Time, lines []AvailabilityRequestLine) (*AvailabilityReport, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	report, err := checkAvailability(ctx, tx, warehouseID, asOf, lines)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit availability read: %w", err)
	}
	return report, nil
}

func (s *availabilityService) CheckAvailabilityTx(ctx context.Context, tx pgx.Tx, warehouseID int, asOf time.Time, lines []AvailabilityRequestLine) (*AvailabilityReport, error) {
	return checkAvailability(ctx, tx, warehouseID, asOf, lines)
}

func validateAvailabilityLines(lines []AvailabilityRequestLine) error {
	if len(lines) == 0 {
		return Newf(ErrCodeInvalidRequest, "at least one product line is required")
	}
	seen := map[int]bool{}
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Newf(ErrCodeInvalidQuantity, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if seen[l.ProductID] {
			return Newf(ErrCodeInvalidRequest, "line %d: product %d appears more than once", i+1, l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return nil
}

func checkAvailability(ctx context.Context, q pgxQuerier, warehouseID int, asOf time.Time, lines []AvailabilityRequestLine) (*AvailabilityReport, error) {
	if err := validateAvailabilityLines(lines); err != nil {
		return nil, err
	}

	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", warehouseID).Scan(&exists); err != nil {
		return nil, dbError("validate warehouse", err)
	}
	if !exists {
		return nil, Newf(ErrCodeNotFound, "warehouse %d not found", warehouseID)
	}

	out := make([]AvailabilityLine, 0, len(lines))
	for _, req := range lines {
		line := AvailabilityLine{ProductID: req.ProductID, Requested: req.Quantity}

		err := q.QueryRow(ctx, "SELECT code FROM products WHERE id = $1", req.ProductID).Scan(&line.ProductCode)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, dbError("resolve product", err)
		}
		line.Found = err == nil
		if line.Found {
			if err := projectProduct(ctx, q, warehouseID, asOf, &line); err != nil {
				return nil, err
			}
		}
		out = append(out, line)
	}
	return NewAvailabilityReport(warehouseID, asOf, out), nil
}

// projectProduct fills current, expected incoming and pending outgoing for one product.
// Orders and transfers only count while no receipt exists against them on the relevant side.
func projectProduct(ctx context.Context, q pgxQuerier, warehouseID int, asOf time.Time, line *AvailabilityLine) error {
	current, err := totalForWarehouse(ctx, q, line.ProductID, warehouseID)
	if err != nil {
		return err
	}
	line.Current = current

	asOfDate := asOf.Format("2006-01-02")

	var poIncoming, trIncoming int
	if err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(pol.quantity), 0)
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.order_id
		WHERE pol.product_id = $1
		  AND po.warehouse_id = $2
		  AND po.status = ANY($3::text[])
		  AND po.expected_date < $4::date
		  AND NOT EXISTS (
		      SELECT 1 FROM stock_in_receipts r
		      WHERE r.parent_type = 'PURCHASE_ORDER' AND r.parent_id = po.id)`,
		line.ProductID, warehouseID, purchaseOrdersAwaitingReceipt(), asOfDate,
	).Scan(&poIncoming); err != nil {
		return dbError("sum expected purchase receipts", err)
	}
	if err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(tl.quantity), 0)
		FROM transfer_lines tl
		JOIN transfers t ON t.id = tl.transfer_id
		WHERE tl.product_id = $1
		  AND t.destination_warehouse_id = $2
		  AND t.status = ANY($3::text[])
		  AND t.expected_date < $4::date
		  AND NOT EXISTS (
		      SELECT 1 FROM stock_in_receipts r
		      WHERE r.parent_type = 'TRANSFER' AND r.parent_id = t.id)`,
		line.ProductID, warehouseID, transfersAwaitingReceipt(), asOfDate,
	).Scan(&trIncoming); err != nil {
		return dbError("sum expected transfer receipts", err)
	}
	line.ExpectedIncoming = poIncoming + trIncoming

	var soOutgoing, trOutgoing int
	if err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(sol.quantity), 0)
		FROM sales_order_lines sol
		JOIN sales_orders so ON so.id = sol.order_id
		WHERE sol.product_id = $1
		  AND so.warehouse_id = $2
		  AND so.status = ANY($3::text[])
		  AND NOT EXISTS (
		      SELECT 1 FROM stock_out_receipts r
		      WHERE r.parent_type = 'SALES_ORDER' AND r.parent_id = so.id)`,
		line.ProductID, warehouseID, salesOrdersAwaitingShipment(),
	).Scan(&soOutgoing); err != nil {
		return dbError("sum pending sales shipments", err)
	}
	if err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(tl.quantity), 0)
		FROM transfer_lines tl
		JOIN transfers t ON t.id = tl.transfer_id
		WHERE tl.product_id = $1
		  AND t.source_warehouse_id = $2
		  AND t.status = ANY($3::text[])
		  AND NOT EXISTS (
		      SELECT 1 FROM stock_out_receipts r
		      WHERE r.parent_type = 'TRANSFER' AND r.parent_id = t.id)`,
		line.ProductID, warehouseID, transfersAwaitingShipment(),
	).Scan(&trOutgoing); err != nil {
		return dbError("sum pending transfer shipments", err)
	}
	line.PendingOutgoing = soOutgoing + trOutgoing
	return nil
}
