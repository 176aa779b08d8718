package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type purchaseOrderService struct {
	pool   *pgxpool.Pool
	docs   DocumentService
	logger *zap.Logger
	now    func() time.Time
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool, docs DocumentService, logger *zap.Logger) PurchaseOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &purchaseOrderService{pool: pool, docs: docs, logger: logger, now: time.Now}
}

// CreatePurchaseOrder creates a purchase order with computed line totals and a gapless PO number.
func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error) {
	if err := validateOrderLines(in.Lines); err != nil {
		return nil, err
	}
	if in.ExpectedDate.IsZero() {
		return nil, Newf(ErrCodeInvalidRequest, "expected date is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireRow(ctx, tx, "suppliers", in.SupplierID); err != nil {
		return nil, err
	}
	if err := requireRow(ctx, tx, "warehouses", in.WarehouseID); err != nil {
		return nil, err
	}

	priced, total, err := priceOrderLines(ctx, tx, in.Lines, "cost_price")
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := POStatusOrdered
	if ShouldBecomeReadyToReceive(POStatusOrdered, in.ExpectedDate, now) {
		status = POStatusReadyToReceive
	}

	number, err := s.docs.NextNumberTx(ctx, tx, DocTypePurchaseOrder, now.Year())
	if err != nil {
		return nil, err
	}

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, supplier_id, warehouse_id, status, expected_date, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		number, in.SupplierID, in.WarehouseID, string(status), dateOnly(in.ExpectedDate), total, in.ActorID,
	).Scan(&poID); err != nil {
		return nil, dbError("insert purchase order", err)
	}
	if err := insertOrderLines(ctx, tx, ParentPurchaseOrder, poID, priced); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}

	s.logger.Info("purchase order created",
		zap.Int("purchaseOrderId", poID),
		zap.String("poNumber", number),
		zap.Int("warehouseId", in.WarehouseID),
		zap.String("status", string(status)),
		zap.Int("actorId", in.ActorID))
	return s.GetPurchaseOrder(ctx, poID)
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.pool.QueryRow(ctx, `
		SELECT po.id, po.po_number, po.supplier_id, sp.code, sp.name, po.warehouse_id,
		       po.status, po.expected_date::text, po.total_amount, po.created_by, po.created_at, po.cancelled_at
		FROM purchase_orders po
		JOIN suppliers sp ON sp.id = po.supplier_id
		WHERE po.id = $1`, id,
	).Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierCode, &po.SupplierName, &po.WarehouseID,
		&po.Status, &po.ExpectedDate, &po.TotalAmount, &po.CreatedBy, &po.CreatedAt, &po.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "purchase order %d not found", id)
		}
		return nil, dbError("get purchase order", err)
	}

	po.Lines, err = loadOrderLines(ctx, s.pool, ParentPurchaseOrder, id)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, status PurchaseOrderStatus) ([]PurchaseOrder, error) {
	if status != "" && !status.Valid() {
		return nil, Newf(ErrCodeInvalidRequest, "unknown purchase order status %q", status)
	}
	if _, err := s.PromoteReadyToReceive(ctx, s.now()); err != nil {
		return nil, err
	}

	query := `
		SELECT po.id, po.po_number, po.supplier_id, sp.code, sp.name, po.warehouse_id,
		       po.status, po.expected_date::text, po.total_amount, po.created_by, po.created_at, po.cancelled_at
		FROM purchase_orders po
		JOIN suppliers sp ON sp.id = po.supplier_id`
	args := []any{}
	if status != "" {
		query += " WHERE po.status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY po.created_at DESC, po.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list purchase orders", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierCode, &po.SupplierName, &po.WarehouseID,
			&po.Status, &po.ExpectedDate, &po.TotalAmount, &po.CreatedBy, &po.CreatedAt, &po.CancelledAt); err != nil {
			return nil, dbError("scan purchase order", err)
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate purchase orders", err)
	}
	return orders, nil
}

// CancelPurchaseOrder cancels an ORDERED purchase order. Any other status is rejected.
func (s *purchaseOrderService) CancelPurchaseOrder(ctx context.Context, id, actorID int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status PurchaseOrderStatus
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 FOR UPDATE", id,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "purchase order %d not found", id)
		}
		return nil, dbError("lock purchase order", err)
	}
	if status != POStatusOrdered || !status.CanTransitionTo(POStatusCancelled) {
		s.logger.Warn("purchase order cancellation rejected",
			zap.Int("purchaseOrderId", id), zap.String("status", string(status)), zap.Int("actorId", actorID))
		return nil, Newf(ErrCodeIllegalStatusTransition,
			"purchase order %d cannot be cancelled in status %s", id, status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1, cancelled_at = NOW() WHERE id = $2",
		string(POStatusCancelled), id,
	); err != nil {
		return nil, dbError("cancel purchase order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	s.logger.Info("purchase order cancelled", zap.Int("purchaseOrderId", id), zap.Int("actorId", actorID))
	return s.GetPurchaseOrder(ctx, id)
}

// PromoteReadyToReceive applies the time-based ORDERED → READY_TO_RECEIVE transition.
// Running it twice changes nothing the second time.
func (s *purchaseOrderService) PromoteReadyToReceive(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1
		WHERE status = $2 AND expected_date <= $3::date`,
		string(POStatusReadyToReceive), string(POStatusOrdered), dateOnly(asOf),
	)
	if err != nil {
		return 0, dbError("promote purchase orders", err)
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		s.logger.Info("purchase orders ready to receive", zap.Int("count", n), zap.String("asOf", dateOnly(asOf)))
	}
	return n, nil
}

// requireRow fails with NOT_FOUND when table has no row with the given id.
func requireRow(ctx context.Context, q pgxQuerier, table string, id int) error {
	var exists bool
	if err := q.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), id,
	).Scan(&exists); err != nil {
		return dbError("validate "+table, err)
	}
	if !exists {
		return Newf(ErrCodeNotFound, "%s %d not found", singular(table), id)
	}
	return nil
}

func singular(table string) string {
	switch table {
	case "suppliers":
		return "supplier"
	case "customers":
		return "customer"
	case "warehouses":
		return "warehouse"
	case "products":
		return "product"
	case "locations":
		return "location"
	}
	return table
}
