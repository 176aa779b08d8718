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

type salesOrderService struct {
	pool         *pgxpool.Pool
	docs         DocumentService
	availability AvailabilityService
	logger       *zap.Logger
	now          func() time.Time
}

func NewSalesOrderService(pool *pgxpool.Pool, docs DocumentService, availability AvailabilityService, logger *zap.Logger) SalesOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &salesOrderService{pool: pool, docs: docs, availability: availability, logger: logger, now: time.Now}
}

// CreateSalesOrder runs the availability check and the insert in one transaction. The check takes
// no locks, so a concurrent intake can still commit against the same stock; the stock-out step
// re-validates against live ledger rows.
func (s *salesOrderService) CreateSalesOrder(ctx context.Context, in CreateSalesOrderInput) (*SalesOrder, *AvailabilityReport, error) {
	if err := validateOrderLines(in.Lines); err != nil {
		return nil, nil, err
	}
	if in.ExpectedDate.IsZero() {
		return nil, nil, Newf(ErrCodeInvalidRequest, "expected date is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireRow(ctx, tx, "customers", in.CustomerID); err != nil {
		return nil, nil, err
	}

	report, err := s.availability.CheckAvailabilityTx(ctx, tx, in.WarehouseID, in.ExpectedDate, availabilityLines(in.Lines))
	if err != nil {
		return nil, nil, err
	}
	if !report.Valid {
		s.logger.Warn("sales order rejected by availability check",
			zap.Int("warehouseId", in.WarehouseID),
			zap.Int("customerId", in.CustomerID),
			zap.String("reason", report.Message))
		return nil, report, nil
	}

	priced, total, err := priceOrderLines(ctx, tx, in.Lines, "sell_price")
	if err != nil {
		return nil, nil, err
	}

	number, err := s.docs.NextNumberTx(ctx, tx, DocTypeSalesOrder, s.now().Year())
	if err != nil {
		return nil, nil, err
	}

	var orderID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO sales_orders (so_number, customer_id, warehouse_id, status, expected_date, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		number, in.CustomerID, in.WarehouseID, string(SOStatusPending), dateOnly(in.ExpectedDate), total, in.ActorID,
	).Scan(&orderID); err != nil {
		return nil, nil, dbError("insert sales order", err)
	}
	if err := insertOrderLines(ctx, tx, ParentSalesOrder, orderID, priced); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit sales order: %w", err)
	}

	s.logger.Info("sales order created",
		zap.Int("salesOrderId", orderID),
		zap.String("orderNumber", number),
		zap.Int("warehouseId", in.WarehouseID),
		zap.Int("actorId", in.ActorID))

	order, err := s.GetSalesOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, report, nil
}

func (s *salesOrderService) GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	var so SalesOrder
	err := s.pool.QueryRow(ctx, `
		SELECT so.id, so.so_number, so.customer_id, c.code, c.name, so.warehouse_id,
		       so.status, so.expected_date::text, so.total_amount, so.created_by, so.created_at, so.cancelled_at
		FROM sales_orders so
		JOIN customers c ON c.id = so.customer_id
		WHERE so.id = $1`, id,
	).Scan(&so.ID, &so.OrderNumber, &so.CustomerID, &so.CustomerCode, &so.CustomerName, &so.WarehouseID,
		&so.Status, &so.ExpectedDate, &so.TotalAmount, &so.CreatedBy, &so.CreatedAt, &so.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "sales order %d not found", id)
		}
		return nil, dbError("get sales order", err)
	}

	so.Lines, err = loadOrderLines(ctx, s.pool, ParentSalesOrder, id)
	if err != nil {
		return nil, err
	}
	return &so, nil
}

func (s *salesOrderService) ListSalesOrders(ctx context.Context, status SalesOrderStatus) ([]SalesOrder, error) {
	if status != "" && !status.Valid() {
		return nil, Newf(ErrCodeInvalidRequest, "unknown sales order status %q", status)
	}
	query := `
		SELECT so.id, so.so_number, so.customer_id, c.code, c.name, so.warehouse_id,
		       so.status, so.expected_date::text, so.total_amount, so.created_by, so.created_at, so.cancelled_at
		FROM sales_orders so
		JOIN customers c ON c.id = so.customer_id`
	args := []any{}
	if status != "" {
		query += " WHERE so.status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY so.created_at DESC, so.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list sales orders", err)
	}
	defer rows.Close()

	var orders []SalesOrder
	for rows.Next() {
		var so SalesOrder
		if err := rows.Scan(&so.ID, &so.OrderNumber, &so.CustomerID, &so.CustomerCode, &so.CustomerName, &so.WarehouseID,
			&so.Status, &so.ExpectedDate, &so.TotalAmount, &so.CreatedBy, &so.CreatedAt, &so.CancelledAt); err != nil {
			return nil, dbError("scan sales order", err)
		}
		orders = append(orders, so)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate sales orders", err)
	}
	return orders, nil
}

// CancelSalesOrder cancels a PENDING order. Nothing has shipped in PENDING, so no stock moves back.
func (s *salesOrderService) CancelSalesOrder(ctx context.Context, id, actorID int) (*SalesOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status SalesOrderStatus
	if err := tx.QueryRow(ctx,
		"SELECT status FROM sales_orders WHERE id = $1 FOR UPDATE", id,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "sales order %d not found", id)
		}
		return nil, dbError("lock sales order", err)
	}
	if status == SOStatusCancelled || !status.CanTransitionTo(SOStatusCancelled) {
		s.logger.Warn("sales order cancellation rejected",
			zap.Int("salesOrderId", id), zap.String("status", string(status)), zap.Int("actorId", actorID))
		return nil, Newf(ErrCodeIllegalStatusTransition,
			"sales order %d cannot be cancelled in status %s", id, status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales_orders SET status = $1, cancelled_at = NOW() WHERE id = $2",
		string(SOStatusCancelled), id,
	); err != nil {
		return nil, dbError("cancel sales order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	s.logger.Info("sales order cancelled", zap.Int("salesOrderId", id), zap.Int("actorId", actorID))
	return s.GetSalesOrder(ctx, id)
}
