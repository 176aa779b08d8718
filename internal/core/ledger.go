package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService is the quantity-on-hand store keyed by (product, location).
// Every mutation goes through AdjustTx inside the caller's transaction.
type LedgerService interface {
	GetQuantity(ctx context.Context, productID, locationID int) (int, error)
	GetTotalForWarehouse(ctx context.Context, productID, warehouseID int) (int, error)

	// GetQuantityTx reads the row with FOR UPDATE so concurrent stock-outs serialize on it.
	GetQuantityTx(ctx context.Context, tx pgx.Tx, productID, locationID int) (int, error)
	GetTotalForWarehouseTx(ctx context.Context, tx pgx.Tx, productID, warehouseID int) (int, error)
	// AdjustTx applies delta and returns the new quantity. Positive deltas are bounded by the
	// location's capacity; a result below zero fails with NEGATIVE_STOCK.
	AdjustTx(ctx context.Context, tx pgx.Tx, productID, locationID, delta int) (int, error)
}

type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (l *Ledger) GetQuantity(ctx context.Context, productID, locationID int) (int, error) {
	return quantityAt(ctx, l.pool, productID, locationID, false)
}

func (l *Ledger) GetTotalForWarehouse(ctx context.Context, productID, warehouseID int) (int, error) {
	return totalForWarehouse(ctx, l.pool, productID, warehouseID)
}

func (l *Ledger) GetQuantityTx(ctx context.Context, tx pgx.Tx, productID, locationID int) (int, error) {
	return quantityAt(ctx, tx, productID, locationID, true)
}

func (l *Ledger) GetTotalForWarehouseTx(ctx context.Context, tx pgx.Tx, productID, warehouseID int) (int, error) {
	return totalForWarehouse(ctx, tx, productID, warehouseID)
}

func (l *Ledger) AdjustTx(ctx context.Context, tx pgx.Tx, productID, locationID, delta int) (int, error) {
	if delta == 0 {
		return 0, Newf(ErrCodeInvalidQuantity, "ledger adjustment must be non-zero")
	}
	if delta > 0 {
		return l.increaseTx(ctx, tx, productID, locationID, delta)
	}
	return l.decreaseTx(ctx, tx, productID, locationID, -delta)
}

func (l *Ledger) increaseTx(ctx context.Context, tx pgx.Tx, productID, locationID, qty int) (int, error) {
	// Lock the location so two stock-ins cannot both see the same spare capacity.
	// NO KEY UPDATE leaves foreign-key checks from concurrent stock-outs unblocked.
	var capacity int
	if err := tx.QueryRow(ctx,
		"SELECT capacity FROM locations WHERE id = $1 FOR NO KEY UPDATE", locationID,
	).Scan(&capacity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, Newf(ErrCodeNotFound, "location %d not found", locationID)
		}
		return 0, dbError("lock location", err)
	}

	var occupied int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_records WHERE location_id = $1", locationID,
	).Scan(&occupied); err != nil {
		return 0, dbError("read location occupancy", err)
	}
	if occupied+qty > capacity {
		return 0, Newf(ErrCodeCapacityExceeded,
			"location %d holds %d of %d, cannot add %d", locationID, occupied, capacity, qty)
	}

	var newQty int
	err := tx.QueryRow(ctx, `
		INSERT INTO inventory_records (product_id, location_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET quantity = inventory_records.quantity + EXCLUDED.quantity,
		              updated_at = NOW()
		RETURNING quantity`,
		productID, locationID, qty,
	).Scan(&newQty)
	if err != nil {
		return 0, dbError(fmt.Sprintf("increase stock of product %d at location %d", productID, locationID), err)
	}
	return newQty, nil
}

func (l *Ledger) decreaseTx(ctx context.Context, tx pgx.Tx, productID, locationID, qty int) (int, error) {
	current, err := quantityAt(ctx, tx, productID, locationID, true)
	if err != nil {
		return 0, err
	}
	if current-qty < 0 {
		return 0, Newf(ErrCodeNegativeStock,
			"product %d at location %d: on hand %d, decrement %d", productID, locationID, current, qty)
	}

	var newQty int
	err = tx.QueryRow(ctx, `
		UPDATE inventory_records
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE product_id = $1 AND location_id = $2
		RETURNING quantity`,
		productID, locationID, qty,
	).Scan(&newQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, Newf(ErrCodeNegativeStock,
				"product %d has no ledger row at location %d", productID, locationID)
		}
		return 0, dbError(fmt.Sprintf("decrease stock of product %d at location %d", productID, locationID), err)
	}
	return newQty, nil
}

// quantityAt returns 0 for a (product, location) pair that has never been stocked.
func quantityAt(ctx context.Context, q pgxQuerier, productID, locationID int, forUpdate bool) (int, error) {
	query := "SELECT quantity FROM inventory_records WHERE product_id = $1 AND location_id = $2"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var qty int
	if err := q.QueryRow(ctx, query, productID, locationID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, dbError("read ledger quantity", err)
	}
	return qty, nil
}

func totalForWarehouse(ctx context.Context, q pgxQuerier, productID, warehouseID int) (int, error) {
	var total int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(ir.quantity), 0)
		FROM inventory_records ir
		JOIN locations l ON l.id = ir.location_id
		WHERE ir.product_id = $1 AND l.warehouse_id = $2`,
		productID, warehouseID,
	).Scan(&total)
	if err != nil {
		return 0, dbError("read warehouse total", err)
	}
	return total, nil
}
