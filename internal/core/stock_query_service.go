package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StockQueryService is the read-only projection surface over the ledger.
type StockQueryService interface {
	// GetStock returns ledger totals per (product, warehouse). Zero ids mean "all".
	GetStock(ctx context.Context, productID, warehouseID int) ([]StockLevel, error)
	// ListLowStock returns products whose warehouse total is at or below their threshold.
	// Products with a zero threshold are never listed. Zero warehouseID means all warehouses.
	ListLowStock(ctx context.Context, warehouseID int) ([]LowStockItem, error)
	GetLocationOccupancy(ctx context.Context, warehouseID int) ([]LocationOccupancy, error)
	ListInventoryRecords(ctx context.Context, locationID int) ([]InventoryRecord, error)
}

type stockQueryService struct {
	pool *pgxpool.Pool
}

func NewStockQueryService(pool *pgxpool.Pool) StockQueryService {
	return &stockQueryService{pool: pool}
}

func (s *stockQueryService) GetStock(ctx context.Context, productID, warehouseID int) ([]StockLevel, error) {
	var where []string
	var args []any
	if productID != 0 {
		args = append(args, productID)
		where = append(where, fmt.Sprintf("p.id = $%d", len(args)))
	}
	if warehouseID != 0 {
		args = append(args, warehouseID)
		where = append(where, fmt.Sprintf("w.id = $%d", len(args)))
	}

	query := `
		SELECT p.id, p.code, p.name, w.id, w.code, COALESCE(SUM(ir.quantity), 0)
		FROM inventory_records ir
		JOIN products p   ON p.id = ir.product_id
		JOIN locations l  ON l.id = ir.location_id
		JOIN warehouses w ON w.id = l.warehouse_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += `
		GROUP BY p.id, p.code, p.name, w.id, w.code
		ORDER BY p.code, w.code`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("query stock levels", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductCode, &sl.ProductName,
			&sl.WarehouseID, &sl.WarehouseCode, &sl.Quantity); err != nil {
			return nil, dbError("scan stock level", err)
		}
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate stock levels", err)
	}
	return levels, nil
}

// ListLowStock also reports products that were never stocked in a warehouse (total 0).
func (s *stockQueryService) ListLowStock(ctx context.Context, warehouseID int) ([]LowStockItem, error) {
	query := `
		SELECT p.id AS product_id, p.code AS product_code, p.name AS product_name,
		       w.id AS warehouse_id, w.code AS warehouse_code,
		       COALESCE((SELECT SUM(ir.quantity)
		                 FROM inventory_records ir
		                 JOIN locations l ON l.id = ir.location_id
		                 WHERE ir.product_id = p.id AND l.warehouse_id = w.id), 0) AS qty,
		       p.low_stock_threshold
		FROM products p
		CROSS JOIN warehouses w
		WHERE p.low_stock_threshold > 0 AND w.is_active = true`
	var args []any
	if warehouseID != 0 {
		query += " AND w.id = $1"
		args = append(args, warehouseID)
	}
	query = "SELECT * FROM (" + query + ") t WHERE t.qty <= t.low_stock_threshold ORDER BY t.product_code, t.warehouse_code"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("query low stock", err)
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.ProductID, &it.ProductCode, &it.ProductName,
			&it.WarehouseID, &it.WarehouseCode, &it.Quantity, &it.Threshold); err != nil {
			return nil, dbError("scan low stock item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate low stock", err)
	}
	return items, nil
}

func (s *stockQueryService) GetLocationOccupancy(ctx context.Context, warehouseID int) ([]LocationOccupancy, error) {
	if err := requireRow(ctx, s.pool, "warehouses", warehouseID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.code, l.capacity,
		       ir.id, ir.product_id, p.code, ir.quantity, ir.updated_at
		FROM locations l
		LEFT JOIN inventory_records ir ON ir.location_id = l.id AND ir.quantity > 0
		LEFT JOIN products p ON p.id = ir.product_id
		WHERE l.warehouse_id = $1
		ORDER BY l.code, p.code`, warehouseID)
	if err != nil {
		return nil, dbError("query location occupancy", err)
	}
	defer rows.Close()

	var out []LocationOccupancy
	index := map[int]int{}
	for rows.Next() {
		var (
			locID, capacity int
			locCode         string
			recID, prodID   *int
			prodCode        *string
			qty             *int
			updatedAt       *time.Time
		)
		if err := rows.Scan(&locID, &locCode, &capacity, &recID, &prodID, &prodCode, &qty, &updatedAt); err != nil {
			return nil, dbError("scan location occupancy", err)
		}
		i, ok := index[locID]
		if !ok {
			i = len(out)
			index[locID] = i
			out = append(out, LocationOccupancy{LocationID: locID, LocationCode: locCode, Capacity: capacity,
				Products: []InventoryRecord{}})
		}
		if recID == nil {
			continue
		}
		rec := InventoryRecord{ID: *recID, ProductID: *prodID, ProductCode: *prodCode, LocationID: locID,
			Quantity: *qty, UpdatedAt: *updatedAt}
		out[i].Products = append(out[i].Products, rec)
		out[i].Occupied += rec.Quantity
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate location occupancy", err)
	}
	for i := range out {
		out[i].Remaining = max(out[i].Capacity-out[i].Occupied, 0)
	}
	return out, nil
}

func (s *stockQueryService) ListInventoryRecords(ctx context.Context, locationID int) ([]InventoryRecord, error) {
	if err := requireRow(ctx, s.pool, "locations", locationID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT ir.id, ir.product_id, p.code, ir.location_id, ir.quantity, ir.updated_at
		FROM inventory_records ir
		JOIN products p ON p.id = ir.product_id
		WHERE ir.location_id = $1
		ORDER BY p.code`, locationID)
	if err != nil {
		return nil, dbError("query inventory records", err)
	}
	defer rows.Close()

	var out []InventoryRecord
	for rows.Next() {
		var r InventoryRecord
		if err := rows.Scan(&r.ID, &r.ProductID, &r.ProductCode, &r.LocationID, &r.Quantity, &r.UpdatedAt); err != nil {
			return nil, dbError("scan inventory record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate inventory records", err)
	}
	return out, nil
}
