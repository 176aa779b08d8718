package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlacementRequest asks for qty units of a product to be placed in a warehouse.
// LocationID is the preferred location; 0 lets the allocator choose.
type PlacementRequest struct {
	ProductID  int
	LocationID int
	Quantity   int
}

// Placement is one planned (product, location, quantity) write.
// Line is the index of the PlacementRequest it satisfies.
type Placement struct {
	Line       int `json:"line"`
	ProductID  int `json:"product_id"`
	LocationID int `json:"location_id"`
	Quantity   int `json:"quantity"`
}

// LocationAllocator plans where incoming stock goes, honoring per-location capacity.
type LocationAllocator interface {
	// Suggest previews a placement against live ledger state without locking or writing anything.
	Suggest(ctx context.Context, warehouseID int, requests []PlacementRequest) ([]Placement, error)
	// PlanTx locks the warehouse's locations and plans every request in a single pass.
	// The plan is only valid inside tx; the caller applies it with Ledger.AdjustTx before committing.
	PlanTx(ctx context.Context, tx pgx.Tx, warehouseID int, requests []PlacementRequest) ([]Placement, error)
}

type locationAllocator struct {
	pool *pgxpool.Pool
}

func NewLocationAllocator(pool *pgxpool.Pool) LocationAllocator {
	return &locationAllocator{pool: pool}
}

func (a *locationAllocator) Suggest(ctx context.Context, warehouseID int, requests []PlacementRequest) ([]Placement, error) {
	slots, err := loadLocationSlots(ctx, a.pool, warehouseID, false)
	if err != nil {
		return nil, err
	}
	return planPlacements(warehouseID, slots, requests)
}

func (a *locationAllocator) PlanTx(ctx context.Context, tx pgx.Tx, warehouseID int, requests []PlacementRequest) ([]Placement, error) {
	slots, err := loadLocationSlots(ctx, tx, warehouseID, true)
	if err != nil {
		return nil, err
	}
	return planPlacements(warehouseID, slots, requests)
}

// planPlacements runs every request through one AllocationPass so that lines of the same
// receipt never claim the same capacity twice.
func planPlacements(warehouseID int, slots []LocationSlot, requests []PlacementRequest) ([]Placement, error) {
	pass := NewAllocationPass(slots)
	var out []Placement
	for i, r := range requests {
		if r.LocationID != 0 && !pass.Has(r.LocationID) {
			return nil, Newf(ErrCodeNotFound,
				"line %d: location %d is not an active location of warehouse %d", i+1, r.LocationID, warehouseID)
		}
		allocs, err := pass.Allocate(r.ProductID, r.LocationID, r.Quantity)
		if err != nil {
			return nil, Wrap(CodeOf(err), fmt.Sprintf("line %d: product %d", i+1, r.ProductID), err)
		}
		for _, al := range allocs {
			out = append(out, Placement{Line: i, ProductID: r.ProductID, LocationID: al.LocationID, Quantity: al.Quantity})
		}
	}
	return out, nil
}

// loadLocationSlots reads the capacity snapshot of a warehouse. With lock set, location rows are
// taken FOR NO KEY UPDATE in id order, which is the lock order every stock-in follows. That mode
// serializes stock-ins against each other but still lets a concurrent stock-out take the
// KEY SHARE lock its detail row's foreign key needs.
func loadLocationSlots(ctx context.Context, q pgxQuerier, warehouseID int, lock bool) ([]LocationSlot, error) {
	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1 AND is_active = true)", warehouseID,
	).Scan(&exists); err != nil {
		return nil, dbError("validate warehouse", err)
	}
	if !exists {
		return nil, Newf(ErrCodeNotFound, "warehouse %d not found", warehouseID)
	}

	query := `
		SELECT id, code, capacity
		FROM locations
		WHERE warehouse_id = $1 AND is_active = true
		ORDER BY id`
	if lock {
		query += " FOR NO KEY UPDATE"
	}
	rows, err := q.Query(ctx, query, warehouseID)
	if err != nil {
		return nil, dbError("query locations", err)
	}
	var slots []LocationSlot
	index := map[int]int{}
	for rows.Next() {
		var s LocationSlot
		if err := rows.Scan(&s.LocationID, &s.Code, &s.Capacity); err != nil {
			rows.Close()
			return nil, dbError("scan location", err)
		}
		index[s.LocationID] = len(slots)
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate locations", err)
	}

	stock, err := q.Query(ctx, `
		SELECT ir.location_id, ir.product_id, ir.quantity
		FROM inventory_records ir
		JOIN locations l ON l.id = ir.location_id
		WHERE l.warehouse_id = $1 AND ir.quantity > 0`,
		warehouseID,
	)
	if err != nil {
		return nil, dbError("query location stock", err)
	}
	defer stock.Close()
	for stock.Next() {
		var locationID, productID, qty int
		if err := stock.Scan(&locationID, &productID, &qty); err != nil {
			return nil, dbError("scan location stock", err)
		}
		i, ok := index[locationID]
		if !ok {
			continue
		}
		slots[i].Occupied += qty
		slots[i].Products = append(slots[i].Products, productID)
	}
	if err := stock.Err(); err != nil {
		return nil, dbError("iterate location stock", err)
	}
	return slots, nil
}
