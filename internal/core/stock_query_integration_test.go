package core_test

import (
	"testing"

	"warehouse-ledger/internal/core"
)

func TestStockQuery_LevelsAndOccupancy(t *testing.T) {
	env := setupTestEnv(t)
	a1 := env.addLocation(t, mainWH, "A-01", 100)
	a2 := env.addLocation(t, mainWH, "A-02", 50)
	e1 := env.addLocation(t, eastWH, "E-01", 100)
	env.seedStock(t, widget, a1, 30)
	env.seedStock(t, gadget, a1, 20)
	env.seedStock(t, widget, a2, 12)
	env.seedStock(t, widget, e1, 4)

	levels, err := env.stock.GetStock(env.ctx, widget, 0)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	byWH := map[int]int{}
	for _, l := range levels {
		if l.ProductID != widget {
			t.Errorf("unexpected product in filtered levels: %+v", l)
		}
		byWH[l.WarehouseID] = l.Quantity
	}
	if byWH[mainWH] != 42 || byWH[eastWH] != 4 {
		t.Errorf("expected widget totals MAIN=42 EAST=4, got %v", byWH)
	}

	all, err := env.stock.GetStock(env.ctx, 0, mainWH)
	if err != nil {
		t.Fatalf("GetStock all failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 products in MAIN, got %d", len(all))
	}

	occ, err := env.stock.GetLocationOccupancy(env.ctx, mainWH)
	if err != nil {
		t.Fatalf("GetLocationOccupancy failed: %v", err)
	}
	if len(occ) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(occ))
	}
	for _, o := range occ {
		switch o.LocationID {
		case a1:
			if o.Occupied != 50 || o.Remaining != 50 || len(o.Products) != 2 {
				t.Errorf("A-01: unexpected occupancy %+v", o)
			}
		case a2:
			if o.Occupied != 12 || o.Remaining != 38 {
				t.Errorf("A-02: unexpected occupancy %+v", o)
			}
		default:
			t.Errorf("location %d is not in MAIN", o.LocationID)
		}
	}

	records, err := env.stock.ListInventoryRecords(env.ctx, a1)
	if err != nil {
		t.Fatalf("ListInventoryRecords failed: %v", err)
	}
	if len(records) != 2 || records[0].ProductCode != "P-100" || records[0].Quantity != 30 {
		t.Errorf("unexpected records for A-01: %+v", records)
	}

	_, err = env.stock.ListInventoryRecords(env.ctx, 9999)
	if !core.IsCode(err, core.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing location, got %v", err)
	}
}

func TestStockQuery_LowStockSkipsZeroThreshold(t *testing.T) {
	env := setupTestEnv(t)
	a1 := env.addLocation(t, mainWH, "A-01", 100)
	env.seedStock(t, widget, a1, 5)
	env.seedStock(t, gadget, a1, 0)

	low, err := env.stock.ListLowStock(env.ctx, mainWH)
	if err != nil {
		t.Fatalf("ListLowStock failed: %v", err)
	}
	// Widget sits exactly at its threshold of 5; gadget has threshold 0 and is never listed.
	if len(low) != 1 || low[0].ProductID != widget || low[0].Threshold != 5 {
		t.Errorf("unexpected low stock list: %+v", low)
	}

	p, err := env.master.GetProduct(env.ctx, gadget)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p.Code != "P-200" || p.LowStockThreshold != 0 {
		t.Errorf("unexpected product: %+v", p)
	}
	if _, err := env.master.GetProduct(env.ctx, 9999); !core.IsCode(err, core.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestLocationAllocator_SuggestDoesNotWrite(t *testing.T) {
	env := setupTestEnv(t)
	a1 := env.addLocation(t, mainWH, "A-01", 200)
	a2 := env.addLocation(t, mainWH, "A-02", 100)
	env.seedStock(t, gadget, a1, 150)

	allocator := core.NewLocationAllocator(env.pool)
	placements, err := allocator.Suggest(env.ctx, mainWH, []core.PlacementRequest{
		{ProductID: gadget, LocationID: a1, Quantity: 80},
	})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(placements) != 2 ||
		placements[0].LocationID != a1 || placements[0].Quantity != 50 ||
		placements[1].LocationID != a2 || placements[1].Quantity != 30 {
		t.Errorf("expected 50 at A-01 and 30 at A-02, got %+v", placements)
	}
	if got := env.qty(t, gadget, a1); got != 150 {
		t.Errorf("Suggest must not move stock: A-01 holds %d", got)
	}

	_, err = allocator.Suggest(env.ctx, mainWH, []core.PlacementRequest{{ProductID: gadget, Quantity: 151}})
	if !core.IsCode(err, core.ErrCodeCapacityExceeded) {
		t.Errorf("expected CAPACITY_EXCEEDED, got %v", err)
	}
}
