package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stockable item. Rows are never deleted once an order or receipt references them.
type Product struct {
	ID                int             `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellPrice         decimal.Decimal `json:"sell_price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Warehouse is a physical site holding one or more storage locations.
type Warehouse struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a storage slot inside exactly one warehouse.
// Capacity bounds the sum of all products' quantities stored there.
type Location struct {
	ID          int       `json:"id"`
	WarehouseID int       `json:"warehouse_id"`
	Code        string    `json:"code"`
	Capacity    int       `json:"capacity"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventoryRecord is one ledger row: the quantity of a product on hand at a location.
type InventoryRecord struct {
	ID          int       `json:"id"`
	ProductID   int       `json:"product_id"`
	ProductCode string    `json:"product_code"`
	LocationID  int       `json:"location_id"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Supplier is the counterparty of a purchase order.
type Supplier struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is the counterparty of a sales order.
type Customer struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductInput holds the fields required to create a product.
type ProductInput struct {
	Code              string
	Name              string
	Unit              string
	CostPrice         decimal.Decimal
	SellPrice         decimal.Decimal
	LowStockThreshold int
}

// ── Stock views ───────────────────────────────────────────────────────────────

// StockLevel is the ledger total of one product in one warehouse.
type StockLevel struct {
	ProductID     int    `json:"product_id"`
	ProductCode   string `json:"product_code"`
	ProductName   string `json:"product_name"`
	WarehouseID   int    `json:"warehouse_id"`
	WarehouseCode string `json:"warehouse_code"`
	Quantity      int    `json:"quantity"`
}

// LowStockItem is a product whose warehouse total is at or below its threshold.
type LowStockItem struct {
	StockLevel
	Threshold int `json:"threshold"`
}

// LocationOccupancy describes how full a location is.
type LocationOccupancy struct {
	LocationID   int               `json:"location_id"`
	LocationCode string            `json:"location_code"`
	Capacity     int               `json:"capacity"`
	Occupied     int               `json:"occupied"`
	Remaining    int               `json:"remaining"`
	Products     []InventoryRecord `json:"products"`
}
