package app

import (
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the input for creating a new product.
type CreateProductRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellPrice         decimal.Decimal `json:"sell_price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// CreatePartyRequest creates a warehouse, supplier or customer: all three carry only a code and a name.
type CreatePartyRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateLocationRequest is the input for adding a storage location to a warehouse.
type CreateLocationRequest struct {
	WarehouseID int    `json:"-"`
	Code        string `json:"code"`
	Capacity    int    `json:"capacity"`
}

// ProductQuantity is one (product, quantity) pair of an availability query.
type ProductQuantity struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// AvailabilityRequest asks whether the lines can be fulfilled from a warehouse by a date.
type AvailabilityRequest struct {
	WarehouseID int               `json:"warehouse_id"`
	AsOf        string            `json:"as_of"` // YYYY-MM-DD; empty means today
	Lines       []ProductQuantity `json:"lines"`
}

// PlacementRequest previews where incoming stock would be put away in a warehouse.
type PlacementRequest struct {
	WarehouseID int                  `json:"-"`
	Lines       []PlacementLineInput `json:"lines"`
}

// PlacementLineInput is one product to place. LocationID is an optional preference.
type PlacementLineInput struct {
	ProductID  int `json:"product_id"`
	LocationID int `json:"location_id,omitempty"`
	Quantity   int `json:"quantity"`
}

// OrderLineInput is a single line within an order or transfer request.
type OrderLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"` // absent or null means "use product default"
}

// CreatePurchaseOrderRequest is the input for creating a new purchase order.
type CreatePurchaseOrderRequest struct {
	ActorID      int              `json:"-"`
	SupplierID   int              `json:"supplier_id"`
	WarehouseID  int              `json:"warehouse_id"`
	ExpectedDate string           `json:"expected_date"` // YYYY-MM-DD
	Lines        []OrderLineInput `json:"lines"`
}

// CreateSalesOrderRequest is the input for creating a new sales order.
type CreateSalesOrderRequest struct {
	ActorID      int              `json:"-"`
	CustomerID   int              `json:"customer_id"`
	WarehouseID  int              `json:"warehouse_id"`
	ExpectedDate string           `json:"expected_date"` // YYYY-MM-DD
	Lines        []OrderLineInput `json:"lines"`
}

// CreateTransferRequest is the input for moving stock between two warehouses.
type CreateTransferRequest struct {
	ActorID                int              `json:"-"`
	SourceWarehouseID      int              `json:"source_warehouse_id"`
	DestinationWarehouseID int              `json:"destination_warehouse_id"`
	ExpectedDate           string           `json:"expected_date"` // YYYY-MM-DD
	Lines                  []OrderLineInput `json:"lines"`
}

// ReceiptLineInput is one product moved to or from a location.
type ReceiptLineInput struct {
	ProductID  int             `json:"product_id"`
	LocationID int             `json:"location_id"` // stock-in: preferred, 0 = any; stock-out: required
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"` // absent or null means "use the order line price"
}

// ReceiptRequest books a stock-in or stock-out against an order or transfer.
type ReceiptRequest struct {
	ActorID        int                `json:"-"`
	ParentID       int                `json:"-"`
	WarehouseID    int                `json:"warehouse_id"` // optional; defaults to the parent's warehouse
	IdempotencyKey string             `json:"-"`
	Lines          []ReceiptLineInput `json:"lines"`
}
