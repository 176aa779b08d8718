package app

import "warehouse-ledger/internal/core"

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse `json:"warehouses"`
}

// LocationListResult is returned by ListLocations.
type LocationListResult struct {
	WarehouseID int             `json:"warehouse_id"`
	Locations   []core.Location `json:"locations"`
}

// OccupancyResult is returned by GetLocationOccupancy.
type OccupancyResult struct {
	WarehouseID int                      `json:"warehouse_id"`
	Locations   []core.LocationOccupancy `json:"locations"`
}

// InventoryRecordsResult is returned by ListInventoryRecords.
type InventoryRecordsResult struct {
	LocationID int                    `json:"location_id"`
	Records    []core.InventoryRecord `json:"records"`
}

// PlacementResult is returned by SuggestPlacement.
type PlacementResult struct {
	WarehouseID int              `json:"warehouse_id"`
	Placements  []core.Placement `json:"placements"`
}

// StockResult is returned by GetStock.
type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

// LowStockResult is returned by ListLowStock.
type LowStockResult struct {
	Items []core.LowStockItem `json:"items"`
}

// PurchaseOrderResult is returned by purchase order lifecycle operations.
type PurchaseOrderResult struct {
	PurchaseOrder *core.PurchaseOrder `json:"purchase_order"`
}

// PurchaseOrdersResult is returned by ListPurchaseOrders.
type PurchaseOrdersResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}

// SalesOrderResult is returned by sales order operations. On creation SalesOrder is nil when the
// availability check rejected the order; Availability then says why.
type SalesOrderResult struct {
	SalesOrder   *core.SalesOrder         `json:"sales_order,omitempty"`
	Availability *core.AvailabilityReport `json:"availability,omitempty"`
}

// SalesOrdersResult is returned by ListSalesOrders.
type SalesOrdersResult struct {
	SalesOrders []core.SalesOrder `json:"sales_orders"`
}

// TransferResult is returned by transfer operations. Like SalesOrderResult, Transfer is nil
// when creation was rejected by the availability check.
type TransferResult struct {
	Transfer     *core.Transfer           `json:"transfer,omitempty"`
	Availability *core.AvailabilityReport `json:"availability,omitempty"`
}

// TransfersResult is returned by ListTransfers.
type TransfersResult struct {
	Transfers []core.Transfer `json:"transfers"`
}

// ReceiptsResult is returned by ListReceipts.
type ReceiptsResult struct {
	Receipts []core.Receipt `json:"receipts"`
}

// Rejected reports whether creation was turned down by the availability check.
func (r *SalesOrderResult) Rejected() bool { return r.SalesOrder == nil && r.Availability != nil }

// Rejected reports whether creation was turned down by the availability check.
func (r *TransferResult) Rejected() bool { return r.Transfer == nil && r.Availability != nil }
