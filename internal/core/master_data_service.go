package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MasterDataService manages products, warehouses, locations, suppliers and customers.
// Nothing here is ever deleted: rows referenced by orders or receipts are history.
type MasterDataService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	CreateWarehouse(ctx context.Context, code, name string) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)

	CreateLocation(ctx context.Context, warehouseID int, code string, capacity int) (*Location, error)
	ListLocations(ctx context.Context, warehouseID int) ([]Location, error)

	CreateSupplier(ctx context.Context, code, name string) (*Supplier, error)
	CreateCustomer(ctx context.Context, code, name string) (*Customer, error)
}

type masterDataService struct {
	pool *pgxpool.Pool
}

// NewMasterDataService constructs a MasterDataService backed by PostgreSQL.
func NewMasterDataService(pool *pgxpool.Pool) MasterDataService {
	return &masterDataService{pool: pool}
}

func requireCodeAndName(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return Newf(ErrCodeInvalidRequest, "code is required")
	}
	if strings.TrimSpace(name) == "" {
		return Newf(ErrCodeInvalidRequest, "name is required")
	}
	return nil
}

func (s *masterDataService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := requireCodeAndName(input.Code, input.Name); err != nil {
		return nil, err
	}
	if input.CostPrice.IsNegative() || input.SellPrice.IsNegative() {
		return nil, Newf(ErrCodeInvalidRequest, "prices cannot be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, Newf(ErrCodeInvalidQuantity, "low stock threshold cannot be negative")
	}
	unit := input.Unit
	if unit == "" {
		unit = "unit"
	}

	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (code, name, unit, cost_price, sell_price, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, code, name, unit, cost_price, sell_price, low_stock_threshold, created_at`,
		input.Code, input.Name, unit, input.CostPrice, input.SellPrice, input.LowStockThreshold,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.CostPrice, &p.SellPrice, &p.LowStockThreshold, &p.CreatedAt)
	if err != nil {
		return nil, dbError("create product "+input.Code, err)
	}
	return p, nil
}

func (s *masterDataService) GetProduct(ctx context.Context, id int) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, unit, cost_price, sell_price, low_stock_threshold, created_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.CostPrice, &p.SellPrice, &p.LowStockThreshold, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "product %d not found", id)
		}
		return nil, dbError("get product", err)
	}
	return p, nil
}

func (s *masterDataService) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, unit, cost_price, sell_price, low_stock_threshold, created_at
		FROM products ORDER BY code`)
	if err != nil {
		return nil, dbError("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.CostPrice, &p.SellPrice, &p.LowStockThreshold, &p.CreatedAt); err != nil {
			return nil, dbError("scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *masterDataService) CreateWarehouse(ctx context.Context, code, name string) (*Warehouse, error) {
	if err := requireCodeAndName(code, name); err != nil {
		return nil, err
	}
	w := &Warehouse{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO warehouses (code, name) VALUES ($1, $2)
		RETURNING id, code, name, is_active, created_at`, code, name,
	).Scan(&w.ID, &w.Code, &w.Name, &w.IsActive, &w.CreatedAt)
	if err != nil {
		return nil, dbError("create warehouse "+code, err)
	}
	return w, nil
}

func (s *masterDataService) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, is_active, created_at
		FROM warehouses WHERE is_active = true ORDER BY code`)
	if err != nil {
		return nil, dbError("list warehouses", err)
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.IsActive, &w.CreatedAt); err != nil {
			return nil, dbError("scan warehouse", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateLocation adds a storage location. Capacity must be positive.
func (s *masterDataService) CreateLocation(ctx context.Context, warehouseID int, code string, capacity int) (*Location, error) {
	if strings.TrimSpace(code) == "" {
		return nil, Newf(ErrCodeInvalidRequest, "code is required")
	}
	if capacity <= 0 {
		return nil, Newf(ErrCodeInvalidQuantity, "location capacity must be positive, got %d", capacity)
	}
	if err := requireRow(ctx, s.pool, "warehouses", warehouseID); err != nil {
		return nil, err
	}

	l := &Location{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (warehouse_id, code, capacity) VALUES ($1, $2, $3)
		RETURNING id, warehouse_id, code, capacity, is_active, created_at`,
		warehouseID, code, capacity,
	).Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Capacity, &l.IsActive, &l.CreatedAt)
	if err != nil {
		return nil, dbError("create location "+code, err)
	}
	return l, nil
}

func (s *masterDataService) ListLocations(ctx context.Context, warehouseID int) ([]Location, error) {
	if err := requireRow(ctx, s.pool, "warehouses", warehouseID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, warehouse_id, code, capacity, is_active, created_at
		FROM locations WHERE warehouse_id = $1 ORDER BY code`, warehouseID)
	if err != nil {
		return nil, dbError("list locations", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Capacity, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, dbError("scan location", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *masterDataService) CreateSupplier(ctx context.Context, code, name string) (*Supplier, error) {
	if err := requireCodeAndName(code, name); err != nil {
		return nil, err
	}
	sp := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name) VALUES ($1, $2)
		RETURNING id, code, name, created_at`, code, name,
	).Scan(&sp.ID, &sp.Code, &sp.Name, &sp.CreatedAt)
	if err != nil {
		return nil, dbError("create supplier "+code, err)
	}
	return sp, nil
}

func (s *masterDataService) CreateCustomer(ctx context.Context, code, name string) (*Customer, error) {
	if err := requireCodeAndName(code, name); err != nil {
		return nil, err
	}
	c := &Customer{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name) VALUES ($1, $2)
		RETURNING id, code, name, created_at`, code, name,
	).Scan(&c.ID, &c.Code, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, dbError("create customer "+code, err)
	}
	return c, nil
}
