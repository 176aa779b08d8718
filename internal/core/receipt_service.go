package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type receiptService struct {
	pool      *pgxpool.Pool
	ledger    LedgerService
	allocator LocationAllocator
	docs      DocumentService
	outbox    OutboxRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewReceiptService wires the receipt processor. A nil logger disables logging.
func NewReceiptService(pool *pgxpool.Pool, ledger LedgerService, allocator LocationAllocator,
	docs DocumentService, outbox OutboxRepository, logger *zap.Logger) ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &receiptService{
		pool:      pool,
		ledger:    ledger,
		allocator: allocator,
		docs:      docs,
		outbox:    outbox,
		logger:    logger,
		now:       time.Now,
	}
}

// parentState is a row-locked order or transfer as seen by one receipt.
type parentState struct {
	parentType ReceiptParentType
	id         int
	// warehouseID is the warehouse this side of the movement happens in.
	warehouseID int
	status      string
	lines       []OrderLine
}

func (p *parentState) line(productID int) (OrderLine, bool) {
	for _, l := range p.lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return OrderLine{}, false
}

// ── Stock-in ──────────────────────────────────────────────────────────────────

func (s *receiptService) StockIn(ctx context.Context, req StockInRequest) (*ReceiptResult, error) {
	res, err := s.stockIn(ctx, req)
	if err != nil {
		s.logFailure("stock-in rejected", req.ParentType, req.ParentID, req.WarehouseID, err)
		return nil, err
	}
	if res.Replayed {
		return res, nil
	}
	s.logger.Info("stock-in committed",
		zap.Int("receiptId", res.ReceiptID),
		zap.String("receiptNumber", res.ReceiptNumber),
		zap.String("parentType", string(req.ParentType)),
		zap.Int("parentId", req.ParentID),
		zap.Int("warehouseId", req.WarehouseID),
		zap.String("parentStatus", res.ParentStatus))
	return res, nil
}

func (s *receiptService) stockIn(ctx context.Context, req StockInRequest) (*ReceiptResult, error) {
	if req.ParentType != ParentPurchaseOrder && req.ParentType != ParentTransfer {
		return nil, Newf(ErrCodeInvalidRequest, "stock-in parent must be a purchase order or transfer, got %q", req.ParentType)
	}
	if err := validateReceiptLines(req.Lines, false); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if replay, err := s.replay(ctx, tx, DirectionIn, req.IdempotencyKey, req.ParentType, req.ParentID, req.WarehouseID); err != nil || replay != nil {
		return replay, err
	}

	parent, err := lockParentTx(ctx, tx, req.ParentType, req.ParentID, DirectionIn)
	if err != nil {
		return nil, err
	}
	if parent.warehouseID != req.WarehouseID {
		return nil, Newf(ErrCodeInvalidRequest, "%s %d receives into warehouse %d, not %d",
			parent.parentType, parent.id, parent.warehouseID, req.WarehouseID)
	}
	if err := checkCanReceive(parent); err != nil {
		return nil, err
	}

	// Per-product bound: what this receipt brings in must fit what is still owed.
	requested := sumByProduct(req.Lines)
	for _, productID := range sortedKeys(requested) {
		qty := requested[productID]
		line, ok := parent.line(productID)
		if !ok {
			return nil, Newf(ErrCodeInvalidRequest, "product %d is not on %s %d", productID, parent.parentType, parent.id)
		}
		if remaining := line.Quantity - line.Received; qty > remaining {
			return nil, Newf(ErrCodeInvalidQuantity,
				"product %s: receiving %d exceeds remaining %d", line.ProductCode, qty, remaining)
		}
		if parent.parentType == ParentTransfer {
			if inTransit := line.Shipped - line.Received; qty > inTransit {
				return nil, Newf(ErrCodeInsufficientStock,
					"product %s: receiving %d but only %d shipped and not yet received", line.ProductCode, qty, inTransit)
			}
		}
	}

	requests := make([]PlacementRequest, len(req.Lines))
	for i, l := range req.Lines {
		requests[i] = PlacementRequest{ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity}
	}
	placements, err := s.allocator.PlanTx(ctx, tx, req.WarehouseID, requests)
	if err != nil {
		return nil, err
	}

	details := make([]ReceiptDetail, len(placements))
	for i, p := range placements {
		line, _ := parent.line(p.ProductID)
		price := priceOr(req.Lines[p.Line].UnitPrice, line.UnitPrice)
		details[i] = ReceiptDetail{
			ProductID:   p.ProductID,
			ProductCode: line.ProductCode,
			LocationID:  p.LocationID,
			Quantity:    p.Quantity,
			UnitPrice:   price,
			LineTotal:   price.Mul(decimal.NewFromInt(int64(p.Quantity))),
		}
	}

	header, err := s.insertHeader(ctx, tx, DirectionIn, parent, req.ActorID, req.IdempotencyKey, details)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if err := insertDetail(ctx, tx, DirectionIn, header.ID, &details[i]); err != nil {
			return nil, err
		}
		if _, err := s.ledger.AdjustTx(ctx, tx, details[i].ProductID, details[i].LocationID, details[i].Quantity); err != nil {
			return nil, err
		}
	}

	status, err := recomputeParentStatusTx(ctx, tx, parent)
	if err != nil {
		return nil, err
	}

	if err := s.outbox.InsertEventTx(ctx, tx, string(parent.parentType), parent.id, EventStockReceived,
		movedEvent(header, details)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stock-in: %w", err)
	}
	return &ReceiptResult{ReceiptID: header.ID, ReceiptNumber: header.ReceiptNumber, ParentStatus: status, Details: details}, nil
}

// ── Stock-out ─────────────────────────────────────────────────────────────────

func (s *receiptService) StockOut(ctx context.Context, req StockOutRequest) (*ReceiptResult, error) {
	res, err := s.stockOut(ctx, req)
	if err != nil {
		s.logFailure("stock-out rejected", req.ParentType, req.ParentID, req.WarehouseID, err)
		return nil, err
	}
	if res.Replayed {
		return res, nil
	}
	s.logger.Info("stock-out committed",
		zap.Int("receiptId", res.ReceiptID),
		zap.String("receiptNumber", res.ReceiptNumber),
		zap.String("parentType", string(req.ParentType)),
		zap.Int("parentId", req.ParentID),
		zap.Int("warehouseId", req.WarehouseID),
		zap.String("parentStatus", res.ParentStatus))
	return res, nil
}

type ledgerKey struct{ productID, locationID int }

func (s *receiptService) stockOut(ctx context.Context, req StockOutRequest) (*ReceiptResult, error) {
	if req.ParentType != ParentSalesOrder && req.ParentType != ParentTransfer {
		return nil, Newf(ErrCodeInvalidRequest, "stock-out parent must be a sales order or transfer, got %q", req.ParentType)
	}
	if err := validateReceiptLines(req.Lines, true); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if replay, err := s.replay(ctx, tx, DirectionOut, req.IdempotencyKey, req.ParentType, req.ParentID, req.WarehouseID); err != nil || replay != nil {
		return replay, err
	}

	parent, err := lockParentTx(ctx, tx, req.ParentType, req.ParentID, DirectionOut)
	if err != nil {
		return nil, err
	}
	if parent.warehouseID != req.WarehouseID {
		return nil, Newf(ErrCodeInvalidRequest, "%s %d ships from warehouse %d, not %d",
			parent.parentType, parent.id, parent.warehouseID, req.WarehouseID)
	}
	if err := checkCanShip(parent); err != nil {
		return nil, err
	}

	requested := sumByProduct(req.Lines)
	for _, productID := range sortedKeys(requested) {
		qty := requested[productID]
		line, ok := parent.line(productID)
		if !ok {
			return nil, Newf(ErrCodeInvalidRequest, "product %d is not on %s %d", productID, parent.parentType, parent.id)
		}
		if remaining := line.Quantity - line.Shipped; qty > remaining {
			return nil, Newf(ErrCodeInsufficientStock,
				"product %s: shipping %d exceeds remaining ordered quantity %d", line.ProductCode, qty, remaining)
		}
	}

	if err := checkLocationsInWarehouse(ctx, tx, req.WarehouseID, req.Lines); err != nil {
		return nil, err
	}

	// Lock ledger rows in (product, location) order so concurrent stock-outs cannot deadlock,
	// then validate against live quantities.
	perRow := map[ledgerKey]int{}
	for _, l := range req.Lines {
		perRow[ledgerKey{l.ProductID, l.LocationID}] += l.Quantity
	}
	keys := make([]ledgerKey, 0, len(perRow))
	for k := range perRow {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID < keys[j].productID
		}
		return keys[i].locationID < keys[j].locationID
	})
	for _, k := range keys {
		onHand, err := s.ledger.GetQuantityTx(ctx, tx, k.productID, k.locationID)
		if err != nil {
			return nil, err
		}
		if want := perRow[k]; want > onHand {
			return nil, Newf(ErrCodeInsufficientStock,
				"product %d at location %d: available %d, requested %d", k.productID, k.locationID, onHand, want)
		}
	}

	totalsBefore := map[int]int{}
	for productID := range requested {
		total, err := s.ledger.GetTotalForWarehouseTx(ctx, tx, productID, req.WarehouseID)
		if err != nil {
			return nil, err
		}
		totalsBefore[productID] = total
	}

	details := make([]ReceiptDetail, len(req.Lines))
	for i, l := range req.Lines {
		line, _ := parent.line(l.ProductID)
		price := priceOr(l.UnitPrice, line.UnitPrice)
		details[i] = ReceiptDetail{
			ProductID:   l.ProductID,
			ProductCode: line.ProductCode,
			LocationID:  l.LocationID,
			Quantity:    l.Quantity,
			UnitPrice:   price,
			LineTotal:   price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}
	}

	header, err := s.insertHeader(ctx, tx, DirectionOut, parent, req.ActorID, req.IdempotencyKey, details)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if err := insertDetail(ctx, tx, DirectionOut, header.ID, &details[i]); err != nil {
			return nil, err
		}
		if _, err := s.ledger.AdjustTx(ctx, tx, details[i].ProductID, details[i].LocationID, -details[i].Quantity); err != nil {
			if IsCode(err, ErrCodeNegativeStock) {
				s.logger.Error("ledger invariant violated during stock-out",
					zap.Int("productId", details[i].ProductID),
					zap.Int("locationId", details[i].LocationID),
					zap.Error(err))
			}
			return nil, err
		}
	}

	status, err := recomputeParentStatusTx(ctx, tx, parent)
	if err != nil {
		return nil, err
	}

	if err := s.outbox.InsertEventTx(ctx, tx, string(parent.parentType), parent.id, EventStockShipped,
		movedEvent(header, details)); err != nil {
		return nil, err
	}
	if err := s.emitLowStockTx(ctx, tx, req.WarehouseID, totalsBefore); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stock-out: %w", err)
	}
	return &ReceiptResult{ReceiptID: header.ID, ReceiptNumber: header.ReceiptNumber, ParentStatus: status, Details: details}, nil
}

// emitLowStockTx writes a stock.low event for every product whose warehouse total crossed
// down to its threshold in this transaction.
func (s *receiptService) emitLowStockTx(ctx context.Context, tx pgx.Tx, warehouseID int, before map[int]int) error {
	for _, productID := range sortedKeys(before) {
		var threshold int
		if err := tx.QueryRow(ctx,
			"SELECT low_stock_threshold FROM products WHERE id = $1", productID,
		).Scan(&threshold); err != nil {
			return dbError("read low stock threshold", err)
		}
		after, err := s.ledger.GetTotalForWarehouseTx(ctx, tx, productID, warehouseID)
		if err != nil {
			return err
		}
		if !CrossedLowStock(before[productID], after, threshold) {
			continue
		}
		if err := s.outbox.InsertEventTx(ctx, tx, "PRODUCT", productID, EventStockLow, LowStockEvent{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    after,
			Threshold:   threshold,
			OccurredAt:  s.now().UTC(),
		}); err != nil {
			return err
		}
		s.logger.Warn("stock fell to low-stock threshold",
			zap.Int("productId", productID),
			zap.Int("warehouseId", warehouseID),
			zap.Int("quantity", after),
			zap.Int("threshold", threshold))
	}
	return nil
}

// ── Shared steps ──────────────────────────────────────────────────────────────

// replay returns the earlier receipt booked under the same idempotency key, if any.
// A key already used for a different order or warehouse is rejected rather than replayed.
func (s *receiptService) replay(ctx context.Context, tx pgx.Tx, dir ReceiptDirection, key string,
	parentType ReceiptParentType, parentID, warehouseID int) (*ReceiptResult, error) {
	if key == "" {
		return nil, nil
	}
	var id int
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE idempotency_key = $1", receiptTable(dir)), key,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("check idempotency key", err)
	}

	rec, err := getReceipt(ctx, tx, dir, id)
	if err != nil {
		return nil, err
	}
	if rec.ParentType != parentType || rec.ParentID != parentID || rec.WarehouseID != warehouseID {
		return nil, Newf(ErrCodeInvalidRequest,
			"idempotency key %q was already used for %s %d in warehouse %d", key, rec.ParentType, rec.ParentID, rec.WarehouseID)
	}
	status, err := parentStatus(ctx, tx, rec.ParentType, rec.ParentID)
	if err != nil {
		return nil, err
	}
	return &ReceiptResult{ReceiptID: rec.ID, ReceiptNumber: rec.ReceiptNumber, ParentStatus: status,
		Replayed: true, Details: rec.Details}, nil
}

func (s *receiptService) insertHeader(ctx context.Context, tx pgx.Tx, dir ReceiptDirection, parent *parentState,
	actorID int, idempotencyKey string, details []ReceiptDetail) (*Receipt, error) {
	docType := DocTypeGoodsReceipt
	if dir == DirectionOut {
		docType = DocTypeGoodsIssue
	}
	now := s.now()
	number, err := s.docs.NextNumberTx(ctx, tx, docType, now.Year())
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.LineTotal)
	}

	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}

	r := &Receipt{
		Direction:     dir,
		ReceiptNumber: number,
		ParentType:    parent.parentType,
		ParentID:      parent.id,
		WarehouseID:   parent.warehouseID,
		TotalAmount:   total,
		CreatedBy:     actorID,
	}
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (receipt_number, parent_type, parent_id, warehouse_id, total_amount, idempotency_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`, receiptTable(dir)),
		number, string(parent.parentType), parent.id, parent.warehouseID, total, key, actorID,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, dbError("insert receipt header", err)
	}
	return r, nil
}

func insertDetail(ctx context.Context, tx pgx.Tx, dir ReceiptDirection, receiptID int, d *ReceiptDetail) error {
	err := tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (receipt_id, product_id, location_id, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`, detailTable(dir)),
		receiptID, d.ProductID, d.LocationID, d.Quantity, d.UnitPrice, d.LineTotal,
	).Scan(&d.ID)
	if err != nil {
		return dbError("insert receipt detail", err)
	}
	return nil
}

// lockParentTx locks the parent row and loads its lines with movement so far.
// dir picks which warehouse of a transfer the receipt happens in.
func lockParentTx(ctx context.Context, tx pgx.Tx, parentType ReceiptParentType, id int, dir ReceiptDirection) (*parentState, error) {
	p := &parentState{parentType: parentType, id: id}
	var err error
	switch parentType {
	case ParentPurchaseOrder:
		err = tx.QueryRow(ctx,
			"SELECT warehouse_id, status FROM purchase_orders WHERE id = $1 FOR UPDATE", id,
		).Scan(&p.warehouseID, &p.status)
	case ParentSalesOrder:
		err = tx.QueryRow(ctx,
			"SELECT warehouse_id, status FROM sales_orders WHERE id = $1 FOR UPDATE", id,
		).Scan(&p.warehouseID, &p.status)
	case ParentTransfer:
		var src, dst int
		err = tx.QueryRow(ctx,
			"SELECT source_warehouse_id, destination_warehouse_id, status FROM transfers WHERE id = $1 FOR UPDATE", id,
		).Scan(&src, &dst, &p.status)
		p.warehouseID = dst
		if dir == DirectionOut {
			p.warehouseID = src
		}
	default:
		return nil, Newf(ErrCodeInvalidRequest, "unknown parent type %q", parentType)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "%s %d not found", parentType, id)
		}
		return nil, dbError("lock parent order", err)
	}

	p.lines, err = loadOrderLines(ctx, tx, parentType, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func checkCanReceive(p *parentState) error {
	var ok bool
	switch p.parentType {
	case ParentPurchaseOrder:
		ok = PurchaseOrderStatus(p.status).CanReceive()
	case ParentTransfer:
		ok = TransferStatus(p.status).CanReceive()
	}
	if !ok {
		return Newf(ErrCodeIllegalStatusTransition, "%s %d cannot receive goods in status %s", p.parentType, p.id, p.status)
	}
	return nil
}

func checkCanShip(p *parentState) error {
	var ok bool
	switch p.parentType {
	case ParentSalesOrder:
		ok = SalesOrderStatus(p.status).CanShip()
	case ParentTransfer:
		ok = TransferStatus(p.status).CanShip()
	}
	if !ok {
		return Newf(ErrCodeIllegalStatusTransition, "%s %d cannot ship goods in status %s", p.parentType, p.id, p.status)
	}
	return nil
}

// recomputeParentStatusTx reloads movement (now including this receipt), derives the status and
// persists it when it changed. Status is never written from anywhere else except cancellation and
// the READY_TO_RECEIVE sweep.
func recomputeParentStatusTx(ctx context.Context, tx pgx.Tx, p *parentState) (string, error) {
	lines, err := loadOrderLines(ctx, tx, p.parentType, p.id)
	if err != nil {
		return "", err
	}
	progress := linesProgress(lines)

	var next, table string
	switch p.parentType {
	case ParentPurchaseOrder:
		st, err := DerivePurchaseOrderStatus(PurchaseOrderStatus(p.status), progress)
		if err != nil {
			return "", err
		}
		next, table = string(st), "purchase_orders"
	case ParentSalesOrder:
		st, err := DeriveSalesOrderStatus(SalesOrderStatus(p.status), progress)
		if err != nil {
			return "", err
		}
		next, table = string(st), "sales_orders"
	case ParentTransfer:
		st, err := DeriveTransferStatus(TransferStatus(p.status), progress)
		if err != nil {
			return "", err
		}
		next, table = string(st), "transfers"
	}

	if next != p.status {
		if _, err := tx.Exec(ctx, fmt.Sprintf("UPDATE %s SET status = $1 WHERE id = $2", table), next, p.id); err != nil {
			return "", dbError("update parent status", err)
		}
		p.status = next
	}
	p.lines = lines
	return next, nil
}

func parentStatus(ctx context.Context, q pgxQuerier, parentType ReceiptParentType, id int) (string, error) {
	var table string
	switch parentType {
	case ParentPurchaseOrder:
		table = "purchase_orders"
	case ParentSalesOrder:
		table = "sales_orders"
	default:
		table = "transfers"
	}
	var status string
	if err := q.QueryRow(ctx, fmt.Sprintf("SELECT status FROM %s WHERE id = $1", table), id).Scan(&status); err != nil {
		return "", dbError("read parent status", err)
	}
	return status, nil
}

func checkLocationsInWarehouse(ctx context.Context, tx pgx.Tx, warehouseID int, lines []ReceiptLineInput) error {
	checked := map[int]bool{}
	for i, l := range lines {
		if checked[l.LocationID] {
			continue
		}
		var wh int
		err := tx.QueryRow(ctx, "SELECT warehouse_id FROM locations WHERE id = $1", l.LocationID).Scan(&wh)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Newf(ErrCodeNotFound, "line %d: location %d not found", i+1, l.LocationID)
			}
			return dbError("resolve location", err)
		}
		if wh != warehouseID {
			return Newf(ErrCodeInvalidRequest, "line %d: location %d belongs to warehouse %d, not %d",
				i+1, l.LocationID, wh, warehouseID)
		}
		checked[l.LocationID] = true
	}
	return nil
}

func (s *receiptService) logFailure(msg string, parentType ReceiptParentType, parentID, warehouseID int, err error) {
	fields := []zap.Field{
		zap.String("parentType", string(parentType)),
		zap.Int("parentId", parentID),
		zap.Int("warehouseId", warehouseID),
		zap.String("code", string(CodeOf(err))),
		zap.Error(err),
	}
	if IsBusinessError(err) {
		s.logger.Warn(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}

func movedEvent(r *Receipt, details []ReceiptDetail) StockMovedEvent {
	lines := make([]StockMovementLine, len(details))
	for i, d := range details {
		lines[i] = StockMovementLine{ProductID: d.ProductID, LocationID: d.LocationID, Quantity: d.Quantity}
	}
	return StockMovedEvent{
		ReceiptID:     r.ID,
		ReceiptNumber: r.ReceiptNumber,
		ParentType:    r.ParentType,
		ParentID:      r.ParentID,
		WarehouseID:   r.WarehouseID,
		Lines:         lines,
		OccurredAt:    r.CreatedAt,
	}
}

func sumByProduct(lines []ReceiptLineInput) map[int]int {
	out := map[int]int{}
	for _, l := range lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func receiptTable(dir ReceiptDirection) string {
	if dir == DirectionOut {
		return "stock_out_receipts"
	}
	return "stock_in_receipts"
}

func detailTable(dir ReceiptDirection) string {
	if dir == DirectionOut {
		return "stock_out_details"
	}
	return "stock_in_details"
}
