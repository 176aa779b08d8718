package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

func (s *receiptService) GetStockInReceipt(ctx context.Context, id int) (*Receipt, error) {
	return getReceipt(ctx, s.pool, DirectionIn, id)
}

func (s *receiptService) GetStockOutReceipt(ctx context.Context, id int) (*Receipt, error) {
	return getReceipt(ctx, s.pool, DirectionOut, id)
}

func (s *receiptService) ListReceiptsForOrder(ctx context.Context, parentType ReceiptParentType, parentID int) ([]Receipt, error) {
	var out []Receipt
	for _, dir := range []ReceiptDirection{DirectionIn, DirectionOut} {
		rows, err := s.pool.Query(ctx, fmt.Sprintf(
			"SELECT id FROM %s WHERE parent_type = $1 AND parent_id = $2 ORDER BY id", receiptTable(dir)),
			string(parentType), parentID)
		if err != nil {
			return nil, dbError("query receipts", err)
		}
		var ids []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, dbError("scan receipt id", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, dbError("iterate receipts", err)
		}

		for _, id := range ids {
			r, err := getReceipt(ctx, s.pool, dir, id)
			if err != nil {
				return nil, err
			}
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func getReceipt(ctx context.Context, q pgxQuerier, dir ReceiptDirection, id int) (*Receipt, error) {
	r := Receipt{Direction: dir}
	err := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, receipt_number, parent_type, parent_id, warehouse_id, total_amount, created_by, created_at
		FROM %s WHERE id = $1`, receiptTable(dir)), id,
	).Scan(&r.ID, &r.ReceiptNumber, &r.ParentType, &r.ParentID, &r.WarehouseID, &r.TotalAmount, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "receipt %d not found", id)
		}
		return nil, dbError("read receipt", err)
	}

	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT d.id, d.product_id, p.code, d.location_id, d.quantity, d.unit_price, d.line_total
		FROM %s d
		JOIN products p ON p.id = d.product_id
		WHERE d.receipt_id = $1
		ORDER BY d.id`, detailTable(dir)), id)
	if err != nil {
		return nil, dbError("query receipt details", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d ReceiptDetail
		if err := rows.Scan(&d.ID, &d.ProductID, &d.ProductCode, &d.LocationID, &d.Quantity, &d.UnitPrice, &d.LineTotal); err != nil {
			return nil, dbError("scan receipt detail", err)
		}
		r.Details = append(r.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate receipt details", err)
	}
	return &r, nil
}
