package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// lineTable returns the line table and its foreign key column for a parent type.
func lineTable(parentType ReceiptParentType) (table, fk string) {
	switch parentType {
	case ParentPurchaseOrder:
		return "purchase_order_lines", "order_id"
	case ParentSalesOrder:
		return "sales_order_lines", "order_id"
	default:
		return "transfer_lines", "transfer_id"
	}
}

// loadOrderLines reads the lines of an order or transfer with shipped and received quantities
// summed over every receipt booked against it so far (including uncommitted ones in q's tx).
func loadOrderLines(ctx context.Context, q pgxQuerier, parentType ReceiptParentType, parentID int) ([]OrderLine, error) {
	table, fk := lineTable(parentType)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT l.id, l.line_number, l.product_id, p.code, p.name,
		       l.quantity, l.unit_price, l.line_total,
		       COALESCE((SELECT SUM(d.quantity)
		                 FROM stock_out_details d
		                 JOIN stock_out_receipts r ON r.id = d.receipt_id
		                 WHERE r.parent_type = $2 AND r.parent_id = $1 AND d.product_id = l.product_id), 0),
		       COALESCE((SELECT SUM(d.quantity)
		                 FROM stock_in_details d
		                 JOIN stock_in_receipts r ON r.id = d.receipt_id
		                 WHERE r.parent_type = $2 AND r.parent_id = $1 AND d.product_id = l.product_id), 0)
		FROM %s l
		JOIN products p ON p.id = l.product_id
		WHERE l.%s = $1
		ORDER BY l.line_number`, table, fk),
		parentID, string(parentType),
	)
	if err != nil {
		return nil, dbError("query order lines", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.LineNumber, &l.ProductID, &l.ProductCode, &l.ProductName,
			&l.Quantity, &l.UnitPrice, &l.LineTotal, &l.Shipped, &l.Received); err != nil {
			return nil, dbError("scan order line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate order lines", err)
	}
	return lines, nil
}

// pricedLine is a validated order line ready to insert.
type pricedLine struct {
	productID int
	quantity  int
	unitPrice decimal.Decimal
	lineTotal decimal.Decimal
}

// priceOrderLines resolves products, fills default prices and computes totals at write time.
// priceColumn is cost_price or sell_price.
func priceOrderLines(ctx context.Context, tx pgx.Tx, lines []OrderLineInput, priceColumn string) ([]pricedLine, decimal.Decimal, error) {
	var out []pricedLine
	total := decimal.Zero
	for i, in := range lines {
		var defaultPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			fmt.Sprintf("SELECT %s FROM products WHERE id = $1", priceColumn), in.ProductID,
		).Scan(&defaultPrice)
		if err != nil {
			return nil, decimal.Zero, dbError(fmt.Sprintf("line %d: product %d", i+1, in.ProductID), err)
		}
		price := priceOr(in.UnitPrice, defaultPrice)
		lineTotal := price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		total = total.Add(lineTotal)
		out = append(out, pricedLine{productID: in.ProductID, quantity: in.Quantity, unitPrice: price, lineTotal: lineTotal})
	}
	return out, total, nil
}

// insertOrderLines writes the lines of a newly created order or transfer.
func insertOrderLines(ctx context.Context, tx pgx.Tx, parentType ReceiptParentType, parentID int, lines []pricedLine) error {
	table, fk := lineTable(parentType)
	for i, l := range lines {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, line_number, product_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`, table, fk),
			parentID, i+1, l.productID, l.quantity, l.unitPrice, l.lineTotal,
		); err != nil {
			return dbError(fmt.Sprintf("insert line %d", i+1), err)
		}
	}
	return nil
}

// priceOr returns the explicit price when one was given, even if it is zero.
func priceOr(p decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if p.Valid {
		return p.Decimal
	}
	return fallback
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
