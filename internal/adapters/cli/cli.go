package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

const usage = "Available: stock [product] [warehouse], low-stock [warehouse], occupancy <warehouse>, " +
	"availability <warehouse> <YYYY-MM-DD> <product:qty>..., putaway <warehouse> <product:qty>..., po <id>, so <id>, transfer <id>, promote"

// Run executes a one-shot CLI command, writing its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch args[0] {
	case "stock", "st":
		productID, err := optionalID(args, 1, "product")
		if err != nil {
			return err
		}
		warehouseID, err := optionalID(args, 2, "warehouse")
		if err != nil {
			return err
		}
		result, err := svc.GetStock(ctx, productID, warehouseID)
		if err != nil {
			return fmt.Errorf("get stock: %w", err)
		}
		printStock(out, result.Levels)

	case "low-stock", "low":
		warehouseID, err := optionalID(args, 1, "warehouse")
		if err != nil {
			return err
		}
		result, err := svc.ListLowStock(ctx, warehouseID)
		if err != nil {
			return fmt.Errorf("list low stock: %w", err)
		}
		printLowStock(out, result.Items)

	case "occupancy", "occ":
		warehouseID, err := requiredID(args, 1, "occupancy <warehouse>")
		if err != nil {
			return err
		}
		result, err := svc.GetLocationOccupancy(ctx, warehouseID)
		if err != nil {
			return fmt.Errorf("get occupancy: %w", err)
		}
		printOccupancy(out, result)

	case "availability", "avail":
		if len(args) < 4 {
			return errors.New("usage: availability <warehouse> <YYYY-MM-DD> <product:qty>...")
		}
		warehouseID, err := requiredID(args, 1, "availability <warehouse> <YYYY-MM-DD> <product:qty>...")
		if err != nil {
			return err
		}
		lines, err := parseLines(args[3:])
		if err != nil {
			return err
		}
		report, err := svc.CheckAvailability(ctx, app.AvailabilityRequest{
			WarehouseID: warehouseID,
			AsOf:        args[2],
			Lines:       lines,
		})
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		printAvailability(out, report)

	case "putaway", "put":
		if len(args) < 3 {
			return errors.New("usage: putaway <warehouse> <product:qty>...")
		}
		warehouseID, err := requiredID(args, 1, "putaway <warehouse> <product:qty>...")
		if err != nil {
			return err
		}
		lines, err := parseLines(args[2:])
		if err != nil {
			return err
		}
		placementLines := make([]app.PlacementLineInput, len(lines))
		for i, l := range lines {
			placementLines[i] = app.PlacementLineInput{ProductID: l.ProductID, Quantity: l.Quantity}
		}
		result, err := svc.SuggestPlacement(ctx, app.PlacementRequest{WarehouseID: warehouseID, Lines: placementLines})
		if err != nil {
			return fmt.Errorf("suggest placement: %w", err)
		}
		fmt.Fprintf(out, "\n  Put-away plan for warehouse %d\n", result.WarehouseID)
		fmt.Fprintf(out, "  %-6s %-10s %-10s %8s\n", "LINE", "PRODUCT", "LOCATION", "QTY")
		fmt.Fprintln(out, strings.Repeat("-", 40))
		for _, p := range result.Placements {
			fmt.Fprintf(out, "  %-6d %-10d %-10d %8d\n", p.Line+1, p.ProductID, p.LocationID, p.Quantity)
		}
		fmt.Fprintln(out, strings.Repeat("-", 40))

	case "po":
		id, err := requiredID(args, 1, "po <id>")
		if err != nil {
			return err
		}
		result, err := svc.GetPurchaseOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase order: %w", err)
		}
		po := result.PurchaseOrder
		printOrder(out, "PURCHASE ORDER", po.PONumber, string(po.Status), po.ExpectedDate,
			fmt.Sprintf("Supplier : %s %s", po.SupplierCode, po.SupplierName), po.Lines, false)

	case "so":
		id, err := requiredID(args, 1, "so <id>")
		if err != nil {
			return err
		}
		result, err := svc.GetSalesOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("get sales order: %w", err)
		}
		so := result.SalesOrder
		printOrder(out, "SALES ORDER", so.OrderNumber, string(so.Status), so.ExpectedDate,
			fmt.Sprintf("Customer : %s %s", so.CustomerCode, so.CustomerName), so.Lines, false)

	case "transfer", "tr":
		id, err := requiredID(args, 1, "transfer <id>")
		if err != nil {
			return err
		}
		result, err := svc.GetTransfer(ctx, id)
		if err != nil {
			return fmt.Errorf("get transfer: %w", err)
		}
		t := result.Transfer
		printOrder(out, "TRANSFER", t.TransferNumber, string(t.Status), t.ExpectedDate,
			fmt.Sprintf("Route    : warehouse %d -> warehouse %d", t.SourceWarehouseID, t.DestinationWarehouseID),
			t.Lines, true)

	case "promote":
		n, err := svc.PromoteReadyToReceive(ctx)
		if err != nil {
			return fmt.Errorf("promote purchase orders: %w", err)
		}
		fmt.Fprintf(out, "%d purchase order(s) moved to READY_TO_RECEIVE.\n", n)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func optionalID(args []string, i int, what string) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	id, err := strconv.Atoi(args[i])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, args[i])
	}
	return id, nil
}

func requiredID(args []string, i int, usageLine string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("usage: %s", usageLine)
	}
	id, err := strconv.Atoi(args[i])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", args[i])
	}
	return id, nil
}

// parseLines reads "product:qty" pairs.
func parseLines(raw []string) ([]app.ProductQuantity, error) {
	lines := make([]app.ProductQuantity, 0, len(raw))
	for _, r := range raw {
		p, q, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("invalid line %q: expected product:qty", r)
		}
		productID, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid product in %q", r)
		}
		qty, err := strconv.Atoi(q)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q", r)
		}
		lines = append(lines, app.ProductQuantity{ProductID: productID, Quantity: qty})
	}
	return lines, nil
}

func printStock(out io.Writer, levels []core.StockLevel) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-12s %-28s %-10s %10s\n", "PRODUCT", "NAME", "WAREHOUSE", "QTY")
	fmt.Fprintln(out, strings.Repeat("-", 64))
	for _, l := range levels {
		fmt.Fprintf(out, "  %-12s %-28s %-10s %10d\n", l.ProductCode, l.ProductName, l.WarehouseCode, l.Quantity)
	}
	fmt.Fprintln(out, strings.Repeat("-", 64))
}

func printLowStock(out io.Writer, items []core.LowStockItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No products at or below their threshold.")
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-12s %-28s %-10s %8s %10s\n", "PRODUCT", "NAME", "WAREHOUSE", "QTY", "THRESHOLD")
	fmt.Fprintln(out, strings.Repeat("-", 74))
	for _, it := range items {
		fmt.Fprintf(out, "  %-12s %-28s %-10s %8d %10d\n",
			it.ProductCode, it.ProductName, it.WarehouseCode, it.Quantity, it.Threshold)
	}
	fmt.Fprintln(out, strings.Repeat("-", 74))
}

func printOccupancy(out io.Writer, result *app.OccupancyResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Warehouse %d\n", result.WarehouseID)
	fmt.Fprintf(out, "  %-12s %10s %10s %10s\n", "LOCATION", "CAPACITY", "OCCUPIED", "FREE")
	fmt.Fprintln(out, strings.Repeat("-", 48))
	for _, l := range result.Locations {
		fmt.Fprintf(out, "  %-12s %10d %10d %10d\n", l.LocationCode, l.Capacity, l.Occupied, l.Remaining)
		for _, p := range l.Products {
			fmt.Fprintf(out, "      %-20s %10d\n", p.ProductCode, p.Quantity)
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 48))
}

func printAvailability(out io.Writer, r *core.AvailabilityReport) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Warehouse %d as of %s\n", r.WarehouseID, r.AsOf.Format("2006-01-02"))
	fmt.Fprintf(out, "  %-12s %8s %8s %8s %8s %8s  %s\n",
		"PRODUCT", "REQ", "ONHAND", "IN", "OUT", "AVAIL", "OK")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, l := range r.Lines {
		code := l.ProductCode
		if !l.Found {
			code = fmt.Sprintf("#%d?", l.ProductID)
		}
		ok := "yes"
		if !l.IsAvailable {
			ok = "NO"
		}
		fmt.Fprintf(out, "  %-12s %8d %8d %8d %8d %8d  %s\n",
			code, l.Requested, l.Current, l.ExpectedIncoming, l.PendingOutgoing, l.Available, ok)
	}
	fmt.Fprintln(out, strings.Repeat("-", 72))
	if r.Valid {
		fmt.Fprintln(out, "  All lines can be fulfilled.")
	} else {
		fmt.Fprintf(out, "  %s\n", r.Message)
	}
}

func printOrder(out io.Writer, title, number, status, expected, party string, lines []core.OrderLine, transfer bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  %s %s\n", title, number)
	fmt.Fprintf(out, "  Status   : %s\n", status)
	fmt.Fprintf(out, "  Expected : %s\n", expected)
	fmt.Fprintf(out, "  %s\n", party)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  %-4s %-12s %8s %8s %8s %12s\n", "#", "PRODUCT", "ORDERED", "SHIPPED", "RECEIVED", "LINE TOTAL")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, l := range lines {
		shipped, received := "-", "-"
		if transfer || l.Shipped > 0 {
			shipped = strconv.Itoa(l.Shipped)
		}
		if transfer || l.Received > 0 {
			received = strconv.Itoa(l.Received)
		}
		fmt.Fprintf(out, "  %-4d %-12s %8d %8s %8s %12s\n",
			l.LineNumber, l.ProductCode, l.Quantity, shipped, received, l.LineTotal.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
}
