package core_test

import (
	"testing"
	"time"

	"warehouse-ledger/internal/core"
)

func TestPurchaseOrder_CreateAndCancel(t *testing.T) {
	env := setupTestEnv(t)

	po, err := env.pos.CreatePurchaseOrder(env.ctx, core.CreatePurchaseOrderInput{
		ActorID: actor, SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: tomorrow(),
		Lines: []core.OrderLineInput{{ProductID: widget, Quantity: 3}, {ProductID: gadget, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	if po.Status != core.POStatusOrdered {
		t.Errorf("expected ORDERED for a future expected date, got %s", po.Status)
	}
	if want := core.FormatDocumentNumber(core.DocTypePurchaseOrder, env.year(), 1); po.PONumber != want {
		t.Errorf("expected number %s, got %s", want, po.PONumber)
	}
	// 3 x 10.00 + 2 x 20.00 at cost price
	if po.TotalAmount.String() != "70" {
		t.Errorf("expected total 70, got %s", po.TotalAmount)
	}
	if len(po.Lines) != 2 || po.Lines[0].LineNumber != 1 {
		t.Errorf("unexpected lines: %+v", po.Lines)
	}

	cancelled, err := env.pos.CancelPurchaseOrder(env.ctx, po.ID, actor)
	if err != nil {
		t.Fatalf("CancelPurchaseOrder failed: %v", err)
	}
	if cancelled.Status != core.POStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("expected CANCELLED with a timestamp, got %s", cancelled.Status)
	}
	if _, err := env.pos.CancelPurchaseOrder(env.ctx, po.ID, actor); !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("expected ILLEGAL_STATUS_TRANSITION cancelling twice, got %v", err)
	}

	// READY_TO_RECEIVE can no longer be cancelled.
	ready := env.createPO(t, mainWH, lines(widget, 1))
	if _, err := env.pos.CancelPurchaseOrder(env.ctx, ready.ID, actor); !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("expected ILLEGAL_STATUS_TRANSITION for READY_TO_RECEIVE, got %v", err)
	}

	if _, err := env.pos.GetPurchaseOrder(env.ctx, 9999); !core.IsCode(err, core.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestPurchaseOrder_ValidationErrors(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name string
		in   core.CreatePurchaseOrderInput
		code core.ErrorCode
	}{
		{"no lines", core.CreatePurchaseOrderInput{SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: tomorrow()}, core.ErrCodeInvalidRequest},
		{"zero quantity", core.CreatePurchaseOrderInput{SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: tomorrow(), Lines: lines(widget, 0)}, core.ErrCodeInvalidQuantity},
		{"unknown supplier", core.CreatePurchaseOrderInput{SupplierID: 77, WarehouseID: mainWH, ExpectedDate: tomorrow(), Lines: lines(widget, 1)}, core.ErrCodeNotFound},
		{"unknown product", core.CreatePurchaseOrderInput{SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: tomorrow(), Lines: lines(404, 1)}, core.ErrCodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.pos.CreatePurchaseOrder(env.ctx, tc.in)
			if !core.IsCode(err, tc.code) {
				t.Errorf("expected %s, got %v", tc.code, err)
			}
		})
	}
	if n := env.count(t, "purchase_orders"); n != 0 {
		t.Errorf("rejected orders must not persist, found %d", n)
	}
}

func TestPurchaseOrder_PromoteReadyToReceive(t *testing.T) {
	env := setupTestEnv(t)

	due, err := env.pos.CreatePurchaseOrder(env.ctx, core.CreatePurchaseOrderInput{
		ActorID: actor, SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: tomorrow(), Lines: lines(widget, 1),
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	later, err := env.pos.CreatePurchaseOrder(env.ctx, core.CreatePurchaseOrderInput{
		ActorID: actor, SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: time.Now().AddDate(0, 0, 10), Lines: lines(widget, 1),
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}

	n, err := env.pos.PromoteReadyToReceive(env.ctx, time.Now().AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("PromoteReadyToReceive failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 promotion, got %d", n)
	}
	n, _ = env.pos.PromoteReadyToReceive(env.ctx, time.Now().AddDate(0, 0, 2))
	if n != 0 {
		t.Errorf("promotion must be idempotent, got %d on second run", n)
	}

	got, _ := env.pos.GetPurchaseOrder(env.ctx, due.ID)
	if got.Status != core.POStatusReadyToReceive {
		t.Errorf("due order: expected READY_TO_RECEIVE, got %s", got.Status)
	}
	got, _ = env.pos.GetPurchaseOrder(env.ctx, later.ID)
	if got.Status != core.POStatusOrdered {
		t.Errorf("later order: expected ORDERED, got %s", got.Status)
	}

	// Receiving is gated on READY_TO_RECEIVE.
	env.addLocation(t, mainWH, "A-01", 100)
	_, err = env.receipts.StockIn(env.ctx, core.StockInRequest{
		ParentType: core.ParentPurchaseOrder, ParentID: later.ID, WarehouseID: mainWH, ActorID: actor,
		Lines: []core.ReceiptLineInput{{ProductID: widget, Quantity: 1}},
	})
	if !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("expected ILLEGAL_STATUS_TRANSITION for an ORDERED purchase order, got %v", err)
	}
}

func TestSalesOrder_RejectedByAvailabilityPersistsNothing(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 100)
	env.seedStock(t, widget, loc, 5)

	so, report, err := env.sos.CreateSalesOrder(env.ctx, core.CreateSalesOrderInput{
		ActorID: actor, CustomerID: customer1, WarehouseID: mainWH, ExpectedDate: tomorrow(),
		Lines: lines(widget, 6),
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder returned error: %v", err)
	}
	if so != nil {
		t.Fatalf("expected no order, got %+v", so)
	}
	if report == nil || report.Valid {
		t.Fatalf("expected an invalid report, got %+v", report)
	}
	if report.Message != "insufficient stock for product P-100: available 5, requested 6" {
		t.Errorf("unexpected message: %q", report.Message)
	}
	if n := env.count(t, "sales_orders"); n != 0 {
		t.Errorf("expected no sales orders, got %d", n)
	}
	if last, _ := env.docs.LastNumber(env.ctx, core.DocTypeSalesOrder, env.year()); last != 0 {
		t.Errorf("expected no SO number consumed, got %d", last)
	}
}

func TestSalesOrder_CancelOnlyWhilePending(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 100)
	env.seedStock(t, widget, loc, 10)

	so := env.createSO(t, mainWH, lines(widget, 4))
	if so.Status != core.SOStatusPending {
		t.Fatalf("expected PENDING, got %s", so.Status)
	}
	if so.TotalAmount.String() != "60" {
		t.Errorf("expected 4 x 15.00 = 60, got %s", so.TotalAmount)
	}

	if _, err := env.receipts.StockOut(env.ctx, core.StockOutRequest{
		ParentType: core.ParentSalesOrder, ParentID: so.ID, WarehouseID: mainWH, ActorID: actor,
		Lines: []core.ReceiptLineInput{{ProductID: widget, LocationID: loc, Quantity: 1}},
	}); err != nil {
		t.Fatalf("StockOut failed: %v", err)
	}
	if _, err := env.sos.CancelSalesOrder(env.ctx, so.ID, actor); !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("expected ILLEGAL_STATUS_TRANSITION for a PARTIAL order, got %v", err)
	}

	other := env.createSO(t, mainWH, lines(widget, 2))
	cancelled, err := env.sos.CancelSalesOrder(env.ctx, other.ID, actor)
	if err != nil {
		t.Fatalf("CancelSalesOrder failed: %v", err)
	}
	if cancelled.Status != core.SOStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	_, err = env.receipts.StockOut(env.ctx, core.StockOutRequest{
		ParentType: core.ParentSalesOrder, ParentID: other.ID, WarehouseID: mainWH, ActorID: actor,
		Lines: []core.ReceiptLineInput{{ProductID: widget, LocationID: loc, Quantity: 1}},
	})
	if !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("expected ILLEGAL_STATUS_TRANSITION shipping a cancelled order, got %v", err)
	}

	pending, err := env.sos.ListSalesOrders(env.ctx, core.SOStatusCancelled)
	if err != nil {
		t.Fatalf("ListSalesOrders failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != other.ID {
		t.Errorf("expected only the cancelled order, got %+v", pending)
	}
}

func TestAvailability_ProjectsIncomingAndOutgoing(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 500)
	env.seedStock(t, widget, loc, 10)

	env.createPO(t, mainWH, lines(widget, 30)) // due yesterday, counts
	if _, err := env.pos.CreatePurchaseOrder(env.ctx, core.CreatePurchaseOrderInput{
		ActorID: actor, SupplierID: supplier1, WarehouseID: mainWH, ExpectedDate: time.Now().AddDate(0, 0, 30),
		Lines: lines(widget, 100),
	}); err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	env.createSO(t, mainWH, lines(widget, 12))

	asOf := time.Now().AddDate(0, 0, 7)
	report, err := env.avail.CheckAvailability(env.ctx, mainWH, asOf, []core.AvailabilityRequestLine{
		{ProductID: widget, Quantity: 28},
		{ProductID: gadget, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	w := report.Lines[0]
	if w.Current != 10 || w.ExpectedIncoming != 30 || w.PendingOutgoing != 12 || w.Available != 28 {
		t.Errorf("unexpected widget projection: %+v", w)
	}
	if !w.IsAvailable {
		t.Errorf("28 of 28 should be available")
	}
	if report.Valid {
		t.Errorf("gadget has no stock, report should be invalid")
	}
	if report.Message != "insufficient stock for product P-200: available 0, requested 1" {
		t.Errorf("unexpected message: %q", report.Message)
	}

	report, err = env.avail.CheckAvailability(env.ctx, mainWH, asOf, []core.AvailabilityRequestLine{{ProductID: 404, Quantity: 1}})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if report.Valid || report.Lines[0].Found {
		t.Errorf("unknown product must fail the report")
	}
	if !core.IsCode(report.Err(), core.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND from report.Err, got %v", report.Err())
	}

	if _, err := env.avail.CheckAvailability(env.ctx, 99, asOf, []core.AvailabilityRequestLine{{ProductID: widget, Quantity: 1}}); !core.IsCode(err, core.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown warehouse, got %v", err)
	}
}

func TestTransfer_ShipAndReceiveLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	src := env.addLocation(t, mainWH, "A-01", 100)
	dst := env.addLocation(t, eastWH, "E-01", 100)
	env.seedStock(t, widget, src, 20)

	tr, report, err := env.transfers.CreateTransfer(env.ctx, core.CreateTransferInput{
		ActorID: actor, SourceWarehouseID: mainWH, DestinationWarehouseID: eastWH,
		ExpectedDate: yesterday(), Lines: lines(widget, 10),
	})
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if tr == nil {
		t.Fatalf("transfer rejected: %s", report.Message)
	}
	if tr.Status != core.TransferStatusPending {
		t.Fatalf("expected PENDING, got %s", tr.Status)
	}

	// Pending transfer shows as outgoing at the source and incoming at the destination.
	srcView, _ := env.avail.CheckAvailability(env.ctx, mainWH, time.Now(), []core.AvailabilityRequestLine{{ProductID: widget, Quantity: 1}})
	if srcView.Lines[0].PendingOutgoing != 10 {
		t.Errorf("source pending outgoing: expected 10, got %d", srcView.Lines[0].PendingOutgoing)
	}
	dstView, _ := env.avail.CheckAvailability(env.ctx, eastWH, time.Now(), []core.AvailabilityRequestLine{{ProductID: widget, Quantity: 1}})
	if dstView.Lines[0].ExpectedIncoming != 10 {
		t.Errorf("destination expected incoming: expected 10, got %d", dstView.Lines[0].ExpectedIncoming)
	}

	ship := func(qty int) (*core.ReceiptResult, error) {
		return env.receipts.StockOut(env.ctx, core.StockOutRequest{
			ParentType: core.ParentTransfer, ParentID: tr.ID, WarehouseID: mainWH, ActorID: actor,
			Lines: []core.ReceiptLineInput{{ProductID: widget, LocationID: src, Quantity: qty}},
		})
	}
	receive := func(qty int) (*core.ReceiptResult, error) {
		return env.receipts.StockIn(env.ctx, core.StockInRequest{
			ParentType: core.ParentTransfer, ParentID: tr.ID, WarehouseID: eastWH, ActorID: actor,
			Lines: []core.ReceiptLineInput{{ProductID: widget, LocationID: dst, Quantity: qty}},
		})
	}

	if _, err := receive(1); !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("receiving before any shipment: expected ILLEGAL_STATUS_TRANSITION, got %v", err)
	}

	res, err := ship(6)
	if err != nil {
		t.Fatalf("ship 6 failed: %v", err)
	}
	if res.ParentStatus != string(core.TransferStatusPartiallyShipped) {
		t.Errorf("expected PARTIALLY_SHIPPED, got %s", res.ParentStatus)
	}
	if _, err := env.transfers.CancelTransfer(env.ctx, tr.ID, actor); !core.IsCode(err, core.ErrCodeIllegalStatusTransition) {
		t.Errorf("cancelling a shipped transfer: expected ILLEGAL_STATUS_TRANSITION, got %v", err)
	}

	if _, err := receive(7); !core.IsCode(err, core.ErrCodeInsufficientStock) {
		t.Errorf("receiving more than shipped: expected INSUFFICIENT_STOCK, got %v", err)
	}
	res, err = receive(6)
	if err != nil {
		t.Fatalf("receive 6 failed: %v", err)
	}
	if res.ParentStatus != string(core.TransferStatusPartiallyReceived) {
		t.Errorf("expected PARTIALLY_RECEIVED, got %s", res.ParentStatus)
	}

	if _, err := ship(4); err != nil {
		t.Fatalf("ship remaining 4 failed: %v", err)
	}
	res, err = receive(4)
	if err != nil {
		t.Fatalf("receive remaining 4 failed: %v", err)
	}
	if res.ParentStatus != string(core.TransferStatusReceived) {
		t.Errorf("expected RECEIVED, got %s", res.ParentStatus)
	}

	if q := env.qty(t, widget, src); q != 10 {
		t.Errorf("source: expected 10, got %d", q)
	}
	if q := env.qty(t, widget, dst); q != 10 {
		t.Errorf("destination: expected 10, got %d", q)
	}

	got, err := env.transfers.GetTransfer(env.ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetTransfer failed: %v", err)
	}
	if got.Lines[0].Shipped != 10 || got.Lines[0].Received != 10 {
		t.Errorf("unexpected line progress: %+v", got.Lines[0])
	}
	receipts, _ := env.receipts.ListReceiptsForOrder(env.ctx, core.ParentTransfer, tr.ID)
	if len(receipts) != 4 {
		t.Errorf("expected 4 receipts, got %d", len(receipts))
	}
}

func TestTransfer_Validation(t *testing.T) {
	env := setupTestEnv(t)
	loc := env.addLocation(t, mainWH, "A-01", 100)
	env.seedStock(t, widget, loc, 3)

	_, _, err := env.transfers.CreateTransfer(env.ctx, core.CreateTransferInput{
		SourceWarehouseID: mainWH, DestinationWarehouseID: mainWH, ExpectedDate: tomorrow(), Lines: lines(widget, 1),
	})
	if !core.IsCode(err, core.ErrCodeInvalidRequest) {
		t.Errorf("same source and destination: expected INVALID_REQUEST, got %v", err)
	}

	tr, report, err := env.transfers.CreateTransfer(env.ctx, core.CreateTransferInput{
		SourceWarehouseID: mainWH, DestinationWarehouseID: eastWH, ExpectedDate: tomorrow(), Lines: lines(widget, 4),
	})
	if err != nil {
		t.Fatalf("CreateTransfer returned error: %v", err)
	}
	if tr != nil || report.Valid {
		t.Errorf("expected availability rejection, got transfer %+v", tr)
	}

	tr, _, err = env.transfers.CreateTransfer(env.ctx, core.CreateTransferInput{
		SourceWarehouseID: mainWH, DestinationWarehouseID: eastWH, ExpectedDate: tomorrow(), Lines: lines(widget, 3),
	})
	if err != nil || tr == nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	cancelled, err := env.transfers.CancelTransfer(env.ctx, tr.ID, actor)
	if err != nil {
		t.Fatalf("CancelTransfer failed: %v", err)
	}
	if cancelled.Status != core.TransferStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
}
