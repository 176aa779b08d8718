package core

import "time"

// PurchaseOrderStatus is the state of a purchase order:
//
//	ORDERED → READY_TO_RECEIVE → PARTIALLY_RECEIVED → RECEIVED
//	ORDERED → CANCELLED
type PurchaseOrderStatus string

const (
	POStatusOrdered           PurchaseOrderStatus = "ORDERED"
	POStatusReadyToReceive    PurchaseOrderStatus = "READY_TO_RECEIVE"
	POStatusPartiallyReceived PurchaseOrderStatus = "PARTIALLY_RECEIVED"
	POStatusReceived          PurchaseOrderStatus = "RECEIVED"
	POStatusCancelled         PurchaseOrderStatus = "CANCELLED"
)

var purchaseOrderStatuses = []PurchaseOrderStatus{
	POStatusOrdered, POStatusReadyToReceive, POStatusPartiallyReceived, POStatusReceived, POStatusCancelled,
}

var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	POStatusOrdered:           {POStatusReadyToReceive, POStatusPartiallyReceived, POStatusReceived, POStatusCancelled},
	POStatusReadyToReceive:    {POStatusPartiallyReceived, POStatusReceived},
	POStatusPartiallyReceived: {POStatusReceived},
}

// Valid reports whether s is one of the known purchase order states.
func (s PurchaseOrderStatus) Valid() bool {
	switch s {
	case POStatusOrdered, POStatusReadyToReceive, POStatusPartiallyReceived, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo is the single source of purchase order transition legality.
// Staying in the same state is always legal.
func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range purchaseOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanReceive reports whether goods may be booked in against an order in this state.
func (s PurchaseOrderStatus) CanReceive() bool {
	return s == POStatusOrdered || s == POStatusReadyToReceive || s == POStatusPartiallyReceived
}

// AwaitingReceipt reports whether the order counts as approved but not yet received.
func (s PurchaseOrderStatus) AwaitingReceipt() bool {
	return s == POStatusOrdered || s == POStatusReadyToReceive
}

// purchaseOrdersAwaitingReceipt lists the states counted as expected incoming stock.
func purchaseOrdersAwaitingReceipt() []string {
	return statusNames(purchaseOrderStatuses, PurchaseOrderStatus.AwaitingReceipt)
}

// SalesOrderStatus is the state of a sales order:
//
//	PENDING → PARTIAL → COMPLETED
//	PENDING → CANCELLED
type SalesOrderStatus string

const (
	SOStatusPending   SalesOrderStatus = "PENDING"
	SOStatusPartial   SalesOrderStatus = "PARTIAL"
	SOStatusCompleted SalesOrderStatus = "COMPLETED"
	SOStatusCancelled SalesOrderStatus = "CANCELLED"
)

var salesOrderStatuses = []SalesOrderStatus{SOStatusPending, SOStatusPartial, SOStatusCompleted, SOStatusCancelled}

var salesOrderTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SOStatusPending: {SOStatusPartial, SOStatusCompleted, SOStatusCancelled},
	SOStatusPartial: {SOStatusCompleted},
}

func (s SalesOrderStatus) Valid() bool {
	switch s {
	case SOStatusPending, SOStatusPartial, SOStatusCompleted, SOStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo is the single source of sales order transition legality.
func (s SalesOrderStatus) CanTransitionTo(next SalesOrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range salesOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanShip reports whether goods may be shipped against an order in this state.
func (s SalesOrderStatus) CanShip() bool {
	return s == SOStatusPending || s == SOStatusPartial
}

// AwaitingShipment reports whether nothing has shipped yet on a live order.
func (s SalesOrderStatus) AwaitingShipment() bool {
	return s == SOStatusPending
}

func salesOrdersAwaitingShipment() []string {
	return statusNames(salesOrderStatuses, SalesOrderStatus.AwaitingShipment)
}

// TransferStatus is the state of an inter-warehouse transfer:
//
//	PENDING → PARTIALLY_SHIPPED → SHIPPED → PARTIALLY_RECEIVED → RECEIVED
//	PENDING → CANCELLED
type TransferStatus string

const (
	TransferStatusPending           TransferStatus = "PENDING"
	TransferStatusPartiallyShipped  TransferStatus = "PARTIALLY_SHIPPED"
	TransferStatusShipped           TransferStatus = "SHIPPED"
	TransferStatusPartiallyReceived TransferStatus = "PARTIALLY_RECEIVED"
	TransferStatusReceived          TransferStatus = "RECEIVED"
	TransferStatusCancelled         TransferStatus = "CANCELLED"
)

var transferStatuses = []TransferStatus{
	TransferStatusPending, TransferStatusPartiallyShipped, TransferStatusShipped,
	TransferStatusPartiallyReceived, TransferStatusReceived, TransferStatusCancelled,
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending: {
		TransferStatusPartiallyShipped, TransferStatusShipped,
		TransferStatusPartiallyReceived, TransferStatusReceived, TransferStatusCancelled,
	},
	TransferStatusPartiallyShipped:  {TransferStatusShipped, TransferStatusPartiallyReceived, TransferStatusReceived},
	TransferStatusShipped:           {TransferStatusPartiallyReceived, TransferStatusReceived},
	TransferStatusPartiallyReceived: {TransferStatusReceived},
}

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusPending, TransferStatusPartiallyShipped, TransferStatusShipped,
		TransferStatusPartiallyReceived, TransferStatusReceived, TransferStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo is the single source of transfer transition legality.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanShip reports whether the source warehouse may still ship against the transfer.
// Receiving can start before everything has shipped, so PARTIALLY_RECEIVED still ships.
func (s TransferStatus) CanShip() bool {
	return s == TransferStatusPending || s == TransferStatusPartiallyShipped || s == TransferStatusPartiallyReceived
}

// CanReceive reports whether the destination may book goods in. Nothing can arrive before something left.
func (s TransferStatus) CanReceive() bool {
	return s == TransferStatusPartiallyShipped || s == TransferStatusShipped || s == TransferStatusPartiallyReceived
}

// AwaitingShipment reports whether the source warehouse has not shipped anything yet.
func (s TransferStatus) AwaitingShipment() bool {
	return s == TransferStatusPending
}

// AwaitingReceipt reports whether the transfer is live and the destination has booked nothing in.
func (s TransferStatus) AwaitingReceipt() bool {
	return s == TransferStatusPending || s == TransferStatusPartiallyShipped || s == TransferStatusShipped
}

func transfersAwaitingShipment() []string {
	return statusNames(transferStatuses, TransferStatus.AwaitingShipment)
}

func transfersAwaitingReceipt() []string {
	return statusNames(transferStatuses, TransferStatus.AwaitingReceipt)
}

// statusNames returns the names of the states in all that satisfy keep, for SQL ANY($n) filters.
func statusNames[S ~string](all []S, keep func(S) bool) []string {
	var out []string
	for _, s := range all {
		if keep(s) {
			out = append(out, string(s))
		}
	}
	return out
}

// ── Derivation ────────────────────────────────────────────────────────────────

// LineProgress is how much of one order line has physically moved.
// For transfers Shipped and Received are tracked separately; for purchase orders only
// Received is used and for sales orders only Shipped.
type LineProgress struct {
	ProductID int
	Ordered   int
	Shipped   int
	Received  int
}

// DerivePurchaseOrderStatus computes the status implied by the receipt history.
// With nothing received the current state is kept, so ORDERED and READY_TO_RECEIVE are preserved.
func DerivePurchaseOrderStatus(current PurchaseOrderStatus, lines []LineProgress) (PurchaseOrderStatus, error) {
	next := current
	if allMoved(lines, func(l LineProgress) int { return l.Received }) {
		next = POStatusReceived
	} else if anyMoved(lines, func(l LineProgress) int { return l.Received }) {
		next = POStatusPartiallyReceived
	}
	if !current.CanTransitionTo(next) {
		return current, Newf(ErrCodeIllegalStatusTransition,
			"purchase order cannot move from %s to %s", current, next)
	}
	return next, nil
}

// DeriveSalesOrderStatus computes the status implied by the shipment history.
func DeriveSalesOrderStatus(current SalesOrderStatus, lines []LineProgress) (SalesOrderStatus, error) {
	next := current
	if allMoved(lines, func(l LineProgress) int { return l.Shipped }) {
		next = SOStatusCompleted
	} else if anyMoved(lines, func(l LineProgress) int { return l.Shipped }) {
		next = SOStatusPartial
	}
	if !current.CanTransitionTo(next) {
		return current, Newf(ErrCodeIllegalStatusTransition,
			"sales order cannot move from %s to %s", current, next)
	}
	return next, nil
}

// DeriveTransferStatus computes the status implied by shipments out of the source
// and receipts into the destination. Receiving dominates shipping.
func DeriveTransferStatus(current TransferStatus, lines []LineProgress) (TransferStatus, error) {
	received := func(l LineProgress) int { return l.Received }
	shipped := func(l LineProgress) int { return l.Shipped }

	next := current
	switch {
	case allMoved(lines, received):
		next = TransferStatusReceived
	case anyMoved(lines, received):
		next = TransferStatusPartiallyReceived
	case allMoved(lines, shipped):
		next = TransferStatusShipped
	case anyMoved(lines, shipped):
		next = TransferStatusPartiallyShipped
	}
	if !current.CanTransitionTo(next) {
		return current, Newf(ErrCodeIllegalStatusTransition,
			"transfer cannot move from %s to %s", current, next)
	}
	return next, nil
}

// ShouldBecomeReadyToReceive reports whether the time-based ORDERED → READY_TO_RECEIVE
// transition applies at now. Dates compare at day granularity.
func ShouldBecomeReadyToReceive(status PurchaseOrderStatus, expectedDate, now time.Time) bool {
	if status != POStatusOrdered {
		return false
	}
	return !truncateDay(now).Before(truncateDay(expectedDate))
}

func allMoved(lines []LineProgress, moved func(LineProgress) int) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if moved(l) < l.Ordered {
			return false
		}
	}
	return true
}

func anyMoved(lines []LineProgress, moved func(LineProgress) int) bool {
	for _, l := range lines {
		if moved(l) > 0 {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
