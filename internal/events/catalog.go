package events

// Event type constants. The catalog below is the closed set the bus checks
// drafts against; an unknown type is logged but still emitted, so adding a
// type here is a bookkeeping step, not a deploy-order hazard.
const (
	TypeOrderCreated          = "order.created"
	TypeOrderFundsReserved    = "order.funds_reserved"
	TypeOrderEscrowCreating   = "order.escrow_creating"
	TypeOrderEscrowFunding    = "order.escrow_funding"
	TypeOrderEscrowFunded     = "order.escrow_funded"
	TypeOrderStarted          = "order.started"
	TypeOrderReleaseRequested = "order.release_requested"
	TypeOrderReleased         = "order.released"
	TypeOrderRefundRequested  = "order.refund_requested"
	TypeOrderRefunded         = "order.refunded"
	TypeOrderDisputed         = "order.disputed"
	TypeOrderClosed           = "order.closed"

	TypeEscrowCreated  = "escrow.created"
	TypeEscrowFunded   = "escrow.funded"
	TypeEscrowReleased = "escrow.released"
	TypeEscrowRefunded = "escrow.refunded"
	TypeEscrowDisputed = "escrow.disputed"

	TypeTopUpInitiated  = "topup.initiated"
	TypeTopUpProcessing = "topup.processing"
	TypeTopUpSucceeded  = "topup.succeeded"
	TypeTopUpFailed     = "topup.failed"
	TypeTopUpExpired    = "topup.expired"

	TypeWithdrawalRequested  = "withdrawal.requested"
	TypeWithdrawalProcessing = "withdrawal.processing"
	TypeWithdrawalCompleted  = "withdrawal.completed"
	TypeWithdrawalFailed     = "withdrawal.failed"
	TypeWithdrawalRejected   = "withdrawal.rejected"
	TypeWithdrawalCancelled  = "withdrawal.cancelled"

	TypeDisputeOpened      = "dispute.opened"
	TypeDisputeUnderReview = "dispute.under_review"
	TypeDisputeWithdrawn   = "dispute.withdrawn"
	TypeDisputeResolved    = "dispute.resolved"
)

var catalog = map[string]struct{}{
	TypeOrderCreated:          {},
	TypeOrderFundsReserved:    {},
	TypeOrderEscrowCreating:   {},
	TypeOrderEscrowFunding:    {},
	TypeOrderEscrowFunded:     {},
	TypeOrderStarted:          {},
	TypeOrderReleaseRequested: {},
	TypeOrderReleased:         {},
	TypeOrderRefundRequested:  {},
	TypeOrderRefunded:         {},
	TypeOrderDisputed:         {},
	TypeOrderClosed:           {},
	TypeEscrowCreated:         {},
	TypeEscrowFunded:          {},
	TypeEscrowReleased:        {},
	TypeEscrowRefunded:        {},
	TypeEscrowDisputed:        {},
	TypeTopUpInitiated:        {},
	TypeTopUpProcessing:       {},
	TypeTopUpSucceeded:        {},
	TypeTopUpFailed:           {},
	TypeTopUpExpired:          {},
	TypeWithdrawalRequested:   {},
	TypeWithdrawalProcessing:  {},
	TypeWithdrawalCompleted:   {},
	TypeWithdrawalFailed:      {},
	TypeWithdrawalRejected:    {},
	TypeWithdrawalCancelled:   {},
	TypeDisputeOpened:         {},
	TypeDisputeUnderReview:    {},
	TypeDisputeWithdrawn:      {},
	TypeDisputeResolved:       {},
}

// InCatalog reports whether eventType belongs to the known set.
func InCatalog(eventType string) bool {
	_, ok := catalog[eventType]
	return ok
}
