package domain

const (
	RoleAdmin      = "ADMIN"
	RoleCustomer   = "CUSTOMER"
	RoleContractor = "CONTRACTOR"
	RoleSupplier   = "SUPPLIER"
)

// Wallet transaction types. Amounts are signed: negative = outflow.
const (
	TxnTypeDeposit       = "DEPOSIT"
	TxnTypeEscrowHold    = "ESCROW_HOLD"
	TxnTypeEscrowRelease = "ESCROW_RELEASE"
	TxnTypeWithdrawal    = "WITHDRAWAL"
	TxnTypeReversal      = "REVERSAL"
)

const (
	TxnStatusPending   = "PENDING"
	TxnStatusCompleted = "COMPLETED"
	TxnStatusFailed    = "FAILED"
	TxnStatusReversed  = "REVERSED"
)

// Delivery phase operational statuses.
const (
	PhasePending   = "PENDING"
	PhasePreparing = "PREPARING"
	PhaseReady     = "READY"
	PhaseInTransit = "IN_TRANSIT"
	PhaseDelivered = "DELIVERED"
	PhaseConfirmed = "CONFIRMED"
	PhaseCancelled = "CANCELLED"
)

// Delivery phase payment statuses.
const (
	PhaseUnpaid      = "UNPAID"
	PhaseDepositPaid = "DEPOSIT_PAID"
	PhaseEscrowed    = "ESCROWED"
	PhaseReleased    = "RELEASED"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusFailed    = "FAILED"
)

// Restriction types. FULL_BAN and WALLET_HOLD block withdrawals.
const (
	RestrictionFullBan        = "FULL_BAN"
	RestrictionMarketplaceBan = "MARKETPLACE_BAN"
	RestrictionWalletHold     = "WALLET_HOLD"
	RestrictionBiddingBan     = "BIDDING_BAN"
	RestrictionProbation      = "PROBATION"
)

const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// phaseTransitions holds the allowed updateStatus edges. CONFIRMED is not a
// valid target here: it is only reachable through confirm-and-release.
var phaseTransitions = map[string][]string{
	PhasePending:   {PhasePreparing, PhaseCancelled},
	PhasePreparing: {PhaseReady, PhaseCancelled},
	PhaseReady:     {PhaseInTransit, PhaseCancelled},
	PhaseInTransit: {PhaseDelivered, PhaseCancelled},
	PhaseDelivered: {PhaseCancelled},
}

// CanTransition reports whether a phase may move from -> to via updateStatus.
func CanTransition(from, to string) bool {
	for _, t := range phaseTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// PhaseTerminal reports whether a phase status admits no further transitions.
func PhaseTerminal(status string) bool {
	return status == PhaseConfirmed || status == PhaseCancelled
}
