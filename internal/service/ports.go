package service

// Collaborator contracts consumed by the payment core. The ledger and the
// withdrawal orchestrator depend on these interfaces rather than on the
// concrete services, so tests can simulate "blocked", "flagged" and
// "audit failed" without a real policy engine.

// RestrictionAuthority answers whether an account may currently withdraw.
type RestrictionAuthority interface {
	CanWithdraw(userID uint) (allowed bool, restrictionType, reason string, err error)
}

// AnomalyDetector flags suspicious withdrawal velocity. Advisory only: a
// flagged verdict is stored with the transaction, never used to block it.
type AnomalyDetector interface {
	CheckWithdrawalVelocity(userID uint) (flagged bool, err error)
}

// AuditRecorder appends an immutable record of a sensitive action.
// Implementations must never fail the caller: a broken audit sink is logged
// and retried by the recorder, not by the ledger.
type AuditRecorder interface {
	Record(actorID *uint, action, entityType string, entityID uint, metadata map[string]interface{}, severity string)
}

// Notifier delivers a human-facing notification. Fire-and-forget relative
// to the financial transaction's commit.
type Notifier interface {
	Notify(userID uint, notifType, title, body, priority string, data map[string]interface{})
}
