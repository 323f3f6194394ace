package models

import (
	"time"
)

// AuditLog is an append-only record of sensitive actions: every ledger and
// phase mutation, every restriction change, and every blocked attempt.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    *uint     `gorm:"index" json:"actor_id"`
	Action     string    `gorm:"size:100;not null;index" json:"action"`
	EntityType string    `gorm:"size:100;index" json:"entity_type"`
	EntityID   uint      `gorm:"index" json:"entity_id"`
	Severity   string    `gorm:"size:10;default:'INFO'" json:"severity"`
	Metadata   string    `gorm:"type:text" json:"metadata"` // JSON: old/new values, amount, reason
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
