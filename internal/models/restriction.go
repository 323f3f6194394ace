package models

import (
	"time"
)

// UserRestriction is an externally imposed block on an account. An active
// FULL_BAN or WALLET_HOLD prevents withdrawals; the ledger consults these
// rows through the restriction authority before moving money out.
type UserRestriction struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	Type     string `gorm:"size:30;not null;index" json:"type"`
	Reason   string `gorm:"size:255;not null" json:"reason"`
	IsActive bool   `gorm:"not null;default:true;index" json:"is_active"`

	EndDate   *time.Time `json:"end_date"` // nil = permanent
	ImposedBy uint       `gorm:"not null" json:"imposed_by"`

	LiftedAt   *time.Time `json:"lifted_at"`
	LiftedBy   *uint      `json:"lifted_by"`
	LiftReason string     `gorm:"size:255" json:"lift_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (UserRestriction) TableName() string {
	return "user_restrictions"
}
