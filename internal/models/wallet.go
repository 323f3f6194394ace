package models

import (
	"time"
)

// Wallet is the custodial balance record for one platform account.
// Balance is withdrawable now; HoldBalance is escrowed against delivery
// phases and only moves to Balance through an escrow release. Wallets are
// created lazily on the first financial event and never deleted.
type Wallet struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"uniqueIndex;not null" json:"owner_id"`
	Balance     int64     `gorm:"not null;default:0" json:"balance"`
	HoldBalance int64     `gorm:"not null;default:0" json:"hold_balance"`
	TotalEarned int64     `gorm:"not null;default:0" json:"total_earned"`
	Currency    string    `gorm:"size:3;default:'VND'" json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
