package models

import (
	"time"
)

// WalletTransaction is one append-only ledger entry. Every wallet balance
// mutation writes exactly one row in the same database transaction, so
// replaying PENDING and COMPLETED rows in id order reproduces the wallet's
// balance and hold balance. Amount is never changed after creation; only
// Status moves forward.
type WalletTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WalletID     uint      `gorm:"not null;index" json:"wallet_id"`
	Amount       int64     `gorm:"not null" json:"amount"` // signed: negative = outflow
	Type         string    `gorm:"size:30;not null;index" json:"type"`
	Status       string    `gorm:"size:20;not null;index" json:"status"`
	Description  string    `gorm:"size:255" json:"description"`
	Metadata     string    `gorm:"type:text" json:"metadata"` // JSON: bank details, phase id, review flags
	ReversalOfID *uint     `gorm:"index" json:"reversal_of_id,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Wallet Wallet `gorm:"foreignKey:WalletID" json:"-"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
