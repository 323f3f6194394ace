package models

import (
	"time"
)

// Withdrawal is the human-facing record of a pending cash-out: operators
// review this queue and execute the bank transfer manually. The linked
// wallet transaction is the authoritative ledger entry.
type Withdrawal struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UserID        uint   `gorm:"not null;index" json:"user_id"`
	OrderID       string `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	TransactionID uint   `gorm:"uniqueIndex;not null" json:"transaction_id"`
	Amount        int64  `gorm:"not null" json:"amount"`

	BankName      string `gorm:"size:100;not null" json:"bank_name"`
	AccountNumber string `gorm:"size:50;not null" json:"account_number"`
	AccountHolder string `gorm:"size:100;not null" json:"account_holder"`

	Status  string `gorm:"size:20;not null;index" json:"status"` // PENDING, COMPLETED, FAILED
	Flagged bool   `gorm:"not null;default:false" json:"flagged"`

	IdempotencyKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	FailReason  string     `gorm:"size:255" json:"fail_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
