package models

import (
	"time"
)

// DeliveryPhase is one milestone of an order: foundation materials, rough
// construction, finishing, and so on. Each phase carries its own deposit,
// escrow and release lifecycle, independent of sibling phases. Phases are
// never deleted; cancellation is a terminal status.
type DeliveryPhase struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderID     uint   `gorm:"not null;index" json:"order_id"`
	PhaseNumber int    `gorm:"not null" json:"phase_number"`
	PhaseName   string `gorm:"size:255;not null" json:"phase_name"`
	Description string `gorm:"type:text" json:"description"`

	Items     string `gorm:"type:text" json:"items"` // JSON snapshot of the order items in this phase
	ItemCount int    `gorm:"not null;default:0" json:"item_count"`

	Status        string `gorm:"size:20;not null;index;default:'PENDING'" json:"status"`
	PaymentStatus string `gorm:"size:20;not null;index;default:'UNPAID'" json:"payment_status"`

	PhaseValue      int64  `gorm:"not null;default:0" json:"phase_value"`
	DepositRequired int64  `gorm:"not null;default:0" json:"deposit_required"`
	PaidAmount      int64  `gorm:"not null;default:0" json:"paid_amount"`
	PaymentMethod   string `gorm:"size:30" json:"payment_method"`
	EscrowedAmount  int64  `gorm:"not null;default:0" json:"escrowed_amount"`

	RecipientWalletID *uint `gorm:"index" json:"recipient_wallet_id,omitempty"`

	// Delivery tracking metadata, attached as the phase advances.
	CarrierName       string `gorm:"size:100" json:"carrier_name"`
	TrackingNumber    string `gorm:"size:100" json:"tracking_number"`
	DeliveryProof     string `gorm:"size:512" json:"delivery_proof"` // proof-of-delivery image URL
	ReceiverName      string `gorm:"size:100" json:"receiver_name"`
	ReceiverSignature string `gorm:"size:512" json:"receiver_signature"`

	ScheduledDate *time.Time `json:"scheduled_date"`
	ActualDate    *time.Time `json:"actual_date"`
	DepositPaidAt *time.Time `json:"deposit_paid_at"`
	ConfirmedBy   *uint      `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	ReleasedAt    *time.Time `json:"released_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (DeliveryPhase) TableName() string {
	return "delivery_phases"
}
