package models

import (
	"time"

	"gorm.io/gorm"
)

// Order is a contracted materials order between a customer and a contractor
// (or the supplier directly), split into delivery phases for payment.
type Order struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CustomerID   uint           `gorm:"not null;index" json:"customer_id"`
	ContractorID *uint          `gorm:"index" json:"contractor_id,omitempty"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Status       string         `gorm:"size:20;not null;index;default:'ACTIVE'" json:"status"`
	TotalValue   int64          `gorm:"not null;default:0" json:"total_value"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Customer User            `gorm:"foreignKey:CustomerID" json:"-"`
	Phases   []DeliveryPhase `gorm:"foreignKey:OrderID" json:"phases,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}
