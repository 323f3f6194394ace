package models

import (
	"time"
)

// SuspiciousActivity is an advisory alert raised by the anomaly detector,
// e.g. rapid withdrawals. Alerts never block a transaction; they are queued
// for human review.
type SuspiciousActivity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"size:40;not null;index" json:"type"`
	Description string    `gorm:"size:512" json:"description"`
	Evidence    string    `gorm:"type:text" json:"evidence"` // JSON
	RiskScore   int       `gorm:"not null;default:0" json:"risk_score"`
	Severity    string    `gorm:"size:10;not null" json:"severity"`
	Status      string    `gorm:"size:20;not null;index;default:'OPEN'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (SuspiciousActivity) TableName() string {
	return "suspicious_activities"
}
