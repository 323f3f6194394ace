package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username     string         `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // ADMIN, CUSTOMER, CONTRACTOR, SUPPLIER
	FullName     string         `gorm:"size:255" json:"full_name"`
	Phone        string         `gorm:"size:20" json:"phone"`
	CompanyName  string         `gorm:"size:255" json:"company_name"`
	FCMToken     string         `gorm:"size:512" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
