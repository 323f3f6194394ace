package database

import (
	"errors"

	"buildmart/config"
	"buildmart/internal/domain"
	"buildmart/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Order{},
		&models.DeliveryPhase{},
		&models.Payment{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.AuditLog{},
		&models.UserRestriction{},
		&models.SuspiciousActivity{},
	)
}

// SeedAdmin creates the initial admin account if no admin exists yet.
// The password must be changed on first login.
func SeedAdmin(db *gorm.DB) error {
	var admin models.User
	err := db.Where("role = ?", domain.RoleAdmin).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("change-me-on-first-login"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Email:        "admin@buildmart.vn",
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		FullName:     "Platform Admin",
	}).Error
}
