package repository

import (
	"buildmart/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func (r *WithdrawalRepository) Create(w *models.Withdrawal) error {
	return r.db.Create(w).Error
}

func (r *WithdrawalRepository) GetByID(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByIdempotencyKey(key string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.Where("idempotency_key = ?", key).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) Update(w *models.Withdrawal) error {
	return r.db.Save(w).Error
}

func (r *WithdrawalRepository) ListByUser(userID uint, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListPending is the operator review queue, flagged requests first.
func (r *WithdrawalRepository) ListPending(limit int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.Where("status = ?", "PENDING").
		Order("flagged DESC, created_at ASC").Limit(limit).Find(&list).Error
	return list, err
}
