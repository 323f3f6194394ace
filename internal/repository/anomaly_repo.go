package repository

import (
	"buildmart/internal/models"

	"gorm.io/gorm"
)

type AnomalyRepository struct {
	db *gorm.DB
}

func NewAnomalyRepository(db *gorm.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

func (r *AnomalyRepository) Create(alert *models.SuspiciousActivity) error {
	return r.db.Create(alert).Error
}

func (r *AnomalyRepository) ListOpen(limit int) ([]models.SuspiciousActivity, error) {
	var list []models.SuspiciousActivity
	err := r.db.Where("status = ?", "OPEN").
		Order("risk_score DESC, created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *AnomalyRepository) SetStatus(id uint, status string) error {
	return r.db.Model(&models.SuspiciousActivity{}).
		Where("id = ?", id).Update("status", status).Error
}
