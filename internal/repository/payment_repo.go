package repository

import (
	"buildmart/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByProviderRef(ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("provider_ref = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIdempotencyKey(key string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("idempotency_key = ?", key).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkCompleted flips a payment to COMPLETED exactly once; a second webhook
// delivery for the same reference affects zero rows.
func (r *PaymentRepository) MarkCompleted(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, "PENDING").
		Updates(map[string]interface{}{"status": "COMPLETED", "completed_at": gorm.Expr("CURRENT_TIMESTAMP")})
	return res.RowsAffected > 0, res.Error
}

func (r *PaymentRepository) Update(p *models.Payment) error {
	return r.db.Save(p).Error
}
