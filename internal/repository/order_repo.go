package repository

import (
	"buildmart/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetWithPhases(id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.Preload("Phases").First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) ListByCustomer(customerID uint, limit, offset int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Where("customer_id = ?", customerID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
