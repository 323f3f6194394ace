package repository

import (
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"

	"gorm.io/gorm"
)

type PhaseRepository struct {
	db *gorm.DB
}

func NewPhaseRepository(db *gorm.DB) *PhaseRepository {
	return &PhaseRepository{db: db}
}

func (r *PhaseRepository) Create(p *models.DeliveryPhase) error {
	return r.db.Create(p).Error
}

func (r *PhaseRepository) GetByID(id uint) (*models.DeliveryPhase, error) {
	var p models.DeliveryPhase
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhaseRepository) ListByOrderID(orderID uint) ([]models.DeliveryPhase, error) {
	var list []models.DeliveryPhase
	err := r.db.Where("order_id = ?", orderID).Order("phase_number ASC").Find(&list).Error
	return list, err
}

// Upcoming returns phases scheduled within the next `days` days that have
// not started moving yet.
func (r *PhaseRepository) Upcoming(days int) ([]models.DeliveryPhase, error) {
	now := time.Now()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	var list []models.DeliveryPhase
	err := r.db.Where("scheduled_date >= ? AND scheduled_date <= ? AND status IN ?",
		now, until, []string{domain.PhasePending, domain.PhasePreparing, domain.PhaseReady}).
		Order("scheduled_date ASC").Find(&list).Error
	return list, err
}
