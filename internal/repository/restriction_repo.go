package repository

import (
	"errors"
	"time"

	"buildmart/internal/models"

	"gorm.io/gorm"
)

type RestrictionRepository struct {
	db *gorm.DB
}

func NewRestrictionRepository(db *gorm.DB) *RestrictionRepository {
	return &RestrictionRepository{db: db}
}

func (r *RestrictionRepository) Create(restriction *models.UserRestriction) error {
	return r.db.Create(restriction).Error
}

func (r *RestrictionRepository) GetByID(id uint) (*models.UserRestriction, error) {
	var restriction models.UserRestriction
	if err := r.db.First(&restriction, id).Error; err != nil {
		return nil, err
	}
	return &restriction, nil
}

func (r *RestrictionRepository) Update(restriction *models.UserRestriction) error {
	return r.db.Save(restriction).Error
}

// ActiveByTypes returns the first active, unexpired restriction of any of
// the given types, or nil when the user is clear.
func (r *RestrictionRepository) ActiveByTypes(userID uint, types []string) (*models.UserRestriction, error) {
	var restriction models.UserRestriction
	err := r.db.Where("user_id = ? AND type IN ? AND is_active = ?", userID, types, true).
		Where("end_date IS NULL OR end_date > ?", time.Now()).
		Order("created_at DESC").First(&restriction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &restriction, nil
}

func (r *RestrictionRepository) ListByUser(userID uint) ([]models.UserRestriction, error) {
	var list []models.UserRestriction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}
