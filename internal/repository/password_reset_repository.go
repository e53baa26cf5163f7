package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/models"
)

// GormPasswordResetRepository is a GORM implementation of PasswordResetRepository
type GormPasswordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &GormPasswordResetRepository{db: db}
}

// Replace drops earlier tokens for the email and stores reset.
func (r *GormPasswordResetRepository) Replace(ctx context.Context, reset *models.PasswordReset) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", reset.Email).Delete(&models.PasswordReset{}).Error; err != nil {
			return err
		}
		return tx.Create(reset).Error
	})
}

// Take returns the latest token for the email and deletes every token for it.
func (r *GormPasswordResetRepository) Take(ctx context.Context, email string) (*models.PasswordReset, error) {
	var reset models.PasswordReset

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Order("created_at DESC, id DESC").First(&reset).Error; err != nil {
			return err
		}
		return tx.Where("email = ?", email).Delete(&models.PasswordReset{}).Error
	})
	if err != nil {
		return nil, err
	}

	return &reset, nil
}

// PurgeOlderThan deletes tokens created before cutoff.
func (r *GormPasswordResetRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.PasswordReset{})
	return result.RowsAffected, result.Error
}
