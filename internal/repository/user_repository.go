package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/models"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create inserts the user unless the email is already registered.
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, user.Email, 0); err != nil {
			return err
		}
		return tx.Omit("Tasks").Create(user).Error
	})
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by normalized email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindWithTasks loads the user with active tasks and their schedules.
func (r *GormUserRepository) FindWithTasks(ctx context.Context, id uint64) (*models.User, error) {
	db := r.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}

	user.Tasks = []models.Task{}
	if err := db.Where("owner_id = ?", id).Order("created_at DESC, id DESC").Find(&user.Tasks).Error; err != nil {
		return nil, err
	}

	ptrs := make([]*models.Task, len(user.Tasks))
	for i := range user.Tasks {
		ptrs[i] = &user.Tasks[i]
	}
	if err := attachSchedules(db, ptrs); err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateProfile saves username and email, keeping email unique.
func (r *GormUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, user.Email, user.ID); err != nil {
			return err
		}
		return tx.Model(user).Updates(map[string]interface{}{
			"username": user.Username,
			"email":    user.Email,
		}).Error
	})
}

// UpdatePassword stores a new password hash.
func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func ensureEmailFree(tx *gorm.DB, email string, exceptID uint64) error {
	query := tx.Model(&models.User{}).Unscoped().Where("email = ?", email)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}
