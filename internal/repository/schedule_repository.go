package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/database"
	"github.com/yukikurage/catena-api/internal/models"
)

// GormScheduleRepository is a GORM implementation of ScheduleRepository
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindOpenForDay lists a task's undone schedules due on day.
func (r *GormScheduleRepository) FindOpenForDay(ctx context.Context, taskID, ownerID uint64, day datatypes.Date) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerID)).
		Where("task_id = ? AND done = ? AND due_date = ?", taskID, false, day).
		Order("window_from ASC, id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindOwned finds an active schedule of the owner.
func (r *GormScheduleRepository) FindOwned(ctx context.Context, id, ownerID uint64) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerID)).
		Where("id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// MarkDone flips an undone schedule to done. A schedule that is already done
// reports gorm.ErrRecordNotFound.
func (r *GormScheduleRepository) MarkDone(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND done = ?", id, false).
		Update("done", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateRemarks replaces the remarks of a schedule.
func (r *GormScheduleRepository) UpdateRemarks(ctx context.Context, id uint64, remarks string) error {
	return r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("remarks", remarks).Error
}
