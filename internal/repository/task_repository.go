package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yukikurage/catena-api/internal/database"
	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/scheduling"
	"github.com/yukikurage/catena-api/internal/utils"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// openPendingFrom matches schedules that are still open and due on or after
// today. Archive and restore both cascade along it.
func openPendingFrom(today datatypes.Date) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("done = ? AND due_date >= ?", false, today)
	}
}

func archiveScope(filter ArchiveFilter) func(db *gorm.DB) *gorm.DB {
	switch filter {
	case ArchiveInclude:
		return database.WithTrashed
	case ArchiveOnly:
		return database.OnlyTrashed
	default:
		return database.Active
	}
}

// CreateWithSchedules inserts the task and its schedules in one transaction.
func (r *GormTaskRepository) CreateWithSchedules(ctx context.Context, task *models.Task, entries []scheduling.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, task.OwnerID, task.Name, 0); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}

		task.Schedules = scheduling.Build(entries, task.ID, task.OwnerID)
		if len(task.Schedules) > 0 {
			if err := tx.Create(&task.Schedules).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// FindOwned finds a task of the owner, honoring the archive filter.
func (r *GormTaskRepository) FindOwned(ctx context.Context, id, ownerID uint64, archived ArchiveFilter) (*models.Task, error) {
	var task models.Task
	db := r.db.WithContext(ctx)

	err := db.Scopes(archiveScope(archived), database.OwnedBy(ownerID)).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}

	if err := attachSchedules(db, []*models.Task{&task}); err != nil {
		return nil, err
	}

	return &task, nil
}

// FindPublic finds an active public task regardless of owner. The owner
// is loaded alongside.
func (r *GormTaskRepository) FindPublic(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	db := r.db.WithContext(ctx)

	err := db.Where("id = ? AND visibility = ?", id, models.VisibilityPublic).
		First(&task).Error
	if err != nil {
		return nil, err
	}

	if err := db.First(&task.Owner, task.OwnerID).Error; err != nil {
		return nil, err
	}

	if err := attachSchedules(db, []*models.Task{&task}); err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves an owner's tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.Task{}).
		Scopes(archiveScope(filter.Archived), database.OwnedBy(filter.OwnerID))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC, id DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	tasks := []models.Task{}
	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	ptrs := make([]*models.Task, len(tasks))
	for i := range tasks {
		ptrs[i] = &tasks[i]
	}
	if err := attachSchedules(db, ptrs); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update applies scalar changes and reconciles schedules in one transaction.
func (r *GormTaskRepository) Update(ctx context.Context, id, ownerID uint64, changes TaskChanges, replacement []scheduling.Entry, today datatypes.Date) (scheduling.Plan, error) {
	var plan scheduling.Plan

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Scopes(database.OwnedBy(ownerID)).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}

		if !changes.Empty() {
			updates := map[string]interface{}{}
			if changes.Name != nil {
				if *changes.Name != task.Name {
					if err := ensureNameFree(tx, ownerID, *changes.Name, id); err != nil {
						return err
					}
				}
				updates["name"] = *changes.Name
			}
			if changes.Description != nil {
				updates["description"] = *changes.Description
			}
			if changes.Visibility != nil {
				updates["visibility"] = *changes.Visibility
			}

			if err := tx.Model(&task).Updates(updates).Error; err != nil {
				return err
			}
		}

		if len(replacement) == 0 {
			return nil
		}

		var existing []models.Schedule
		if err := tx.Where("task_id = ? AND due_date >= ?", id, today).Find(&existing).Error; err != nil {
			return err
		}

		plan = scheduling.Reconcile(existing, replacement, today)

		if len(plan.Delete) > 0 {
			if err := tx.Unscoped().Where("id IN ?", plan.Delete).Delete(&models.Schedule{}).Error; err != nil {
				return err
			}
		}

		if len(plan.Insert) > 0 {
			schedules := scheduling.Build(plan.Insert, id, ownerID)
			if err := tx.Create(&schedules).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return scheduling.Plan{}, err
	}

	return plan, nil
}

// Archive soft-deletes the task and its open schedules due from today on.
func (r *GormTaskRepository) Archive(ctx context.Context, id, ownerID uint64, today datatypes.Date) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Scopes(database.OwnedBy(ownerID)).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}

		if err := tx.Delete(&task).Error; err != nil {
			return err
		}

		return tx.Scopes(openPendingFrom(today)).
			Where("task_id = ?", id).
			Delete(&models.Schedule{}).Error
	})
}

// Restore reverses Archive. It reports false when the task was not archived.
func (r *GormTaskRepository) Restore(ctx context.Context, id, ownerID uint64, today datatypes.Date) (bool, error) {
	restored := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Scopes(database.WithTrashed, database.OwnedBy(ownerID)).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}

		if !task.Archived() {
			return nil
		}

		if err := ensureNameFree(tx, ownerID, task.Name, id); err != nil {
			return err
		}

		if err := tx.Unscoped().Model(&models.Task{}).
			Where("id = ?", id).
			Update("deleted_at", nil).Error; err != nil {
			return err
		}

		if err := tx.Scopes(database.OnlyTrashed, openPendingFrom(today)).
			Model(&models.Schedule{}).
			Where("task_id = ?", id).
			Update("deleted_at", nil).Error; err != nil {
			return err
		}

		restored = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return restored, nil
}

// Delete removes the task and all of its schedules permanently.
func (r *GormTaskRepository) Delete(ctx context.Context, id, ownerID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Scopes(database.WithTrashed, database.OwnedBy(ownerID)).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("task_id = ?", id).Delete(&models.Schedule{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&task).Error
	})
}

// ensureNameFree fails with ErrNameTaken when another active task of the
// owner already has name.
func ensureNameFree(tx *gorm.DB, ownerID uint64, name string, exceptID uint64) error {
	query := tx.Model(&models.Task{}).
		Scopes(database.OwnedBy(ownerID)).
		Where("name = ?", name)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrNameTaken
	}
	return nil
}

// attachSchedules loads the non-deleted schedules of every task in a single
// query, ordered by due date and window start.
func attachSchedules(db *gorm.DB, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]uint64, len(tasks))
	byID := make(map[uint64]*models.Task, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		byID[t.ID] = t
		t.Schedules = []models.Schedule{}
	}

	var schedules []models.Schedule
	err := db.Where("task_id IN ?", ids).
		Order("due_date ASC, window_from ASC, id ASC").
		Find(&schedules).Error
	if err != nil {
		return err
	}

	for _, s := range schedules {
		if t, ok := byID[s.TaskID]; ok {
			t.Schedules = append(t.Schedules, s)
		}
	}

	return nil
}
