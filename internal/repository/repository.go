package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"

	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/scheduling"
)

var (
	// ErrNameTaken is returned when another active task of the same owner
	// already uses the requested name.
	ErrNameTaken = errors.New("task repository: name already taken")
	// ErrEmailTaken is returned when another user already uses the email.
	ErrEmailTaken = errors.New("user repository: email already taken")
)

// ArchiveFilter selects tasks by soft-delete state.
type ArchiveFilter string

const (
	ArchiveExclude ArchiveFilter = ""
	ArchiveInclude ArchiveFilter = "include"
	ArchiveOnly    ArchiveFilter = "only"
)

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OwnerID  uint64
	Archived ArchiveFilter
	// Page and PageSize are ignored unless both are positive.
	Page     int
	PageSize int
}

// TaskChanges carries the optional scalar fields of a task update.
type TaskChanges struct {
	Name        *string
	Description *string
	Visibility  *models.Visibility
}

// Empty reports whether no field is set.
func (c TaskChanges) Empty() bool {
	return c.Name == nil && c.Description == nil && c.Visibility == nil
}

// TaskRepository defines the interface for task data access. Every
// returned task carries its non-deleted schedules.
type TaskRepository interface {
	// CreateWithSchedules inserts the task and its schedules in one transaction.
	CreateWithSchedules(ctx context.Context, task *models.Task, entries []scheduling.Entry) error

	// FindOwned finds a task of the owner, honoring the archive filter.
	FindOwned(ctx context.Context, id, ownerID uint64, archived ArchiveFilter) (*models.Task, error)

	// FindPublic finds an active public task and its owner.
	FindPublic(ctx context.Context, id uint64) (*models.Task, error)

	// List retrieves an owner's tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update applies changes and, when replacement is non-empty, reconciles
	// the schedules due from today on. All of it happens in one transaction.
	Update(ctx context.Context, id, ownerID uint64, changes TaskChanges, replacement []scheduling.Entry, today datatypes.Date) (scheduling.Plan, error)

	// Archive soft-deletes the task and its open schedules due from today on.
	Archive(ctx context.Context, id, ownerID uint64, today datatypes.Date) error

	// Restore reverses Archive. It reports false when the task was not archived.
	Restore(ctx context.Context, id, ownerID uint64, today datatypes.Date) (bool, error)

	// Delete removes the task and all of its schedules permanently.
	Delete(ctx context.Context, id, ownerID uint64) error
}

// ScheduleRepository defines the interface for schedule data access
type ScheduleRepository interface {
	// FindOpenForDay lists a task's undone schedules due on day.
	FindOpenForDay(ctx context.Context, taskID, ownerID uint64, day datatypes.Date) ([]models.Schedule, error)

	// FindOwned finds an active schedule of the owner.
	FindOwned(ctx context.Context, id, ownerID uint64) (*models.Schedule, error)

	// MarkDone flips an undone schedule to done.
	MarkDone(ctx context.Context, id uint64) error

	// UpdateRemarks replaces the remarks of a schedule.
	UpdateRemarks(ctx context.Context, id uint64, remarks string) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by normalized email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindWithTasks loads the user with active tasks and their schedules.
	FindWithTasks(ctx context.Context, id uint64) (*models.User, error)

	// UpdateProfile saves username and email, keeping email unique.
	UpdateProfile(ctx context.Context, user *models.User) error

	// UpdatePassword stores a new password hash.
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

// PasswordResetRepository defines the interface for reset-token storage
type PasswordResetRepository interface {
	// Replace drops earlier tokens for the email and stores reset.
	Replace(ctx context.Context, reset *models.PasswordReset) error

	// Take returns the latest token for the email and deletes every token
	// for it.
	Take(ctx context.Context, email string) (*models.PasswordReset, error)

	// PurgeOlderThan deletes tokens created before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
