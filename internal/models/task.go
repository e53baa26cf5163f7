package models

import (
	"time"

	"gorm.io/gorm"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Task is a named, owned container of schedules. DeletedAt marks an
// archived task.
type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	OwnerID     uint64         `gorm:"not null;index" json:"owner_id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Visibility  Visibility     `gorm:"type:varchar(20);not null;default:'private'" json:"visibility"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	// Relations. Schedules are loaded explicitly by the repository, never
	// lazily.
	Owner     User       `gorm:"foreignKey:OwnerID" json:"-"`
	Schedules []Schedule `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"schedules"`
}

// Archived reports whether the task is soft-deleted.
func (t *Task) Archived() bool {
	return t.DeletedAt.Valid
}
