package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schedule is one dated occurrence of a task. It may be marked done on its
// due date while the current time of day lies inside [From, To].
//
// DueDate is a pure calendar date held at 00:00 UTC. From and To are
// zero-padded "HH:MM:SS" strings so lexical order equals time order.
type Schedule struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	TaskID    uint64         `gorm:"not null;index" json:"task_id"`
	OwnerID   uint64         `gorm:"not null;index" json:"owner_id"`
	DueDate   datatypes.Date `gorm:"not null;index" json:"due_date"`
	From      string         `gorm:"column:window_from;type:varchar(8);not null;default:'00:00:00'" json:"from"`
	To        string         `gorm:"column:window_to;type:varchar(8);not null;default:'23:59:59'" json:"to"`
	Remarks   string         `gorm:"type:text;not null" json:"remarks"`
	Done      bool           `gorm:"not null;default:false" json:"done"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// Day returns the due date as a time.Time at 00:00 UTC.
func (s *Schedule) Day() time.Time {
	return time.Time(s.DueDate)
}
