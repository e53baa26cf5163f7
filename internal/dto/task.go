package dto

import (
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/scheduling"
)

// OwnerDTO is the public face of a task owner.
type OwnerDTO struct {
	ID       uint64  `json:"id"`
	Username *string `json:"username"`
}

// ScheduleDTO represents a schedule in API responses
type ScheduleDTO struct {
	ID        uint64     `json:"id"`
	TaskID    uint64     `json:"task_id"`
	OwnerID   uint64     `json:"user_id"`
	DueDate   string     `json:"due_date"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Remarks   string     `json:"remarks"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64            `json:"id"`
	OwnerID     uint64            `json:"user_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Visibility  models.Visibility `json:"visibility"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   *time.Time        `json:"deleted_at"`
	Owner       *OwnerDTO         `json:"user,omitempty"`
	Schedules   []ScheduleDTO     `json:"schedules"`
}

// DraftScheduleDTO is a proposed schedule of a generated task.
type DraftScheduleDTO struct {
	DueDate string `json:"due_date"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// TaskDraftDTO is an unsaved, generated task.
type TaskDraftDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Schedules   []DraftScheduleDTO `json:"schedules"`
}

func deletedAt(d gorm.DeletedAt) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// ToScheduleDTO converts a Schedule model to ScheduleDTO
func ToScheduleDTO(s models.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:        s.ID,
		TaskID:    s.TaskID,
		OwnerID:   s.OwnerID,
		DueDate:   scheduling.FormatDate(s.DueDate),
		From:      s.From,
		To:        s.To,
		Remarks:   s.Remarks,
		Done:      s.Done,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		DeletedAt: deletedAt(s.DeletedAt),
	}
}

// ToTaskDTO converts a Task model to TaskDTO. Schedules are always present,
// possibly empty.
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		OwnerID:     task.OwnerID,
		Name:        task.Name,
		Description: task.Description,
		Visibility:  task.Visibility,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		DeletedAt:   deletedAt(task.DeletedAt),
		Schedules:   make([]ScheduleDTO, len(task.Schedules)),
	}

	for i, s := range task.Schedules {
		dto.Schedules[i] = ToScheduleDTO(s)
	}

	// Include owner if loaded
	if task.Owner.ID != 0 {
		dto.Owner = &OwnerDTO{ID: task.Owner.ID, Username: task.Owner.Username}
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks.
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = ToTaskDTO(t)
	}
	return out
}

// ToTaskDraftDTO converts a generated draft.
func ToTaskDraftDTO(name, description string, entries []scheduling.Entry) TaskDraftDTO {
	dto := TaskDraftDTO{
		Name:        name,
		Description: description,
		Schedules:   make([]DraftScheduleDTO, len(entries)),
	}
	for i, e := range entries {
		dto.Schedules[i] = DraftScheduleDTO{
			DueDate: scheduling.FormatDate(e.DueDate),
			From:    e.From,
			To:      e.To,
		}
	}
	return dto
}
