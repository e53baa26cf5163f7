package dto

import (
	"time"

	"github.com/yukikurage/catena-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        uint64    `json:"id"`
	Username  *string   `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tasks     []TaskDTO `json:"tasks,omitempty"`
}

// ToUserDTO converts a User model to UserDTO, including tasks if loaded.
func ToUserDTO(user models.User) UserDTO {
	dto := UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.Tasks != nil {
		dto.Tasks = ToTaskDTOs(user.Tasks)
	}
	return dto
}
