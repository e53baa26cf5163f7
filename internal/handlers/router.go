package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/middleware"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth   *AuthHandler
	Reset  *PasswordResetHandler
	Tasks  *TaskHandler
	Events *EventHandler
}

// RegisterRoutes mounts the API on api. requireAuth guards every route
// that needs a principal.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, requireAuth gin.HandlerFunc) {
	id := middleware.RequireIDParam("id")

	// Public routes
	api.POST("/signup", h.Auth.Signup)
	api.POST("/authenticate", h.Auth.Authenticate)
	api.POST("/forgot", h.Reset.Forgot)
	api.POST("/reset", h.Reset.Reset)
	api.GET("/public/tasks/:id", id, h.Tasks.GetPublicTask)

	// Protected routes
	protected := api.Group("")
	protected.Use(requireAuth)
	{
		protected.GET("/profile", h.Auth.Profile)
		protected.POST("/profile", h.Auth.Profile)
		protected.PUT("/profile", h.Auth.UpdateProfile)
		protected.POST("/change_password", h.Auth.ChangePassword)
		protected.POST("/logout", h.Auth.Logout)
		protected.GET("/events", h.Events.Stream)

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", h.Tasks.ListTasks)
			tasks.POST("", h.Tasks.CreateTask)
			tasks.POST("/generate", h.Tasks.GenerateTasks)
			tasks.PUT("/schedules/:id", id, h.Tasks.UpdateSchedule)
			tasks.GET("/:id", id, h.Tasks.GetTask)
			tasks.PUT("/:id", id, h.Tasks.UpdateTask)
			tasks.DELETE("/:id", id, h.Tasks.DeleteTask)
			tasks.POST("/:id/done", id, h.Tasks.MarkDone)
			tasks.POST("/:id/archive", id, h.Tasks.ArchiveTask)
			tasks.POST("/:id/restore", id, h.Tasks.RestoreTask)
		}
	}
}

// Health reports that the process is serving.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Catena API is running",
	})
}
