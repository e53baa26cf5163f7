package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/dto"
	apierrors "github.com/yukikurage/catena-api/internal/errors"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/middleware"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/scheduling"
	"github.com/yukikurage/catena-api/internal/services"
	"github.com/yukikurage/catena-api/internal/utils"
	"github.com/yukikurage/catena-api/internal/validation"
)

type TaskHandler struct {
	taskService *services.TaskService
	log         logging.Logger
}

func NewTaskHandler(taskService *services.TaskService, log logging.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

type scheduleRequest struct {
	DueDate string `json:"due_date" binding:"required,calendardate"`
	From    string `json:"from" binding:"omitempty,clock"`
	To      string `json:"to" binding:"omitempty,clock"`
	Remarks string `json:"remarks" binding:"max=2000"`
}

type createTaskRequest struct {
	Name        string            `json:"name" binding:"required,max=255"`
	Description string            `json:"description"`
	Visibility  string            `json:"visibility" binding:"omitempty,oneof=private public"`
	Schedules   []scheduleRequest `json:"schedules" binding:"omitempty,dive"`
}

type updateTaskRequest struct {
	Name        *string           `json:"name" binding:"omitempty,max=255"`
	Description *string           `json:"description"`
	Visibility  *string           `json:"visibility" binding:"omitempty,oneof=private public"`
	Schedules   []scheduleRequest `json:"schedules" binding:"omitempty,dive"`
}

type scheduleRemarksRequest struct {
	Remarks *string `json:"remarks" binding:"required,max=2000"`
}

type generateTasksRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

func toEntryInputs(in []scheduleRequest) []scheduling.EntryInput {
	out := make([]scheduling.EntryInput, len(in))
	for i, s := range in {
		out[i] = scheduling.EntryInput{
			DueDate: s.DueDate,
			From:    s.From,
			To:      s.To,
			Remarks: s.Remarks,
		}
	}
	return out
}

// ListTasks returns the current user's tasks. archived=include|only widens
// the listing to archived tasks; page/limit paginate it.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var archived repository.ArchiveFilter
	switch c.Query("archived") {
	case "":
	case string(repository.ArchiveInclude):
		archived = repository.ArchiveInclude
	case string(repository.ArchiveOnly):
		archived = repository.ArchiveOnly
	default:
		apierrors.ValidationFailed(c, []validation.FieldError{{
			Field: "archived", Validation: "oneof", Message: "archived must be one of: include, only",
		}})
		return
	}

	input := services.ListTasksInput{OwnerID: userID, Archived: archived}
	var params utils.PaginationParams
	paginate := utils.WantsPagination(c)
	if paginate {
		params = utils.GetPaginationParams(c)
		input.Page = params.Page
		input.PageSize = params.Limit
	}

	tasks, total, err := h.taskService.List(c.Request.Context(), input)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	resp := dto.OK(dto.ToTaskDTOs(tasks))
	if paginate {
		resp.Pagination = &utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetTask returns one of the current user's active tasks.
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToTaskDTO(*task)))
}

// GetPublicTask returns an active public task of any user.
func (h *TaskHandler) GetPublicTask(c *gin.Context) {
	taskID, ok := middleware.GetIDParam(c, "id")
	if !ok {
		apierrors.NotFound(c, "Task not found")
		return
	}

	task, err := h.taskService.GetPublic(c.Request.Context(), taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToTaskDTO(*task)))
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), services.CreateTaskInput{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		Schedules:   toEntryInputs(req.Schedules),
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Task created.", dto.ToTaskDTO(*task)))
}

// UpdateTask updates an existing task. Only the fields sent are changed; a
// non-empty schedules list replaces the schedules due from today on.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), userID, taskID, services.UpdateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		Schedules:   toEntryInputs(req.Schedules),
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Task updated.", dto.ToTaskDTO(*task)))
}

// DeleteTask permanently deletes a task and its schedules
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), userID, taskID); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ArchiveTask soft-deletes a task with its open schedules.
func (h *TaskHandler) ArchiveTask(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Archive(c.Request.Context(), userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToTaskDTO(*task)))
}

// RestoreTask reverses ArchiveTask.
func (h *TaskHandler) RestoreTask(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Restore(c.Request.Context(), userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToTaskDTO(*task)))
}

// MarkDone marks today's schedule of the task done.
func (h *TaskHandler) MarkDone(c *gin.Context) {
	userID, taskID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	task, err := h.taskService.MarkDone(c.Request.Context(), userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Task updated.", dto.ToTaskDTO(*task)))
}

// UpdateSchedule edits the remarks of a schedule.
func (h *TaskHandler) UpdateSchedule(c *gin.Context) {
	userID, scheduleID, ok := requireUserAndID(c)
	if !ok {
		return
	}

	var req scheduleRemarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	schedule, err := h.taskService.UpdateScheduleRemarks(c.Request.Context(), userID, scheduleID, *req.Remarks)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Schedule updated.", dto.ToScheduleDTO(*schedule)))
}

// GenerateTasks drafts tasks from free text using AI. Nothing is saved.
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req generateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	drafts, err := h.taskService.GenerateDrafts(c.Request.Context(), userID, req.Text)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	out := make([]dto.TaskDraftDTO, len(drafts))
	for i, d := range drafts {
		out[i] = dto.ToTaskDraftDTO(d.Name, d.Description, d.Schedules)
	}

	c.JSON(http.StatusOK, dto.OK(out))
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		apierrors.ValidationFailed(c, validation.Messages(err))
	case errors.Is(err, services.ErrDuplicateTaskName):
		apierrors.AlreadyExists(c, "Task name already exists", []validation.FieldError{{
			Field: "name", Validation: "unique", Message: "name is already used by another task",
		}})
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrScheduleNotFound):
		apierrors.NotFound(c, "Schedule not found")
	case errors.Is(err, services.ErrOutsideDueWindow):
		apierrors.OutsideDueWindow(c, "")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")
	case errors.Is(err, services.ErrAINoTasksGenerated), errors.Is(err, services.ErrAINoValidTasks):
		apierrors.ValidationFailed(c, []validation.FieldError{{
			Field: "text", Validation: "tasks", Message: err.Error(),
		}})
	case errors.Is(err, services.ErrPersistence):
		apierrors.OperationFailed(c, "")
	default:
		h.log.Error(c.Request.Context(), "unhandled task error", "error", err, "request_id", middleware.GetRequestID(c))
		apierrors.InternalError(c, "")
	}
}
