package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/dto"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/scheduling"
	"github.com/yukikurage/catena-api/internal/validation"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrTaskNotFound           = errors.New("task not found")
	ErrScheduleNotFound       = errors.New("schedule not found")
	ErrDuplicateTaskName      = errors.New("task name already exists")
	ErrOutsideDueWindow       = errors.New("schedules can only be marked on their due date")
	ErrPersistence            = errors.New("persistence failure")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo     repository.TaskRepository
	scheduleRepo repository.ScheduleRepository
	events       broadcast.Publisher
	aiService    *AIService
	log          logging.Logger
	loc          *time.Location
	now          func() time.Time
}

// TaskServiceOption customizes a TaskService.
type TaskServiceOption func(*TaskService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) {
		s.now = now
	}
}

// WithAI enables task drafting.
func WithAI(ai *AIService) TaskServiceOption {
	return func(s *TaskService) {
		s.aiService = ai
	}
}

// NewTaskService creates a new TaskService. loc decides what "today" and
// "now" mean for due dates and windows. events may be nil.
func NewTaskService(
	taskRepo repository.TaskRepository,
	scheduleRepo repository.ScheduleRepository,
	events broadcast.Publisher,
	log logging.Logger,
	loc *time.Location,
	opts ...TaskServiceOption,
) *TaskService {
	s := &TaskService{
		taskRepo:     taskRepo,
		scheduleRepo: scheduleRepo,
		events:       events,
		log:          log,
		loc:          loc,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	OwnerID     uint64
	Name        string
	Description string
	Visibility  string
	Schedules   []scheduling.EntryInput
}

// UpdateTaskInput represents input for updating a task. Nil fields are left
// unchanged; an empty Schedules list leaves schedules unchanged.
type UpdateTaskInput struct {
	Name        *string
	Description *string
	Visibility  *string
	Schedules   []scheduling.EntryInput
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	OwnerID  uint64
	Archived repository.ArchiveFilter
	Page     int
	PageSize int
}

// TaskDraft is a generated, unsaved task.
type TaskDraft struct {
	Name        string
	Description string
	Schedules   []scheduling.Entry
}

func (s *TaskService) today() (time.Time, datatypes.Date) {
	now := s.now()
	return now, scheduling.Day(now, s.loc)
}

// Create creates a task with its initial schedules.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	visibility, err := parseVisibility(input.Visibility, models.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	entries, err := scheduling.NormalizeEntries(input.Schedules, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	task := &models.Task{
		OwnerID:     input.OwnerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Visibility:  visibility,
	}

	if err := s.taskRepo.CreateWithSchedules(ctx, task, entries); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return nil, ErrDuplicateTaskName
		}
		return nil, s.storeFailure(ctx, "create task", input.OwnerID, 0, err)
	}

	created, err := s.taskRepo.FindOwned(ctx, task.ID, input.OwnerID, repository.ArchiveExclude)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload task", input.OwnerID, task.ID, err)
	}

	s.publishTask(ctx, constants.EventTaskCreated, created)
	return created, nil
}

// Get returns an active task of the owner.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveExclude)
	if err != nil {
		return nil, s.lookupFailure(ctx, "get task", ownerID, taskID, err)
	}
	return task, nil
}

// GetPublic returns an active public task of any owner.
func (s *TaskService) GetPublic(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindPublic(ctx, taskID)
	if err != nil {
		return nil, s.lookupFailure(ctx, "get public task", 0, taskID, err)
	}
	return task, nil
}

// List returns the owner's tasks and the total before pagination.
func (s *TaskService) List(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(ctx, repository.TaskFilter{
		OwnerID:  input.OwnerID,
		Archived: input.Archived,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, 0, s.storeFailure(ctx, "list tasks", input.OwnerID, 0, err)
	}
	return tasks, total, nil
}

// Update changes task fields and reconciles schedules from today on.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	var changes repository.TaskChanges

	if input.Name != nil {
		name, err := cleanName(*input.Name)
		if err != nil {
			return nil, err
		}
		changes.Name = &name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		changes.Description = &description
	}
	if input.Visibility != nil {
		visibility, err := parseVisibility(*input.Visibility, "")
		if err != nil {
			return nil, err
		}
		changes.Visibility = &visibility
	}

	entries, err := scheduling.NormalizeEntries(input.Schedules, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	_, today := s.today()
	plan, err := s.taskRepo.Update(ctx, taskID, ownerID, changes, entries, today)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNameTaken):
			return nil, ErrDuplicateTaskName
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrTaskNotFound
		default:
			return nil, s.storeFailure(ctx, "update task", ownerID, taskID, err)
		}
	}

	if plan.DoneToday {
		s.log.Info(ctx, "kept schedule already done today",
			"task_id", taskID, "user_id", ownerID, "date", scheduling.FormatDate(today))
	}

	updated, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveExclude)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload task", ownerID, taskID, err)
	}

	s.publishTask(ctx, constants.EventTaskUpdated, updated)
	return updated, nil
}

// Delete removes a task, archived or not, with all of its schedules.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID uint64) error {
	task, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveInclude)
	if err != nil {
		return s.lookupFailure(ctx, "delete task", ownerID, taskID, err)
	}

	if err := s.taskRepo.Delete(ctx, taskID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return s.storeFailure(ctx, "delete task", ownerID, taskID, err)
	}

	s.publishTask(ctx, constants.EventTaskDeleted, task)
	return nil
}

// Archive soft-deletes a task and its open schedules from today on. The
// returned task carries only the schedules left active.
func (s *TaskService) Archive(ctx context.Context, ownerID, taskID uint64) (*models.Task, error) {
	_, today := s.today()

	if err := s.taskRepo.Archive(ctx, taskID, ownerID, today); err != nil {
		return nil, s.lookupFailure(ctx, "archive task", ownerID, taskID, err)
	}

	s.log.Info(ctx, "task archived", "task_id", taskID, "user_id", ownerID, "from", scheduling.FormatDate(today))

	archived, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveOnly)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload task", ownerID, taskID, err)
	}

	s.publishTask(ctx, constants.EventTaskUpdated, archived)
	return archived, nil
}

// Restore reverses Archive. Restoring an active task changes nothing and
// returns it as is.
func (s *TaskService) Restore(ctx context.Context, ownerID, taskID uint64) (*models.Task, error) {
	_, today := s.today()

	restored, err := s.taskRepo.Restore(ctx, taskID, ownerID, today)
	if err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return nil, ErrDuplicateTaskName
		}
		return nil, s.lookupFailure(ctx, "restore task", ownerID, taskID, err)
	}

	task, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveExclude)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload task", ownerID, taskID, err)
	}

	if restored {
		s.log.Info(ctx, "task restored", "task_id", taskID, "user_id", ownerID, "from", scheduling.FormatDate(today))
		s.publishTask(ctx, constants.EventTaskUpdated, task)
	}
	return task, nil
}

// MarkDone marks the first of today's open schedules whose window contains
// the current time of day. Wrong day, wrong time and already done all fail
// with ErrOutsideDueWindow, and so does an archived task, which has no open
// schedules.
func (s *TaskService) MarkDone(ctx context.Context, ownerID, taskID uint64) (*models.Task, error) {
	now, today := s.today()

	current, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveInclude)
	if err != nil {
		return nil, s.lookupFailure(ctx, "mark task done", ownerID, taskID, err)
	}
	if current.Archived() {
		return nil, ErrOutsideDueWindow
	}

	candidates, err := s.scheduleRepo.FindOpenForDay(ctx, taskID, ownerID, today)
	if err != nil {
		return nil, s.storeFailure(ctx, "mark task done", ownerID, taskID, err)
	}

	schedule, ok := scheduling.FirstMarkable(candidates, now, s.loc)
	if !ok {
		s.log.Info(ctx, "no schedule open for marking",
			"task_id", taskID, "user_id", ownerID, "now", now.In(s.loc).Format(time.RFC3339))
		return nil, ErrOutsideDueWindow
	}

	if err := s.scheduleRepo.MarkDone(ctx, schedule.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutsideDueWindow
		}
		return nil, s.storeFailure(ctx, "mark task done", ownerID, taskID, err)
	}

	s.log.Info(ctx, "schedule marked done", "task_id", taskID, "schedule_id", schedule.ID, "user_id", ownerID)

	task, err := s.taskRepo.FindOwned(ctx, taskID, ownerID, repository.ArchiveExclude)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload task", ownerID, taskID, err)
	}

	s.publishTask(ctx, constants.EventTaskUpdated, task)
	return task, nil
}

// UpdateScheduleRemarks replaces the remarks of one of the owner's schedules.
func (s *TaskService) UpdateScheduleRemarks(ctx context.Context, ownerID, scheduleID uint64, remarks string) (*models.Schedule, error) {
	if _, err := s.scheduleRepo.FindOwned(ctx, scheduleID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, s.storeFailure(ctx, "update schedule", ownerID, 0, err, "schedule_id", scheduleID)
	}

	if err := s.scheduleRepo.UpdateRemarks(ctx, scheduleID, strings.TrimSpace(remarks)); err != nil {
		return nil, s.storeFailure(ctx, "update schedule", ownerID, 0, err, "schedule_id", scheduleID)
	}

	schedule, err := s.scheduleRepo.FindOwned(ctx, scheduleID, ownerID)
	if err != nil {
		return nil, s.storeFailure(ctx, "reload schedule", ownerID, 0, err, "schedule_id", scheduleID)
	}

	s.publish(ctx, constants.EventScheduleUpdated, ownerID, map[string]interface{}{
		"schedule": dto.ToScheduleDTO(*schedule),
	})
	return schedule, nil
}

// GenerateDrafts uses AI to propose tasks from free text. Nothing is saved.
func (s *TaskService) GenerateDrafts(ctx context.Context, ownerID uint64, text string) ([]TaskDraft, error) {
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	now, today := s.today()
	generated, err := s.aiService.GenerateTasksFromText(ctx, text, now.In(s.loc))
	if err != nil {
		s.log.Warn(ctx, "task drafting failed", "user_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(generated) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(generated) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	drafts := make([]TaskDraft, 0, len(generated))
	for _, g := range generated {
		name, err := cleanName(g.Name)
		if err != nil {
			continue
		}

		entries := make([]scheduling.Entry, 0, len(g.Schedules))
		for _, gs := range g.Schedules {
			normalized, err := scheduling.NormalizeEntries([]scheduling.EntryInput{{
				DueDate: gs.DueDate,
				From:    gs.From,
				To:      gs.To,
			}}, s.loc)
			if err != nil || scheduling.Compare(normalized[0].DueDate, today) < 0 {
				continue
			}
			entries = append(entries, normalized[0])
		}

		drafts = append(drafts, TaskDraft{
			Name:        name,
			Description: strings.TrimSpace(g.Description),
			Schedules:   entries,
		})
	}

	if len(drafts) == 0 {
		return nil, ErrAINoValidTasks
	}

	return drafts, nil
}

func (s *TaskService) publishTask(ctx context.Context, event string, task *models.Task) {
	s.publish(ctx, event, task.OwnerID, map[string]interface{}{
		"task": dto.ToTaskDTO(*task),
	})
}

// publish is best effort: a missing hub or absent subscribers are ignored.
func (s *TaskService) publish(ctx context.Context, event string, ownerID uint64, payload interface{}) {
	if s.events == nil {
		return
	}
	n := s.events.Publish(constants.BroadcastTopic, broadcast.Event{
		Name:    event,
		OwnerID: ownerID,
		Payload: payload,
	})
	s.log.Debug(ctx, "event published", "event", event, "user_id", ownerID, "subscribers", n)
}

// lookupFailure maps a missing row to ErrTaskNotFound and anything else to
// a logged persistence failure.
func (s *TaskService) lookupFailure(ctx context.Context, op string, userID, taskID uint64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	return s.storeFailure(ctx, op, userID, taskID, err)
}

func (s *TaskService) storeFailure(ctx context.Context, op string, userID, taskID uint64, err error, extra ...any) error {
	args := append([]any{"operation", op, "user_id", userID, "task_id", taskID, "error", err}, extra...)
	s.log.Error(ctx, "task store failure", args...)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func cleanName(raw string) (string, error) {
	name := validation.StripTags(raw)
	if name == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
			Field: "name", Validation: "required", Message: "name is required",
		})
	}
	if utf8.RuneCountInString(name) > constants.MaxTaskNameLength {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
			Field:      "name",
			Validation: "max",
			Message:    fmt.Sprintf("name must be at most %d characters", constants.MaxTaskNameLength),
		})
	}
	return name, nil
}

// parseVisibility accepts private or public. An empty value yields def, or
// fails when def is empty.
func parseVisibility(raw string, def models.Visibility) (models.Visibility, error) {
	switch v := models.Visibility(strings.ToLower(strings.TrimSpace(raw))); v {
	case models.VisibilityPrivate, models.VisibilityPublic:
		return v, nil
	case "":
		if def != "" {
			return def, nil
		}
	}
	return "", fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
		Field: "visibility", Validation: "in", Message: "visibility must be one of: private, public",
	})
}
