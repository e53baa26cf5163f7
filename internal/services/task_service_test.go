package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/scheduling"
	"github.com/yukikurage/catena-api/internal/testutil"
	"github.com/yukikurage/catena-api/internal/validation"
)

var noon = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	content string
	err     error
	prompt  string
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(req.Messages) > 0 {
		f.prompt = req.Messages[0].Content
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

type TaskServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	hub     *broadcast.Hub
	sub     *broadcast.Subscription
	service *TaskService
	owner   *models.User
	other   *models.User
}

func (s *TaskServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.hub = broadcast.NewHub(16)
	s.sub = s.hub.Subscribe(constants.BroadcastTopic)
	s.service = s.newService(noon)
	s.owner = testutil.CreateUser(s.T(), s.db, "owner@example.com")
	s.other = testutil.CreateUser(s.T(), s.db, "other@example.com")
}

func (s *TaskServiceTestSuite) TearDownTest() {
	s.sub.Close()
}

func (s *TaskServiceTestSuite) newService(at time.Time, opts ...TaskServiceOption) *TaskService {
	opts = append([]TaskServiceOption{WithClock(func() time.Time { return at })}, opts...)
	return NewTaskService(
		repository.NewTaskRepository(s.db),
		repository.NewScheduleRepository(s.db),
		s.hub,
		logging.Nop(),
		time.UTC,
		opts...,
	)
}

func day(offset int) string {
	return scheduling.FormatDate(scheduling.AddDays(scheduling.Day(noon, time.UTC), offset))
}

func (s *TaskServiceTestSuite) create(name string, schedules ...scheduling.EntryInput) *models.Task {
	task, err := s.service.Create(s.ctx, CreateTaskInput{
		OwnerID:   s.owner.ID,
		Name:      name,
		Schedules: schedules,
	})
	s.Require().NoError(err)
	s.drain()
	return task
}

func (s *TaskServiceTestSuite) drain() {
	for {
		select {
		case <-s.sub.Events():
		default:
			return
		}
	}
}

func (s *TaskServiceTestSuite) nextEvent() broadcast.Event {
	select {
	case ev := <-s.sub.Events():
		return ev
	default:
		s.FailNow("expected an event")
		return broadcast.Event{}
	}
}

func (s *TaskServiceTestSuite) TestCreate_NoSchedules() {
	task, err := s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.owner.ID, Name: "Groceries"})
	s.Require().NoError(err)

	s.Equal("Groceries", task.Name)
	s.Equal("", task.Description)
	s.Equal(models.VisibilityPrivate, task.Visibility)
	s.NotNil(task.Schedules)
	s.Empty(task.Schedules)

	ev := s.nextEvent()
	s.Equal(constants.EventTaskCreated, ev.Name)
	s.Equal(s.owner.ID, ev.OwnerID)
}

func (s *TaskServiceTestSuite) TestCreate_DefaultsWindow() {
	task := s.create("Gym",
		scheduling.EntryInput{DueDate: day(0)},
		scheduling.EntryInput{DueDate: day(1), From: "09:00", To: "17:30"},
	)

	s.Require().Len(task.Schedules, 2)
	s.Equal("00:00:00", task.Schedules[0].From)
	s.Equal("23:59:59", task.Schedules[0].To)
	s.Equal("09:00:00", task.Schedules[1].From)
	s.Equal("17:30:00", task.Schedules[1].To)
}

func (s *TaskServiceTestSuite) TestCreate_StripsTags() {
	task := s.create(`  <b>Read</b> <a href="https://example.com">book</a> `)
	s.Equal("Read book", task.Name)
}

func (s *TaskServiceTestSuite) TestCreate_Invalid() {
	_, err := s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.owner.ID, Name: "  <i></i> "})
	s.Require().ErrorIs(err, ErrInvalidInput)
	var fe *validation.FieldError
	s.Require().True(errors.As(err, &fe))
	s.Equal("name", fe.Field)

	_, err = s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.owner.ID, Name: "Run", Visibility: "friends"})
	s.ErrorIs(err, ErrInvalidInput)

	_, err = s.service.Create(s.ctx, CreateTaskInput{
		OwnerID:   s.owner.ID,
		Name:      "Run",
		Schedules: []scheduling.EntryInput{{DueDate: day(0), From: "18:00", To: "09:00"}},
	})
	s.Require().ErrorIs(err, ErrInvalidInput)
	var ee *scheduling.EntryError
	s.Require().True(errors.As(err, &ee))
	s.Equal(0, ee.Index)
}

func (s *TaskServiceTestSuite) TestCreate_DuplicateName() {
	s.create("Groceries")

	_, err := s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.owner.ID, Name: "Groceries"})
	s.ErrorIs(err, ErrDuplicateTaskName)

	_, err = s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.other.ID, Name: "Groceries"})
	s.NoError(err)
}

func (s *TaskServiceTestSuite) TestGet_OwnershipCollapsesToNotFound() {
	task := s.create("Mine")

	_, err := s.service.Get(s.ctx, s.other.ID, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	_, err = s.service.Get(s.ctx, s.owner.ID, task.ID+100)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestGetPublic() {
	private := s.create("Private")
	public, err := s.service.Create(s.ctx, CreateTaskInput{OwnerID: s.owner.ID, Name: "Public", Visibility: "public"})
	s.Require().NoError(err)

	_, err = s.service.GetPublic(s.ctx, private.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	found, err := s.service.GetPublic(s.ctx, public.ID)
	s.Require().NoError(err)
	s.Equal(s.owner.ID, found.Owner.ID)

	_, err = s.service.Archive(s.ctx, s.owner.ID, public.ID)
	s.Require().NoError(err)

	_, err = s.service.GetPublic(s.ctx, public.ID)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestList() {
	s.create("One")
	two := s.create("Two")
	s.create("Three")
	_, err := s.service.Archive(s.ctx, s.owner.ID, two.ID)
	s.Require().NoError(err)

	tasks, total, err := s.service.List(s.ctx, ListTasksInput{OwnerID: s.owner.ID})
	s.Require().NoError(err)
	s.Len(tasks, 2)
	s.EqualValues(2, total)

	tasks, _, err = s.service.List(s.ctx, ListTasksInput{OwnerID: s.owner.ID, Archived: repository.ArchiveOnly})
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal("Two", tasks[0].Name)

	tasks, total, err = s.service.List(s.ctx, ListTasksInput{OwnerID: s.owner.ID, Archived: repository.ArchiveInclude, Page: 1, PageSize: 2})
	s.Require().NoError(err)
	s.Len(tasks, 2)
	s.EqualValues(3, total)
}

func (s *TaskServiceTestSuite) TestUpdate_Reconciles() {
	task := s.create("Walk",
		scheduling.EntryInput{DueDate: day(-1)},
		scheduling.EntryInput{DueDate: day(0)},
		scheduling.EntryInput{DueDate: day(1)},
	)

	updated, err := s.service.Update(s.ctx, s.owner.ID, task.ID, UpdateTaskInput{
		Schedules: []scheduling.EntryInput{
			{DueDate: day(0), From: "10:00", To: "11:00"},
			{DueDate: day(1), From: "10:00", To: "11:00"},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(updated.Schedules, 3)
	s.Equal(day(-1), scheduling.FormatDate(updated.Schedules[0].DueDate))
	s.Equal("00:00:00", updated.Schedules[0].From)
	s.Equal("10:00:00", updated.Schedules[1].From)
	s.Equal("10:00:00", updated.Schedules[2].From)

	ev := s.nextEvent()
	s.Equal(constants.EventTaskUpdated, ev.Name)
}

func (s *TaskServiceTestSuite) TestUpdate_KeepsDoneToday() {
	task := s.create("Walk",
		scheduling.EntryInput{DueDate: day(-1)},
		scheduling.EntryInput{DueDate: day(0)},
		scheduling.EntryInput{DueDate: day(1)},
	)
	_, err := s.service.MarkDone(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)

	updated, err := s.service.Update(s.ctx, s.owner.ID, task.ID, UpdateTaskInput{
		Schedules: []scheduling.EntryInput{
			{DueDate: day(0), From: "10:00", To: "11:00"},
			{DueDate: day(1), From: "10:00", To: "11:00"},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(updated.Schedules, 3)
	s.True(updated.Schedules[1].Done)
	s.Equal("00:00:00", updated.Schedules[1].From)
	s.Equal("10:00:00", updated.Schedules[2].From)
}

func (s *TaskServiceTestSuite) TestUpdate_FieldsOnly() {
	task := s.create("Walk", scheduling.EntryInput{DueDate: day(1)})
	name := "Long walk"
	visibility := "public"

	updated, err := s.service.Update(s.ctx, s.owner.ID, task.ID, UpdateTaskInput{Name: &name, Visibility: &visibility})
	s.Require().NoError(err)
	s.Equal("Long walk", updated.Name)
	s.Equal(models.VisibilityPublic, updated.Visibility)
	s.Require().Len(updated.Schedules, 1)
	s.Equal(task.Schedules[0].ID, updated.Schedules[0].ID)
}

func (s *TaskServiceTestSuite) TestUpdate_Errors() {
	s.create("Taken")
	task := s.create("Walk")

	taken := "Taken"
	_, err := s.service.Update(s.ctx, s.owner.ID, task.ID, UpdateTaskInput{Name: &taken})
	s.ErrorIs(err, ErrDuplicateTaskName)

	_, err = s.service.Update(s.ctx, s.other.ID, task.ID, UpdateTaskInput{Name: &taken})
	s.ErrorIs(err, ErrTaskNotFound)

	empty := ""
	_, err = s.service.Update(s.ctx, s.owner.ID, task.ID, UpdateTaskInput{Visibility: &empty})
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *TaskServiceTestSuite) TestMarkDone_Window() {
	task := s.create("Work", scheduling.EntryInput{DueDate: day(0), From: "09:00", To: "17:00"})

	for _, at := range []time.Time{
		noon.Add(-4 * time.Hour),
		noon.Add(6 * time.Hour),
		noon.Add(24 * time.Hour),
	} {
		_, err := s.newService(at).MarkDone(s.ctx, s.owner.ID, task.ID)
		s.ErrorIs(err, ErrOutsideDueWindow, at.String())
	}

	marked, err := s.service.MarkDone(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.Require().Len(marked.Schedules, 1)
	s.True(marked.Schedules[0].Done)
	s.Equal(constants.EventTaskUpdated, s.nextEvent().Name)

	_, err = s.service.MarkDone(s.ctx, s.owner.ID, task.ID)
	s.ErrorIs(err, ErrOutsideDueWindow)

	_, err = s.service.MarkDone(s.ctx, s.other.ID, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestMarkDone_UsesConfiguredZone() {
	lagos, err := time.LoadLocation("Africa/Lagos")
	s.Require().NoError(err)

	svc := NewTaskService(
		repository.NewTaskRepository(s.db),
		repository.NewScheduleRepository(s.db),
		nil,
		logging.Nop(),
		lagos,
		WithClock(func() time.Time { return time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC) }),
	)

	task, err := svc.Create(s.ctx, CreateTaskInput{
		OwnerID:   s.owner.ID,
		Name:      "Late",
		Schedules: []scheduling.EntryInput{{DueDate: "2026-10-20", From: "00:00", To: "01:00"}},
	})
	s.Require().NoError(err)

	_, err = svc.MarkDone(s.ctx, s.owner.ID, task.ID)
	s.NoError(err)
}

func (s *TaskServiceTestSuite) TestArchiveRestore() {
	task := s.create("Garden",
		scheduling.EntryInput{DueDate: day(0)},
		scheduling.EntryInput{DueDate: day(1)},
		scheduling.EntryInput{DueDate: day(2)},
	)

	archived, err := s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.True(archived.Archived())
	s.Empty(archived.Schedules)
	s.Equal(constants.EventTaskUpdated, s.nextEvent().Name)

	_, err = s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	_, err = s.service.Get(s.ctx, s.owner.ID, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	restored, err := s.service.Restore(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.False(restored.Archived())
	s.Len(restored.Schedules, 3)
	s.Equal(constants.EventTaskUpdated, s.nextEvent().Name)

	again, err := s.service.Restore(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.Len(again.Schedules, 3)
	select {
	case ev := <-s.sub.Events():
		s.Failf("unexpected event", "%s", ev.Name)
	default:
	}
}

func (s *TaskServiceTestSuite) TestArchiveKeepsHistory() {
	task := s.create("Garden",
		scheduling.EntryInput{DueDate: day(-2)},
		scheduling.EntryInput{DueDate: day(1)},
	)

	archived, err := s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.Require().Len(archived.Schedules, 1)
	s.Equal(day(-2), scheduling.FormatDate(archived.Schedules[0].DueDate))
}

func (s *TaskServiceTestSuite) TestMarkDone_ArchivedTask() {
	task := s.create("Work", scheduling.EntryInput{DueDate: day(0), From: "09:00", To: "17:00"})
	_, err := s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.drain()

	_, err = s.service.MarkDone(s.ctx, s.owner.ID, task.ID)
	s.ErrorIs(err, ErrOutsideDueWindow)

	_, err = s.service.MarkDone(s.ctx, s.other.ID, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestRestore_NameTaken() {
	task := s.create("Garden")
	_, err := s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.create("Garden")

	_, err = s.service.Restore(s.ctx, s.owner.ID, task.ID)
	s.ErrorIs(err, ErrDuplicateTaskName)
}

func (s *TaskServiceTestSuite) TestDelete() {
	task := s.create("Trash", scheduling.EntryInput{DueDate: day(1)})
	_, err := s.service.Archive(s.ctx, s.owner.ID, task.ID)
	s.Require().NoError(err)
	s.drain()

	s.Require().NoError(s.service.Delete(s.ctx, s.owner.ID, task.ID))

	ev := s.nextEvent()
	s.Equal(constants.EventTaskDeleted, ev.Name)

	var n int64
	s.Require().NoError(s.db.Unscoped().Model(&models.Schedule{}).Where("task_id = ?", task.ID).Count(&n).Error)
	s.Zero(n)

	s.ErrorIs(s.service.Delete(s.ctx, s.owner.ID, task.ID), ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestUpdateScheduleRemarks() {
	task := s.create("Notes", scheduling.EntryInput{DueDate: day(1)})
	id := task.Schedules[0].ID

	schedule, err := s.service.UpdateScheduleRemarks(s.ctx, s.owner.ID, id, "  bring gloves ")
	s.Require().NoError(err)
	s.Equal("bring gloves", schedule.Remarks)
	s.Equal(constants.EventScheduleUpdated, s.nextEvent().Name)

	_, err = s.service.UpdateScheduleRemarks(s.ctx, s.other.ID, id, "nope")
	s.ErrorIs(err, ErrScheduleNotFound)
}

func (s *TaskServiceTestSuite) TestGenerateDrafts() {
	_, err := s.service.GenerateDrafts(s.ctx, s.owner.ID, "anything")
	s.ErrorIs(err, ErrAIServiceNotConfigured)

	fake := &fakeCompleter{content: "```json\n" + `[
		{"name": "Stretch", "description": "morning", "schedules": [
			{"due_date": "` + day(0) + `", "from": "07:00", "to": "08:00"},
			{"due_date": "` + day(-1) + `"},
			{"due_date": "someday"}
		]},
		{"name": "   ", "schedules": []}
	]` + "\n```"}
	svc := s.newService(noon, WithAI(&AIService{client: fake, model: openai.GPT4o}))

	drafts, err := svc.GenerateDrafts(s.ctx, s.owner.ID, "stretch every morning")
	s.Require().NoError(err)
	s.Require().Len(drafts, 1)
	s.Equal("Stretch", drafts[0].Name)
	s.Require().Len(drafts[0].Schedules, 1)
	s.Equal("07:00:00", drafts[0].Schedules[0].From)
	s.Contains(fake.prompt, "stretch every morning")

	fake.content = "[]"
	_, err = svc.GenerateDrafts(s.ctx, s.owner.ID, "nothing")
	s.ErrorIs(err, ErrAINoTasksGenerated)

	fake.content = `[{"name": ""}]`
	_, err = svc.GenerateDrafts(s.ctx, s.owner.ID, "nothing")
	s.ErrorIs(err, ErrAINoValidTasks)

	fake.err = errors.New("boom")
	_, err = svc.GenerateDrafts(s.ctx, s.owner.ID, "nothing")
	s.Error(err)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
