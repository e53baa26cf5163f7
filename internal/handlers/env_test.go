package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/auth"
	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/mail"
	"github.com/yukikurage/catena-api/internal/middleware"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/services"
	"github.com/yukikurage/catena-api/internal/testutil"
	"github.com/yukikurage/catena-api/internal/validation"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(ctx context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type testEnv struct {
	db          *gorm.DB
	router      *gin.Engine
	hub         *broadcast.Hub
	tokens      *auth.TokenIssuer
	authService *services.AuthService
	taskService *services.TaskService
	mailbox     *outbox
}

func setupTestEnv(t *testing.T, opts ...services.TaskServiceOption) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	db := testutil.NewDB(t)
	log := logging.Nop()
	hub := broadcast.NewHub(16)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	box := &outbox{}

	users := repository.NewUserRepository(db)
	authService := services.NewAuthService(users, tokens, log)
	resetService := services.NewPasswordResetService(
		users, repository.NewPasswordResetRepository(db), authService, box, log, time.Hour, "http://localhost/reset",
	)
	opts = append([]services.TaskServiceOption{services.WithClock(func() time.Time { return testNow })}, opts...)
	taskService := services.NewTaskService(
		repository.NewTaskRepository(db),
		repository.NewScheduleRepository(db),
		hub,
		log,
		time.UTC,
		opts...,
	)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.GET("/health", Health)
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Auth:   NewAuthHandler(authService, log),
		Reset:  NewPasswordResetHandler(resetService, log),
		Tasks:  NewTaskHandler(taskService, log),
		Events: NewEventHandler(hub, log),
	}, middleware.RequireAuth(tokens))

	return &testEnv{
		db:          db,
		router:      r,
		hub:         hub,
		tokens:      tokens,
		authService: authService,
		taskService: taskService,
		mailbox:     box,
	}
}

// signup registers a user through the service and returns its bearer token.
func (e *testEnv) signup(t *testing.T, email string) (uint64, string) {
	t.Helper()

	session, err := e.authService.Signup(context.Background(), services.Credentials{Email: email, Password: "supersecret"})
	require.NoError(t, err)
	return session.User.ID, session.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Errors  []struct {
		Field      string `json:"field"`
		Validation string `json:"validation"`
		Message    string `json:"message"`
	} `json:"errors"`
	Pagination *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
