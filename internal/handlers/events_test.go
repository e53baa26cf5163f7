package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/constants"
)

func TestEventHandler_StreamsOwnEvents(t *testing.T) {
	env := setupTestEnv(t)
	userID, token := env.signup(t, "listener@example.com")
	otherID, _ := env.signup(t, "someone@example.com")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool {
		return env.hub.Subscribers(constants.BroadcastTopic) == 1
	}, time.Second, 10*time.Millisecond)

	env.hub.Publish(constants.BroadcastTopic, broadcast.Event{Name: constants.EventTaskDeleted, OwnerID: otherID, Payload: "theirs"})
	env.hub.Publish(constants.BroadcastTopic, broadcast.Event{Name: constants.EventTaskCreated, OwnerID: userID, Payload: "mine"})

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}

	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "event:"+constants.EventTaskCreated)
	require.Contains(t, joined, `"mine"`)
	require.NotContains(t, joined, constants.EventTaskDeleted)
}

func TestEventHandler_RequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/events", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
