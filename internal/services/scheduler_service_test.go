package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yukikurage/catena-api/internal/logging"
)

func TestSchedulerService_ScheduleInterval(t *testing.T) {
	s := NewSchedulerService(time.UTC, logging.Nop())

	_, err := s.ScheduleInterval(0, func() {})
	require.Error(t, err)

	_, err = s.ScheduleInterval(time.Minute, func() {})
	require.NoError(t, err)

	_, err = s.ScheduleInterval(200*time.Millisecond, func() {})
	require.NoError(t, err)

	require.Equal(t, 2, s.Entries())
}

func TestSchedulerService_RunsTask(t *testing.T) {
	s := NewSchedulerService(time.UTC, logging.Nop())

	ran := make(chan struct{}, 4)
	_, err := s.ScheduleTask("probe", time.Second, func(ctx context.Context) error {
		ran <- struct{}{}
		return errors.New("logged, not fatal")
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled task did not run")
	}
}
