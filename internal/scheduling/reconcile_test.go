package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/yukikurage/catena-api/internal/models"
)

var today = Date(2026, 10, 19)

func schedule(id uint64, due datatypes.Date, done bool) models.Schedule {
	return models.Schedule{ID: id, DueDate: due, From: "00:00:00", To: "23:59:59", Done: done}
}

func entry(due datatypes.Date, from, to string) Entry {
	return Entry{DueDate: due, From: from, To: to}
}

func TestReconcile_NoReplacementLeavesEverything(t *testing.T) {
	existing := []models.Schedule{schedule(1, today, false), schedule(2, AddDays(today, 1), false)}

	plan := Reconcile(existing, nil, today)
	assert.True(t, plan.Empty())

	plan = Reconcile(existing, []Entry{}, today)
	assert.True(t, plan.Empty())
}

func TestReconcile_ReplacesTodayAndFuture(t *testing.T) {
	yesterday, tomorrow := AddDays(today, -1), AddDays(today, 1)
	existing := []models.Schedule{
		schedule(1, yesterday, false),
		schedule(2, today, false),
		schedule(3, tomorrow, false),
	}
	replacement := []Entry{
		entry(today, "09:00:00", "10:00:00"),
		entry(tomorrow, "09:00:00", "10:00:00"),
	}

	plan := Reconcile(existing, replacement, today)

	assert.ElementsMatch(t, []uint64{2, 3}, plan.Delete)
	assert.Equal(t, replacement, plan.Insert)
	assert.False(t, plan.DoneToday)
}

func TestReconcile_ProtectsScheduleDoneToday(t *testing.T) {
	yesterday, tomorrow := AddDays(today, -1), AddDays(today, 1)
	existing := []models.Schedule{
		schedule(1, yesterday, false),
		schedule(2, today, true),
		schedule(3, tomorrow, false),
	}
	replacement := []Entry{
		entry(today, "09:00:00", "10:00:00"),
		entry(tomorrow, "09:00:00", "10:00:00"),
	}

	plan := Reconcile(existing, replacement, today)

	assert.Equal(t, []uint64{3}, plan.Delete)
	assert.Equal(t, []Entry{replacement[1]}, plan.Insert)
	assert.True(t, plan.DoneToday)
}

func TestReconcile_DoneFutureSchedulesAreKept(t *testing.T) {
	tomorrow := AddDays(today, 1)
	existing := []models.Schedule{schedule(1, tomorrow, true), schedule(2, tomorrow, false)}

	plan := Reconcile(existing, []Entry{entry(tomorrow, "00:00:00", "23:59:59")}, today)

	assert.Equal(t, []uint64{2}, plan.Delete)
	assert.Len(t, plan.Insert, 1)
	assert.False(t, plan.DoneToday)
}

func TestReconcile_DoneAndUndoneBothDueToday(t *testing.T) {
	existing := []models.Schedule{schedule(1, today, false), schedule(2, today, true)}

	plan := Reconcile(existing, []Entry{entry(today, "00:00:00", "23:59:59")}, today)

	assert.Equal(t, []uint64{1}, plan.Delete)
	assert.Empty(t, plan.Insert)
	assert.True(t, plan.DoneToday)
	assert.False(t, plan.Empty())
}
