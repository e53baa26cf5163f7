package scheduling

import (
	"time"

	"github.com/yukikurage/catena-api/internal/models"
)

// CanMarkDone reports whether s may be marked done at now: it must be open,
// due on now's calendar date in loc, and now's time of day must lie within
// [From, To] inclusive.
func CanMarkDone(s models.Schedule, now time.Time, loc *time.Location) bool {
	if s.Done || s.DeletedAt.Valid {
		return false
	}
	if !SameDay(s.DueDate, Day(now, loc)) {
		return false
	}

	clock := ClockOf(now, loc)
	return s.From <= clock && clock <= s.To
}

// FirstMarkable returns the first candidate that can be marked done at now.
func FirstMarkable(candidates []models.Schedule, now time.Time, loc *time.Location) (*models.Schedule, bool) {
	for i := range candidates {
		if CanMarkDone(candidates[i], now, loc) {
			return &candidates[i], true
		}
	}
	return nil, false
}
