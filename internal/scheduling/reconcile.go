package scheduling

import (
	"gorm.io/datatypes"

	"github.com/yukikurage/catena-api/internal/models"
)

// Plan is the diff between a task's stored schedules and a replacement list.
type Plan struct {
	// Delete holds the ids of undone schedules due today or later.
	Delete []uint64
	// Insert holds the replacement entries that survive filtering.
	Insert []Entry
	// DoneToday is set when a schedule due today is already done; incoming
	// entries for today were dropped to protect it.
	DoneToday bool
}

// Empty reports whether applying the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Insert) == 0
}

// Reconcile computes how a replacement list applies to a task's active
// schedules. Occurrences due before today are never touched, nor are done
// ones. An empty replacement list leaves everything in place.
func Reconcile(existing []models.Schedule, replacement []Entry, today datatypes.Date) Plan {
	if len(replacement) == 0 {
		return Plan{}
	}

	var plan Plan
	for _, s := range existing {
		if s.Done {
			if SameDay(s.DueDate, today) {
				plan.DoneToday = true
			}
			continue
		}
		if Compare(s.DueDate, today) >= 0 {
			plan.Delete = append(plan.Delete, s.ID)
		}
	}

	plan.Insert = make([]Entry, 0, len(replacement))
	for _, e := range replacement {
		if plan.DoneToday && SameDay(e.DueDate, today) {
			continue
		}
		plan.Insert = append(plan.Insert, e)
	}

	return plan
}
