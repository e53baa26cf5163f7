package scheduling

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/models"
)

// EntryInput is a schedule occurrence as supplied by a client.
type EntryInput struct {
	DueDate string
	From    string
	To      string
	Remarks string
}

// Entry is a validated occurrence ready to be stored.
type Entry struct {
	DueDate datatypes.Date
	From    string
	To      string
	Remarks string
}

// EntryError points at the offending field of one supplied occurrence.
type EntryError struct {
	Index   int
	Field   string
	Message string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("schedules.%d.%s: %s", e.Index, e.Field, e.Message)
}

// NormalizeEntries validates supplied occurrences and fills in the window
// defaults. A window whose start is after its end is rejected.
func NormalizeEntries(inputs []EntryInput, loc *time.Location) ([]Entry, error) {
	entries := make([]Entry, 0, len(inputs))

	for i, in := range inputs {
		due, err := ParseDueDate(in.DueDate, loc)
		if err != nil {
			return nil, &EntryError{Index: i, Field: "due_date", Message: err.Error()}
		}

		from, err := NormalizeClock(in.From, constants.DefaultWindowFrom)
		if err != nil {
			return nil, &EntryError{Index: i, Field: "from", Message: err.Error()}
		}

		to, err := NormalizeClock(in.To, constants.DefaultWindowTo)
		if err != nil {
			return nil, &EntryError{Index: i, Field: "to", Message: err.Error()}
		}

		if from > to {
			return nil, &EntryError{Index: i, Field: "to", Message: "window end must not be before its start"}
		}

		entries = append(entries, Entry{
			DueDate: due,
			From:    from,
			To:      to,
			Remarks: strings.TrimSpace(in.Remarks),
		})
	}

	return entries, nil
}

// Build turns entries into undone schedules owned by the given task and user.
func Build(entries []Entry, taskID, ownerID uint64) []models.Schedule {
	schedules := make([]models.Schedule, len(entries))
	for i, e := range entries {
		schedules[i] = models.Schedule{
			TaskID:  taskID,
			OwnerID: ownerID,
			DueDate: e.DueDate,
			From:    e.From,
			To:      e.To,
			Remarks: e.Remarks,
			Done:    false,
		}
	}
	return schedules
}
