package database

import (
	"fmt"

	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// Composite indexes for the hot query paths: an owner's tasks by name and
// a task's schedules by due date.
var indexes = []index{
	{"tasks", "idx_tasks_owner_name", "owner_id, name"},
	{"tasks", "idx_tasks_owner_created_at", "owner_id, created_at"},
	{"schedules", "idx_schedules_task_due_date", "task_id, due_date"},
	{"schedules", "idx_schedules_owner_due_date", "owner_id, due_date"},
	{"password_resets", "idx_password_resets_email_created_at", "email, created_at"},
}

// AddIndexes creates the composite indexes that AutoMigrate does not derive
// from struct tags. Existing indexes are skipped.
func AddIndexes(db *gorm.DB) error {
	migrator := db.Migrator()

	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// MigrateDatabase runs AutoMigrate and then adds the composite indexes.
func MigrateDatabase(db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		return err
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
