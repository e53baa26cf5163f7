package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// OwnedBy restricts a query to rows whose owner_id matches.
func OwnedBy(ownerID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", ownerID)
	}
}

// Active is gorm's default soft-delete filter, spelled out for symmetry
// with WithTrashed and OnlyTrashed.
func Active(db *gorm.DB) *gorm.DB {
	return db
}

// WithTrashed includes soft-deleted rows.
func WithTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// OnlyTrashed returns soft-deleted rows only.
func OnlyTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Where("deleted_at IS NOT NULL")
}
