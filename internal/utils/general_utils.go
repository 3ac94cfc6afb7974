package utils

import (
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
)

func Paginate(page, size int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if size < 1 {
			size = 10
		}
		offset := (page - 1) * size
		return db.Offset(offset).Limit(size)
	}
}

// ParticipantsKey builds the dedup key for a direct conversation: the sorted
// participant ids joined with the context. Order-insensitive so both sides
// of a pair produce the same key.
func ParticipantsKey(participantIDs []uint, context string) string {
	ids := slices.Clone(participantIDs)
	slices.Sort(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ":") + "@" + context
}
