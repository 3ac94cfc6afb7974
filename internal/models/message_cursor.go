package models

import "time"

// MessageCursor points just below one message in the (created_at, id)
// order. The id part disambiguates timestamp ties across pages.
type MessageCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        uint      `json:"id"`
}
