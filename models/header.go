package models

import "time"

// Header is embedded by the documents of all services
type Header struct {
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	RecVer    int64     `json:"recVer" bson:"recVer"` // optimistic locking (update, delete) - starts with 0
}

// touch stamps a new or changed document
func (h *Header) touch(now time.Time) {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
}
