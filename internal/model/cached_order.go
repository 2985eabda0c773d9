package model

import "time"

// CachedOrder is the denormalized projection of an Order as it lives in the
// cache hash. Both cache read paths (point reads and report scans) decode
// into this one type.
type CachedOrder struct {
	ID          uint      `json:"id"`
	UserID      int64     `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}
