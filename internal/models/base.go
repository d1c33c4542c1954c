package models

import (
	"time"
)

// BaseModel carries the bookkeeping timestamps shared by all tables.
// Rooms and messages use their own string ids, so no primary key lives here.
type BaseModel struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
