package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Rating is one user's rating of an act, at most one per (user, act).
type Rating struct {
	bun.BaseModel `bun:"table:ratings"`

	ID        string    `bun:"id,pk" json:"id"`
	UserEmail string    `bun:"user_email,notnull" json:"userEmail"`
	Act       string    `bun:"act,notnull" json:"act"`
	Rating    int       `bun:"rating,notnull" json:"rating"`
	Comment   string    `bun:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// RatingAverage is the aggregate view of an act's ratings.
type RatingAverage struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
