package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Session struct {
	ID             string
	Resume         string
	JobDescription string
	Phase          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Answer struct {
	ID        int64
	SessionID string
	TurnIndex int
	Role      string
	Question  string
	Answer    string
	Score     float64
	CreatedAt time.Time
}
