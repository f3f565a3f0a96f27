package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Record is a stored admin session. Token holds the appliance credential
// sealed to the console key; it is never stored in clear.
type Record struct {
	ID        string
	Token     string
	LMS       bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is no longer usable at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Repository persists admin sessions across console restarts.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes expired sessions and returns how many went.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	Disconnect()
}
