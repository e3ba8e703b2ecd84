package sessioncache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMiss    = errors.New("session cache miss")
	ErrRevoked = errors.New("cached session is revoked")
)

// Entry mirrors the fields of a stored session needed to admit a request.
type Entry struct {
	JTI         string
	IsLoggedOut bool
	IPAddress   string
	Location    string
	CreatedAt   time.Time
}

// Cache is a fast, non-authoritative copy of session state. Callers must fall
// back to the session store on ErrMiss or any other error.
//
// A logged-out entry acts as a tombstone: Save refuses to overwrite it with a
// live entry and returns ErrRevoked. Replace writes unconditionally and is
// reserved for a fresh login, which revives the session.
type Cache interface {
	Save(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error
	Replace(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error
	Get(ctx context.Context, userID, deviceID string) (*Entry, error)
	Delete(ctx context.Context, userID, deviceID string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
}

const keyPrefix = "session"

func Key(userID, deviceID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, deviceID)
}

func userPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, userID)
}
