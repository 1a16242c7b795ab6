package recovery

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoCode is returned by Get when no code is pending for the email.
var ErrNoCode = errors.New("no recovery code pending")

// Entry is one pending recovery code.
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"` // failed guesses so far
}

// Expired reports whether the entry is no longer usable at now. A code is
// still valid at exactly its expiry instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// CodeStore holds at most one pending code per email. Put overwrites any
// previous code; concurrent writers resolve last-write-wins.
//
// RecordFailure atomically bumps the failed-attempt counter of the pending
// code and returns the new count, or ErrNoCode when none is pending.
type CodeStore interface {
	Get(ctx context.Context, email string) (Entry, error)
	Put(ctx context.Context, email string, e Entry) error
	Delete(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) (int, error)
}

// NormalizeEmail is the key form shared by every store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
