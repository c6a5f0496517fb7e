package contracts

import (
	"context"
	"time"
)

// PresenceStore keeps the last time each user was seen connected.
type PresenceStore interface {
	// Touch records userID as seen at the given time.
	Touch(ctx context.Context, userID string, at time.Time) error
	// LastSeen returns false when the user was never seen.
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}
