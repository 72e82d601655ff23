package driven

import "context"

// IdentityStore defines the driven port for the account→session linkage.
// Link is append-only and may be called repeatedly for the same pair.
type IdentityStore interface {
	Link(ctx context.Context, userID int64, session string) error
	IsKnown(ctx context.Context, userID int64) (bool, error)
	// SessionsFor returns the distinct sessions linked to userID, oldest first.
	SessionsFor(ctx context.Context, userID int64) ([]string, error)
}
