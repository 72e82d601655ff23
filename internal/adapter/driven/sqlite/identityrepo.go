package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityStore = (*IdentityRepo)(nil)

// IdentityRepo is the SQLite implementation of the IdentityStore port interface.
// The identities table is append-only; duplicate links are expected.
type IdentityRepo struct {
	db *DB
}

// NewIdentityRepo creates a new IdentityRepo backed by the given DB.
func NewIdentityRepo(db *DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// Link appends an account→session row.
func (r *IdentityRepo) Link(ctx context.Context, userID int64, session string) error {
	const query = `INSERT INTO identities (user_id, session) VALUES (?, ?)`

	if _, err := r.db.Writer.ExecContext(ctx, query, userID, session); err != nil {
		return fmt.Errorf("link identity %d: %w", userID, err)
	}

	return nil
}

// IsKnown reports whether userID has ever been linked to a session.
func (r *IdentityRepo) IsKnown(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM identities WHERE user_id = ?)`

	var known bool
	if err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&known); err != nil {
		return false, fmt.Errorf("check identity %d: %w", userID, err)
	}

	return known, nil
}

// SessionsFor returns the distinct sessions linked to userID, oldest link first.
func (r *IdentityRepo) SessionsFor(ctx context.Context, userID int64) ([]string, error) {
	const query = `SELECT session FROM identities WHERE user_id = ? GROUP BY session ORDER BY MIN(rowid)`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %d: %w", userID, err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}
