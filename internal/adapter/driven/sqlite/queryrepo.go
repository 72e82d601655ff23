package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.QueryStore = (*QueryRepo)(nil)

// QueryRepo is the SQLite implementation of the QueryStore port interface.
type QueryRepo struct {
	db *DB
}

// NewQueryRepo creates a new QueryRepo backed by the given DB.
func NewQueryRepo(db *DB) *QueryRepo {
	return &QueryRepo{db: db}
}

// Insert appends a generated query. Existing rows for the same pair are kept.
func (r *QueryRepo) Insert(ctx context.Context, rec model.QueryRecord) error {
	const query = `INSERT INTO queries (user_id, bot_username, query, name, proxy) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		rec.UserID, rec.BotUsername, rec.Query, rec.Name, proxyToNullString(rec.Proxy))
	if err != nil {
		return fmt.Errorf("insert query for %d/%s: %w", rec.UserID, rec.BotUsername, err)
	}

	return nil
}

// List returns the records matching filter in insertion order.
func (r *QueryRepo) List(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	where, args := whereClause(filter)
	query := `SELECT user_id, bot_username, query, name, proxy FROM queries` + where + ` ORDER BY rowid`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var records []model.QueryRecord
	for rows.Next() {
		var rec model.QueryRecord
		var proxy sql.NullString
		if err := rows.Scan(&rec.UserID, &rec.BotUsername, &rec.Query, &rec.Name, &proxy); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		if rec.Proxy, err = nullStringToProxy(proxy); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}

	return records, nil
}

// Clear deletes the records matching filter. An empty filter clears everything.
func (r *QueryRepo) Clear(ctx context.Context, filter model.QueryFilter) (int64, error) {
	where, args := whereClause(filter)

	result, err := r.db.Writer.ExecContext(ctx, `DELETE FROM queries`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return n, nil
}

// HasUser reports whether any stored query belongs to userID.
func (r *QueryRepo) HasUser(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM queries WHERE user_id = ?)`

	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check queries for user %d: %w", userID, err)
	}

	return exists, nil
}

// HasBot reports whether any stored query targets bot.
func (r *QueryRepo) HasBot(ctx context.Context, bot string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM queries WHERE bot_username = ?)`

	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query, bot).Scan(&exists); err != nil {
		return false, fmt.Errorf("check queries for bot %s: %w", bot, err)
	}

	return exists, nil
}

// whereClause builds the WHERE fragment and arguments for a filter.
func whereClause(filter model.QueryFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Bot != "" {
		conds = append(conds, "bot_username = ?")
		args = append(args, filter.Bot)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}
