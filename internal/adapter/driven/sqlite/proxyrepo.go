package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProxyStore = (*ProxyRepo)(nil)

// ProxyRepo is the SQLite implementation of the ProxyStore port interface.
// Proxies are stored in their canonical string form; NULL means "no proxy".
type ProxyRepo struct {
	db *DB
}

// NewProxyRepo creates a new ProxyRepo backed by the given DB.
func NewProxyRepo(db *DB) *ProxyRepo {
	return &ProxyRepo{db: db}
}

// Assign records the proxy for a session unless the session already has an
// assignment. Existing rows are left untouched.
func (r *ProxyRepo) Assign(ctx context.Context, session string, proxy *model.Proxy) error {
	const query = `INSERT OR IGNORE INTO proxy_assignments (session, proxy) VALUES (?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query, session, proxyToNullString(proxy))
	if err != nil {
		return fmt.Errorf("assign proxy: %w", err)
	}

	return nil
}

// Get returns the proxy assigned to session, or nil when there is none.
func (r *ProxyRepo) Get(ctx context.Context, session string) (*model.Proxy, error) {
	const query = `SELECT proxy FROM proxy_assignments WHERE session = ?`

	var raw sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, query, session).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proxy assignment: %w", err)
	}

	return nullStringToProxy(raw)
}

// ListAll returns all assignments in the order they were recorded.
func (r *ProxyRepo) ListAll(ctx context.Context) ([]model.ProxyAssignment, error) {
	const query = `SELECT session, proxy FROM proxy_assignments ORDER BY rowid`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list proxy assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.ProxyAssignment
	for rows.Next() {
		var a model.ProxyAssignment
		var raw sql.NullString
		if err := rows.Scan(&a.Session, &raw); err != nil {
			return nil, fmt.Errorf("scan proxy assignment: %w", err)
		}
		if a.Proxy, err = nullStringToProxy(raw); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy assignments: %w", err)
	}

	return assignments, nil
}

// Populated reports whether any assignment exists. The table is recreated at
// startup, so this answers "has assignment already happened in this run".
func (r *ProxyRepo) Populated(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM proxy_assignments)`

	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("check proxy assignments: %w", err)
	}

	return exists, nil
}

func proxyToNullString(p *model.Proxy) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.String(), Valid: true}
}

func nullStringToProxy(s sql.NullString) (*model.Proxy, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}

	p, err := model.ParseProxy(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored proxy: %w", err)
	}

	return &p, nil
}
