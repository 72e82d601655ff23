package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
	"github.com/ericfisherdev/miniappq/internal/metrics"
)

var (
	// ErrUserNotFound is returned when a user id has never been seen.
	ErrUserNotFound = errors.New("user not found")
	// ErrBotNotFound is returned for a bot that is not configured or has no records.
	ErrBotNotFound = errors.New("bot not found")
	// ErrServiceStopped is returned by Refresh once the service loop has exited.
	ErrServiceStopped = errors.New("query service stopped")
)

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	filter model.QueryFilter
	done   chan refreshResult
}

type refreshResult struct {
	records []model.QueryRecord
	err     error
}

// QueryService owns the query store's lifecycle: the startup generation pass,
// manual refreshes and the optional periodic refresh. All store mutations run
// on the Start goroutine, so refreshes never interleave.
type QueryService struct {
	batch      *BatchDriver
	queries    driven.QueryStore
	identities driven.IdentityStore
	proxies    driven.ProxyStore
	bots       []string
	interval   time.Duration
	refreshCh  chan refreshRequest
	ready      chan struct{}
	stopped    chan struct{}
}

// NewQueryService creates a new QueryService. An interval of zero disables the
// periodic refresh.
func NewQueryService(
	batch *BatchDriver,
	queries driven.QueryStore,
	identities driven.IdentityStore,
	proxies driven.ProxyStore,
	bots []string,
	interval time.Duration,
) *QueryService {
	return &QueryService{
		batch:      batch,
		queries:    queries,
		identities: identities,
		proxies:    proxies,
		bots:       bots,
		interval:   interval,
		refreshCh:  make(chan refreshRequest),
		ready:      make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start runs the batch driver for every configured bot, then serves refresh
// requests until ctx is canceled. It returns a non-nil error only for a fatal
// failure, which should terminate the process.
func (s *QueryService) Start(ctx context.Context) error {
	defer close(s.stopped)

	if _, err := s.refresh(ctx, model.QueryFilter{}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("initial generation: %w", err)
	}
	close(s.ready)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("query service stopped")
			return nil
		case <-tick:
			if _, err := s.refresh(ctx, model.QueryFilter{}); s.fatal(ctx, err) {
				return fmt.Errorf("periodic refresh: %w", err)
			}
		case req := <-s.refreshCh:
			records, err := s.refresh(ctx, req.filter)
			req.done <- refreshResult{records: records, err: err}
			if s.fatal(ctx, err) {
				return fmt.Errorf("refresh: %w", err)
			}
		}
	}
}

// Ready is closed once the startup generation pass has completed.
func (s *QueryService) Ready() <-chan struct{} {
	return s.ready
}

// Refresh clears and regenerates the records in filter's scope and returns the
// fresh records. It blocks until the service loop has handled the request.
func (s *QueryService) Refresh(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	done := make(chan refreshResult, 1)
	req := refreshRequest{filter: filter, done: done}

	select {
	case s.refreshCh <- req:
	case <-s.stopped:
		return nil, ErrServiceStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-done:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns the stored records in filter's scope. A user or bot named by the
// filter that has no records at all yields ErrUserNotFound or ErrBotNotFound;
// the user is checked first.
func (s *QueryService) List(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	if filter.UserID != nil {
		has, err := s.queries.HasUser(ctx, *filter.UserID)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, ErrUserNotFound
		}
	}

	if filter.Bot != "" {
		has, err := s.queries.HasBot(ctx, filter.Bot)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, ErrBotNotFound
		}
	}

	return s.queries.List(ctx, filter)
}

// fatal reports whether a refresh error should stop the service. Lookup misses
// are caller errors and cancellation is a normal shutdown.
func (s *QueryService) fatal(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrUserNotFound) && !errors.Is(err, ErrBotNotFound)
}

func (s *QueryService) refresh(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	start := time.Now()
	scope := scopeOf(filter)

	records, err := s.regenerate(ctx, filter)
	metrics.ObserveRefresh(scope, err == nil)

	if err != nil {
		slog.Error("refresh failed", "scope", scope, "error", err)
		return nil, err
	}

	slog.Info("refresh complete",
		"scope", scope,
		"records", len(records),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return records, nil
}

// regenerate validates the scope before touching the store, so a rejected
// request leaves every record in place.
func (s *QueryService) regenerate(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	switch {
	case filter.UserID == nil && filter.Bot == "":
		if _, err := s.queries.Clear(ctx, filter); err != nil {
			return nil, fmt.Errorf("clear queries: %w", err)
		}
		for _, bot := range s.bots {
			if _, err := s.batch.RunForBot(ctx, bot); err != nil {
				return nil, err
			}
		}

	case filter.UserID != nil:
		known, err := s.identities.IsKnown(ctx, *filter.UserID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, ErrUserNotFound
		}

		bots := s.bots
		if filter.Bot != "" {
			if !slices.Contains(s.bots, filter.Bot) {
				return nil, ErrBotNotFound
			}
			bots = []string{filter.Bot}
		}

		data, err := s.identities.SessionsFor(ctx, *filter.UserID)
		if err != nil {
			return nil, err
		}

		if _, err := s.queries.Clear(ctx, filter); err != nil {
			return nil, fmt.Errorf("clear queries: %w", err)
		}
		for _, bot := range bots {
			if _, err := s.batch.RunAcross(ctx, bot, storedSessions(data)); err != nil {
				return nil, err
			}
		}

	default:
		if !slices.Contains(s.bots, filter.Bot) {
			return nil, ErrBotNotFound
		}

		assignments, err := s.proxies.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		data := make([]string, len(assignments))
		for i, a := range assignments {
			data[i] = a.Session
		}

		if _, err := s.queries.Clear(ctx, filter); err != nil {
			return nil, fmt.Errorf("clear queries: %w", err)
		}
		if _, err := s.batch.RunAcross(ctx, filter.Bot, storedSessions(data)); err != nil {
			return nil, err
		}
	}

	return s.queries.List(ctx, filter)
}

func scopeOf(filter model.QueryFilter) string {
	switch {
	case filter.UserID != nil && filter.Bot != "":
		return "user_bot"
	case filter.UserID != nil:
		return "user"
	case filter.Bot != "":
		return "bot"
	default:
		return "all"
	}
}
