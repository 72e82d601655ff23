package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// FailurePolicy decides whether an unrecoverable acquisition failure stops a batch.
type FailurePolicy int

const (
	// AbortOnFailure returns the first *AcquireError to the caller.
	AbortOnFailure FailurePolicy = iota
	// SkipFailures logs *AcquireError and moves on to the next session.
	SkipFailures
)

// BatchSummary reports what one batch pass did.
type BatchSummary struct {
	Bot       string
	Sessions  int
	Succeeded int
	Failed    int
}

// BatchDriver runs the Acquirer over a set of sessions for one bot, strictly
// one session at a time.
type BatchDriver struct {
	acquirer    *Acquirer
	sessions    driven.SessionSource
	proxySource driven.ProxySource
	proxies     driven.ProxyStore
	policy      FailurePolicy
}

// NewBatchDriver creates a new BatchDriver with all required dependencies.
func NewBatchDriver(
	acquirer *Acquirer,
	sessions driven.SessionSource,
	proxySource driven.ProxySource,
	proxies driven.ProxyStore,
	policy FailurePolicy,
) *BatchDriver {
	return &BatchDriver{
		acquirer:    acquirer,
		sessions:    sessions,
		proxySource: proxySource,
		proxies:     proxies,
		policy:      policy,
	}
}

// RunForBot enumerates the sessions directory, makes sure every session has a
// proxy assignment, and acquires a query for each session in file order.
func (d *BatchDriver) RunForBot(ctx context.Context, bot string) (BatchSummary, error) {
	sessions, err := d.sessions.ListSessions(ctx)
	if err != nil {
		return BatchSummary{Bot: bot}, fmt.Errorf("list sessions: %w", err)
	}

	if err := d.AssignProxies(ctx, sessions); err != nil {
		return BatchSummary{Bot: bot}, err
	}

	return d.RunAcross(ctx, bot, sessions)
}

// AssignProxies pairs sessions with proxies. On the first call of a run the
// i-th session gets the i-th proxy from the list, and sessions beyond the end
// of the list get none. Later calls keep every existing assignment and give
// newly seen sessions no proxy.
func (d *BatchDriver) AssignProxies(ctx context.Context, sessions []model.Session) error {
	populated, err := d.proxies.Populated(ctx)
	if err != nil {
		return fmt.Errorf("check proxy assignments: %w", err)
	}

	var list []model.Proxy
	if !populated {
		list, err = d.proxySource.LoadProxies(ctx)
		if err != nil {
			return fmt.Errorf("load proxies: %w", err)
		}
		slog.Info("assigning proxies", "sessions", len(sessions), "proxies", len(list))
	}

	for i, s := range sessions {
		var proxy *model.Proxy
		if i < len(list) {
			proxy = &list[i]
		}
		if err := d.proxies.Assign(ctx, s.Data, proxy); err != nil {
			return fmt.Errorf("assign proxy to %s: %w", s.Label(), err)
		}
	}

	return nil
}

// RunAcross acquires a query for bot from each of sessions using their stored
// proxy assignment. Proxy failures, store failures and cancellation always stop
// the batch; *AcquireError stops it only under AbortOnFailure.
func (d *BatchDriver) RunAcross(ctx context.Context, bot string, sessions []model.Session) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{Bot: bot, Sessions: len(sessions)}

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		proxy, err := d.proxies.Get(ctx, s.Data)
		if err != nil {
			return summary, fmt.Errorf("get proxy for %s: %w", s.Label(), err)
		}

		if _, err := d.acquirer.Acquire(ctx, s, bot, proxy); err != nil {
			var acqErr *AcquireError
			if d.policy == SkipFailures && errors.As(err, &acqErr) {
				summary.Failed++
				slog.Error("skipping session", "session", s.Label(), "bot", bot, "error", acqErr.Err)
				continue
			}
			return summary, err
		}

		summary.Succeeded++
	}

	slog.Info("batch complete",
		"bot", bot,
		"sessions", summary.Sessions,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return summary, nil
}

// storedSessions wraps raw session strings loaded from the stores.
func storedSessions(data []string) []model.Session {
	sessions := make([]model.Session, len(data))
	for i, d := range data {
		sessions[i] = model.Session{Data: d}
	}
	return sessions
}
