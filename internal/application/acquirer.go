// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
	"github.com/ericfisherdev/miniappq/internal/metrics"
)

// ErrProxyUnreachable is returned when a session's assigned proxy fails its probe.
// Proxies are pre-vetted infrastructure, so this is a configuration failure.
var ErrProxyUnreachable = errors.New("proxy unreachable")

// AcquireError is an unrecoverable acquisition failure for one session and bot:
// a bad credential, a failed account or bot lookup, or a malformed web view URL.
type AcquireError struct {
	Session string
	Bot     string
	Err     error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire query for %s on %s: %v", e.Session, e.Bot, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// AcquirerOption customizes an Acquirer.
type AcquirerOption func(*Acquirer)

// WithSleep replaces the flood-wait sleep. fn must return ctx.Err() if the
// context ends before d has elapsed.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) AcquirerOption {
	return func(a *Acquirer) { a.sleep = fn }
}

// WithJitter replaces the jitter source. fn receives the configured upper bound.
func WithJitter(fn func(limit time.Duration) time.Duration) AcquirerOption {
	return func(a *Acquirer) { a.jitter = fn }
}

// Acquirer obtains one launch query for a session and bot, retrying flood waits
// for as long as Telegram keeps asking.
type Acquirer struct {
	platform   driven.Platform
	validator  driven.ProxyValidator
	identities driven.IdentityStore
	queries    driven.QueryStore
	params     model.WebAppParams
	jitterMax  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func(limit time.Duration) time.Duration
}

// NewAcquirer creates an Acquirer. jitterMax bounds the random delay added to
// every flood wait so concurrent clients do not retry in lockstep.
func NewAcquirer(
	platform driven.Platform,
	validator driven.ProxyValidator,
	identities driven.IdentityStore,
	queries driven.QueryStore,
	params model.WebAppParams,
	jitterMax time.Duration,
	opts ...AcquirerOption,
) *Acquirer {
	a := &Acquirer{
		platform:   platform,
		validator:  validator,
		identities: identities,
		queries:    queries,
		params:     params,
		jitterMax:  jitterMax,
		sleep:      sleepContext,
		jitter:     uniformJitter,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire validates the proxy (when given), then connects, resolves the account,
// links it to the session, requests the bot's web view and stores the extracted
// query. A flood wait sleeps Wait+jitter and restarts from the connect step with
// the same arguments; there is no retry cap. Any other failure is returned as
// *AcquireError and nothing is stored.
func (a *Acquirer) Acquire(ctx context.Context, session model.Session, bot string, proxy *model.Proxy) (model.QueryRecord, error) {
	start := time.Now()
	label := session.Label()

	if proxy != nil && !a.validator.Validate(ctx, *proxy) {
		metrics.ObserveAcquisition(bot, "proxy_unreachable", time.Since(start))
		return model.QueryRecord{}, fmt.Errorf("session %s: %w: %s", label, ErrProxyUnreachable, proxy.Addr())
	}

	for attempt := 1; ; attempt++ {
		rec, err := a.attempt(ctx, session, bot, proxy)
		if err == nil {
			metrics.ObserveAcquisition(bot, "ok", time.Since(start))
			slog.Info("query generated",
				"session", label,
				"user_id", rec.UserID,
				"bot", bot,
				"attempts", attempt,
				"duration", time.Since(start).Round(time.Millisecond),
			)
			return rec, nil
		}

		if ctx.Err() != nil {
			return model.QueryRecord{}, fmt.Errorf("acquire %s on %s: %w", label, bot, ctx.Err())
		}

		wait, ok := driven.AsFloodWait(err)
		if !ok {
			metrics.ObserveAcquisition(bot, "failed", time.Since(start))
			return model.QueryRecord{}, &AcquireError{Session: label, Bot: bot, Err: err}
		}

		delay := wait + a.jitter(a.jitterMax)
		metrics.ObserveFloodWait(bot, delay)
		slog.Warn("flood wait, retrying",
			"session", label,
			"bot", bot,
			"wait", wait,
			"sleep", delay.Round(time.Millisecond),
			"attempt", attempt,
		)

		if err := a.sleep(ctx, delay); err != nil {
			return model.QueryRecord{}, fmt.Errorf("acquire %s on %s: %w", label, bot, err)
		}
	}
}

// attempt runs one connect-to-store pass. The connection is released by the
// platform when the callback returns.
func (a *Acquirer) attempt(ctx context.Context, session model.Session, bot string, proxy *model.Proxy) (model.QueryRecord, error) {
	var rec model.QueryRecord

	err := a.platform.WithSession(ctx, session.Data, proxy, func(ctx context.Context, conn driven.Conn) error {
		account, err := conn.Self(ctx)
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}

		if err := a.identities.Link(ctx, account.ID, session.Data); err != nil {
			return err
		}

		rawURL, err := conn.RequestAppWebView(ctx, bot, a.params)
		if err != nil {
			return fmt.Errorf("request web view: %w", err)
		}

		query, err := model.ExtractQuery(rawURL)
		if err != nil {
			return err
		}

		rec = model.QueryRecord{
			UserID:      account.ID,
			BotUsername: bot,
			Query:       query,
			Name:        account.DisplayName(),
			Proxy:       proxy,
		}

		return a.queries.Insert(ctx, rec)
	})
	if err != nil {
		return model.QueryRecord{}, err
	}

	return rec, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// uniformJitter returns a random duration in [0, limit).
func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
