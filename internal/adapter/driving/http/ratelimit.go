package httphandler

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RefreshLimiter throttles refresh requests process-wide. Every refresh talks
// to Telegram for every matching session, so the budget is shared by all
// callers rather than kept per client.
type RefreshLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRefreshLimiter allows rps refreshes per second with the given burst.
func NewRefreshLimiter(rps float64, burst int, logger *slog.Logger) *RefreshLimiter {
	return &RefreshLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Limit rejects requests beyond the budget with 429 and a Retry-After hint.
func (l *RefreshLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			retryAfter := int(math.Ceil(1 / float64(l.limiter.Limit())))
			if retryAfter < 1 {
				retryAfter = 1
			}

			l.logger.Warn("refresh rate limit exceeded",
				"remote_addr", r.RemoteAddr,
				"request_id", requestIDFrom(r.Context()),
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many refresh requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
