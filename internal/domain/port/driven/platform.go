package driven

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// FloodWaitError is returned by Platform operations when Telegram asks the
// caller to wait before repeating the request.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.Wait)
}

// AsFloodWait reports whether err carries a flood wait and returns its duration.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}

// Platform defines the driven port for the Telegram client.
//
// WithSession connects using the given string session, dialing through proxy
// when non-nil, and calls fn with the live connection. The connection is
// released before WithSession returns, whatever fn returns.
type Platform interface {
	WithSession(ctx context.Context, session string, proxy *model.Proxy, fn func(ctx context.Context, conn Conn) error) error
}

// Conn is an authenticated Telegram connection scoped to one WithSession call.
type Conn interface {
	// Self resolves the account that owns the session.
	Self(ctx context.Context) (model.Account, error)
	// RequestAppWebView opens the bot's mini app and returns the redirect URL.
	RequestAppWebView(ctx context.Context, bot string, params model.WebAppParams) (string, error)
}
