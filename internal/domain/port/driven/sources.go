package driven

import (
	"context"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// SessionSource lists the stored session credentials.
type SessionSource interface {
	// ListSessions returns every session in a stable order (file name order).
	ListSessions(ctx context.Context) ([]model.Session, error)
}

// ProxySource reads the configured proxy list.
type ProxySource interface {
	LoadProxies(ctx context.Context) ([]model.Proxy, error)
}

// ProxyValidator probes a proxy once before it is trusted.
type ProxyValidator interface {
	Validate(ctx context.Context, proxy model.Proxy) bool
}
