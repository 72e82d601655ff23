package driven

import (
	"context"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// ProxyStore defines the driven port for session→proxy assignments.
// Assign never overwrites an existing assignment, including a "no proxy" one.
type ProxyStore interface {
	Assign(ctx context.Context, session string, proxy *model.Proxy) error
	// Get returns the assigned proxy, or nil when the session has none.
	Get(ctx context.Context, session string) (*model.Proxy, error)
	// ListAll returns every assignment in the order it was first recorded.
	ListAll(ctx context.Context) ([]model.ProxyAssignment, error)
	// Populated reports whether any assignment has been recorded during this run.
	Populated(ctx context.Context) (bool, error)
}
