// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// QueryStore defines the driven port for generated launch tokens. Rows are not
// unique per (user, bot): a refresh clears the scope and inserts fresh rows.
type QueryStore interface {
	Insert(ctx context.Context, rec model.QueryRecord) error
	// List returns the records matching filter in insertion order.
	List(ctx context.Context, filter model.QueryFilter) ([]model.QueryRecord, error)
	// Clear deletes the records matching filter and returns how many were removed.
	Clear(ctx context.Context, filter model.QueryFilter) (int64, error)
	HasUser(ctx context.Context, userID int64) (bool, error)
	HasBot(ctx context.Context, bot string) (bool, error)
}
