package port

import "context"

// SeenStore is the durable, append-only set of heights already published.
type SeenStore interface {
	Has(ctx context.Context, height int64) (bool, error)
	// Mark inserts height; marking a present height is a no-op.
	Mark(ctx context.Context, height int64) error
	Close() error
}
