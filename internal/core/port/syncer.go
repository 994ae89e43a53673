package port

import "context"

// Syncer drives the poll-dedup-publish loop until stopped.
type Syncer interface {
	Run(ctx context.Context) error
	Stop()
	State() string
}
