package port

import (
	"context"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
)

// Publisher sends one block per call to the broker and waits for its ack.
type Publisher interface {
	Publish(ctx context.Context, block entity.Block) (entity.PublishAck, error)
	// FlushAndClose drains buffered records and releases the client.
	FlushAndClose(ctx context.Context) error
}
