package port

import (
	"context"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
)

// UnknownHeight is returned by ChainReader.TipHeight when the tip could not be
// read this cycle.
const UnknownHeight int64 = -1

// ChainReader fetches the confirmed chain from an external source. Calls are
// single attempts; retry cadence belongs to the caller.
type ChainReader interface {
	// TipHeight returns the best known height, or UnknownHeight with an error.
	TipHeight(ctx context.Context) (int64, error)
	// Block returns the block document at height, or nil with an error.
	Block(ctx context.Context, height int64) (entity.Block, error)
}
