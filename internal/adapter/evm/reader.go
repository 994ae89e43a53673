package evm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blocksync-service/internal/pkg/metrics"
)

const (
	driverName   = "evm"
	fetchTimeout = 10 * time.Second
)

// Reader reads the chain tip and blocks from an EVM node over JSON-RPC.
//
// The connection is dialed on first use and dropped after any failed call, so
// the next call redials. There is no retry inside the reader.
type Reader struct {
	log       applog.AppLogger
	config    Config
	timeout   time.Duration
	newClient func(context.Context) (ethereumClient, error)

	mu     sync.Mutex
	client ethereumClient
}

var _ port.ChainReader = (*Reader)(nil)

// NewReader validates cfg and returns a Reader. No connection is made yet.
func NewReader(log applog.AppLogger, cfg Config, v *validator.Validate) (*Reader, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid evm reader config", err)
	}

	r := &Reader{
		log:     log,
		config:  cfg,
		timeout: fetchTimeout,
	}
	if cfg.TimeoutSeconds > 0 {
		r.timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	r.newClient = func(ctx context.Context) (ethereumClient, error) {
		return ethclient.DialContext(ctx, cfg.RPCURL)
	}
	return r, nil
}

// TipHeight returns the latest block number, or port.UnknownHeight with a
// BlockFetchErr on failure.
func (r *Reader) TipHeight(ctx context.Context) (int64, error) {
	imetrics.Reader().RequestsTotal.WithLabelValues(driverName, "tip").Inc()
	start := time.Now()
	defer observe("tip", start)

	client, err := r.connect(ctx)
	if err != nil {
		return port.UnknownHeight, r.fail("tip", err, "failed to dial evm node")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := client.BlockNumber(callCtx)
	if err != nil {
		r.drop(client)
		return port.UnknownHeight, r.fail("tip", err, "eth_blockNumber failed")
	}
	if n > math.MaxInt64 {
		return port.UnknownHeight, r.fail("tip", nil, "block number out of range")
	}

	r.log.Trace("Fetched tip height", "tip", n)
	return int64(n), nil
}

// Block returns the block at height rendered as a document with height, hash,
// parentHash, timestamp, miner, gas figures and transaction hashes.
func (r *Reader) Block(ctx context.Context, height int64) (entity.Block, error) {
	if height < 0 {
		return nil, apperr.NewInvalidArgErr("height must be non-negative", nil)
	}
	imetrics.Reader().RequestsTotal.WithLabelValues(driverName, "block").Inc()
	start := time.Now()
	defer observe("block", start)

	client, err := r.connect(ctx)
	if err != nil {
		return nil, r.fail("block", err, "failed to dial evm node")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	blk, err := client.BlockByNumber(callCtx, big.NewInt(height))
	if err != nil {
		r.drop(client)
		return nil, r.fail("block", err, "eth_getBlockByNumber failed")
	}
	if blk == nil {
		return nil, r.fail("block", nil, "node returned no block")
	}
	if got := blk.Number(); got == nil || !got.IsInt64() || got.Int64() != height {
		return nil, r.fail("block", nil, fmt.Sprintf("node returned block %v for height %d", got, height))
	}

	r.log.Trace("Fetched block", "height", height, "txs", len(blk.Transactions()))
	return toDocument(blk), nil
}

// Close releases the node connection if one is open.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

func (r *Reader) connect(ctx context.Context) (ethereumClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	if r.newClient == nil {
		return nil, apperr.NewBlockFetchErr("client factory not configured", nil)
	}
	c, err := r.newClient(ctx)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

func (r *Reader) drop(c ethereumClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == c {
		r.client = nil
	}
	c.Close()
}

func (r *Reader) fail(call string, err error, msg string) error {
	imetrics.Reader().ErrorsTotal.WithLabelValues(driverName, call, classifyError(err)).Inc()
	r.log.Debug("EVM request failed", "call", call, "msg", msg, "err", err)
	return apperr.NewBlockFetchErr(msg, err)
}

func observe(call string, start time.Time) {
	imetrics.Reader().FetchLatencyMS.WithLabelValues(driverName, call).Observe(float64(time.Since(start).Milliseconds()))
}

func toDocument(blk *types.Block) entity.Block {
	txs := make([]string, 0, len(blk.Transactions()))
	for _, tx := range blk.Transactions() {
		txs = append(txs, tx.Hash().Hex())
	}
	doc := entity.Block{
		entity.HeightKey: blk.Number().Int64(),
		"hash":           blk.Hash().Hex(),
		"parentHash":     blk.ParentHash().Hex(),
		"timestamp":      blk.Time(),
		"miner":          blk.Coinbase().Hex(),
		"gasUsed":        blk.GasUsed(),
		"gasLimit":       blk.GasLimit(),
		"tx":             txs,
	}
	if fee := blk.BaseFee(); fee != nil {
		doc["baseFeePerGas"] = fee.String()
	}
	return doc
}

func classifyError(err error) string {
	var netErr net.Error

	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "rpc"
	}
}

type ethereumClient interface {
	BlockByNumber(context.Context, *big.Int) (*types.Block, error)
	BlockNumber(context.Context) (uint64, error)
	Close()
}
