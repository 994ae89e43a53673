package evm

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

type fakeEthereumClient struct {
	blockByNumberFn func(context.Context, *big.Int) (*types.Block, error)
	blockNumberFn   func(context.Context) (uint64, error)
	closed          atomic.Int32
}

func (f *fakeEthereumClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	if f.blockByNumberFn != nil {
		return f.blockByNumberFn(ctx, number)
	}
	return nil, errors.New("blockByNumber not implemented")
}

func (f *fakeEthereumClient) BlockNumber(ctx context.Context) (uint64, error) {
	if f.blockNumberFn != nil {
		return f.blockNumberFn(ctx)
	}
	return 0, errors.New("blockNumber not implemented")
}

func (f *fakeEthereumClient) Close() { f.closed.Add(1) }

func newTestReader(t *testing.T, dial func(context.Context) (ethereumClient, error)) *Reader {
	t.Helper()
	r, err := NewReader(noopLogger{}, Config{RPCURL: "http://127.0.0.1:8545"}, validator.New())
	require.NoError(t, err)
	r.newClient = dial
	return r
}

func TestNewReader_InvalidConfig(t *testing.T) {
	_, err := NewReader(noopLogger{}, Config{}, validator.New())
	var ie *apperr.InvalidArgErr
	require.ErrorAs(t, err, &ie)
}

func TestReader_TipHeight_DialsLazilyAndReuses(t *testing.T) {
	var dials atomic.Int32
	client := &fakeEthereumClient{blockNumberFn: func(context.Context) (uint64, error) { return 106, nil }}
	r := newTestReader(t, func(context.Context) (ethereumClient, error) {
		dials.Add(1)
		return client, nil
	})
	require.Zero(t, dials.Load())

	for i := 0; i < 3; i++ {
		tip, err := r.TipHeight(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(106), tip)
	}
	require.Equal(t, int32(1), dials.Load())

	r.Close()
	require.Equal(t, int32(1), client.closed.Load())
}

func TestReader_TipHeight_Failures(t *testing.T) {
	t.Run("dial error", func(t *testing.T) {
		r := newTestReader(t, func(context.Context) (ethereumClient, error) { return nil, errors.New("refused") })
		tip, err := r.TipHeight(context.Background())
		require.Equal(t, port.UnknownHeight, tip)
		var fe *apperr.BlockFetchErr
		require.ErrorAs(t, err, &fe)
	})

	t.Run("rpc error drops client", func(t *testing.T) {
		var dials atomic.Int32
		failing := &fakeEthereumClient{blockNumberFn: func(context.Context) (uint64, error) { return 0, context.DeadlineExceeded }}
		healthy := &fakeEthereumClient{blockNumberFn: func(context.Context) (uint64, error) { return 7, nil }}
		r := newTestReader(t, func(context.Context) (ethereumClient, error) {
			if dials.Add(1) == 1 {
				return failing, nil
			}
			return healthy, nil
		})

		tip, err := r.TipHeight(context.Background())
		require.Equal(t, port.UnknownHeight, tip)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, int32(1), failing.closed.Load())

		tip, err = r.TipHeight(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(7), tip)
		require.Equal(t, int32(2), dials.Load())
	})
}

func TestReader_Block(t *testing.T) {
	header := &types.Header{
		Number:     big.NewInt(100),
		ParentHash: common.HexToHash("0x01"),
		Time:       1714566645,
		GasLimit:   30_000_000,
		GasUsed:    21_000,
		Coinbase:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		BaseFee:    big.NewInt(7),
		Difficulty: big.NewInt(0),
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
	blk := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: []*types.Transaction{tx}})

	var asked *big.Int
	client := &fakeEthereumClient{blockByNumberFn: func(_ context.Context, n *big.Int) (*types.Block, error) {
		asked = n
		return blk, nil
	}}
	r := newTestReader(t, func(context.Context) (ethereumClient, error) { return client, nil })

	doc, err := r.Block(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, int64(100), asked.Int64())

	h, ok := doc.Height()
	require.True(t, ok)
	require.Equal(t, int64(100), h)
	require.Equal(t, blk.Hash().Hex(), doc["hash"])
	require.Equal(t, header.ParentHash.Hex(), doc["parentHash"])
	require.Equal(t, uint64(1714566645), doc["timestamp"])
	require.Equal(t, "7", doc["baseFeePerGas"])
	require.Equal(t, []string{tx.Hash().Hex()}, doc["tx"])
}

func TestReader_Block_Failures(t *testing.T) {
	ctx := context.Background()

	r := newTestReader(t, func(context.Context) (ethereumClient, error) {
		return &fakeEthereumClient{blockByNumberFn: func(context.Context, *big.Int) (*types.Block, error) {
			return nil, errors.New("not found")
		}}, nil
	})
	doc, err := r.Block(ctx, 5)
	require.Nil(t, doc)
	var fe *apperr.BlockFetchErr
	require.ErrorAs(t, err, &fe)

	r = newTestReader(t, func(context.Context) (ethereumClient, error) {
		return &fakeEthereumClient{blockByNumberFn: func(context.Context, *big.Int) (*types.Block, error) { return nil, nil }}, nil
	})
	doc, err = r.Block(ctx, 5)
	require.Nil(t, doc)
	require.ErrorAs(t, err, &fe)

	other := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(4), Difficulty: big.NewInt(0)})
	r = newTestReader(t, func(context.Context) (ethereumClient, error) {
		return &fakeEthereumClient{blockByNumberFn: func(context.Context, *big.Int) (*types.Block, error) { return other, nil }}, nil
	})
	doc, err = r.Block(ctx, 5)
	require.Nil(t, doc, "a block for another height is rejected")
	require.ErrorAs(t, err, &fe)

	_, err = r.Block(ctx, -1)
	var ie *apperr.InvalidArgErr
	require.ErrorAs(t, err, &ie)
}

func TestClassifyError(t *testing.T) {
	require.Equal(t, "none", classifyError(nil))
	require.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	require.Equal(t, "rpc", classifyError(errors.New("execution reverted")))
}
