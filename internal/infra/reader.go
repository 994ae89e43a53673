package infra

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blocksync-service/internal/adapter/evm"
	"github.com/pancudaniel7/blocksync-service/internal/adapter/explorer"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

// InitChainReader builds the reader selected by cfg.ReaderDriver. The returned
// release func closes any connection the reader holds.
func InitChainReader(log applog.AppLogger, cfg Config, v *validator.Validate) (port.ChainReader, func(), error) {
	switch cfg.ReaderDriver {
	case ReaderEVM:
		r, err := evm.NewReader(log, cfg.EVM, v)
		if err != nil {
			return nil, nil, fmt.Errorf("infra: failed to init evm reader: %w", err)
		}
		log.Info("Chain reader ready", "driver", ReaderEVM, "rpc", cfg.EVM.RPCURL)
		return r, r.Close, nil
	default:
		r, err := explorer.NewReader(log, cfg.Explorer, v)
		if err != nil {
			return nil, nil, fmt.Errorf("infra: failed to init explorer reader: %w", err)
		}
		log.Info("Chain reader ready", "driver", ReaderExplorer, "base_url", r.BaseURL())
		return r, func() {}, nil
	}
}
