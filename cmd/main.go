package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pancudaniel7/blocksync-service/internal/core/usecase"
	"github.com/pancudaniel7/blocksync-service/internal/infra"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

const serverShutdownTimeout = 5 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:          "blocksync",
	Short:        "Publish confirmed blocks from a chain explorer to Kafka",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	bindFlags(rootCmd.Flags())
}

func bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configFile, "config", "", "config file (default ./configs/config.yml)")
	fs.Int("interval", int(usecase.DefaultInterval/time.Second), "seconds between sync iterations")
	_ = viper.BindPFlag("sync.interval_seconds", fs.Lookup("interval"))
}

func run(cmd *cobra.Command, _ []string) error {
	if err := infra.InitConfig(configFile); err != nil {
		return err
	}

	logger := applog.NewAppDefaultLogger()
	defer func() { _ = logger.Close() }()
	infra.InitMetricsRegistry()

	cfg := infra.LoadConfig()
	v := validator.New()
	if err := cfg.Validate(v); err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seen, err := infra.InitSeenStore(ctx, logger, cfg, v)
	if err != nil {
		return startupFailure(ctx, logger, "Failed to open seen-height store", err)
	}

	reader, releaseReader, err := infra.InitChainReader(logger, cfg, v)
	if err != nil {
		logger.Error("Failed to init chain reader", "err", err)
		_ = seen.Close()
		return err
	}
	defer releaseReader()

	publisher, err := infra.InitBlockPublisher(ctx, logger, cfg, v)
	if err != nil {
		_ = seen.Close()
		return startupFailure(ctx, logger, "Failed to init Kafka publisher", err)
	}

	syncer, err := usecase.NewBlockSyncer(logger, reader, seen, publisher, time.Duration(cfg.IntervalSeconds)*time.Second)
	if err != nil {
		logger.Error("Failed to init block syncer", "err", err)
		_ = publisher.FlushAndClose(context.Background())
		_ = seen.Close()
		return err
	}

	var wg sync.WaitGroup
	stopHTTP := infra.StartHTTPServer(logger, &wg, cfg.HTTP, syncer)
	stopPprof := infra.StartPprof(logger, &wg)

	runErr := syncer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := stopHTTP(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "err", err)
	}
	if err := stopPprof(shutdownCtx); err != nil {
		logger.Warn("pprof server shutdown failed", "err", err)
	}
	wg.Wait()

	logger.Info("Shutdown complete")
	return runErr
}

// startupFailure reports a setup error. When ctx was canceled by a shutdown
// signal the failure is a consequence of the stop request and the process
// exits cleanly.
func startupFailure(ctx context.Context, logger applog.AppLogger, msg string, err error) error {
	if ctx.Err() != nil {
		logger.Info("Shutdown requested during startup", "stage", msg, "err", err)
		return nil
	}
	logger.Error(msg, "err", err)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
