package usecase

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blocksync-service/internal/pkg/metrics"
)

const (
	// ConfirmationDepth is how far below the tip a block must be before it is
	// published.
	ConfirmationDepth int64 = 6

	DefaultInterval        = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// State is the lifecycle of a BlockSyncer.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Outcome tells how one SyncOnce iteration ended.
type Outcome string

const (
	OutcomeTipUnavailable   Outcome = "tip_unavailable"
	OutcomeChainTooShort    Outcome = "chain_too_short"
	OutcomeAlreadySent      Outcome = "already_sent"
	OutcomeStoreFailed      Outcome = "store_failed"
	OutcomeBlockUnavailable Outcome = "block_unavailable"
	OutcomePublishFailed    Outcome = "publish_failed"
	OutcomeMarkFailed       Outcome = "mark_failed"
	OutcomePublished        Outcome = "published"
	OutcomePanicked         Outcome = "panicked"
)

// BlockSyncer publishes the latest confirmed block once per height.
//
// It owns the store and publisher it is given: both are released exactly once
// when Run returns. The loop body runs on a single goroutine; State and Stop
// are safe to call from others.
type BlockSyncer struct {
	log             applog.AppLogger
	reader          port.ChainReader
	store           port.SeenStore
	publisher       port.Publisher
	interval        time.Duration
	shutdownTimeout time.Duration

	state     atomic.Int32
	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ port.Syncer = (*BlockSyncer)(nil)

// NewBlockSyncer validates its collaborators and returns an idle syncer.
func NewBlockSyncer(log applog.AppLogger, reader port.ChainReader, store port.SeenStore, publisher port.Publisher, interval time.Duration) (*BlockSyncer, error) {
	if log == nil || reader == nil || store == nil || publisher == nil {
		return nil, apperr.NewInvalidArgErr("syncer requires logger, reader, store and publisher", nil)
	}
	if interval <= 0 {
		return nil, apperr.NewInvalidArgErr("sync interval must be positive", nil)
	}
	return &BlockSyncer{
		log:             log,
		reader:          reader,
		store:           store,
		publisher:       publisher,
		interval:        interval,
		shutdownTimeout: defaultShutdownTimeout,
	}, nil
}

// State reports the current lifecycle state.
func (s *BlockSyncer) State() string {
	return s.loadState().String()
}

func (s *BlockSyncer) loadState() State {
	return State(s.state.Load())
}

func (s *BlockSyncer) setState(st State) {
	s.state.Store(int32(st))
	imetrics.Syncer().State.Set(float64(st))
}

// Run executes the loop until ctx is canceled or Stop is called, then flushes
// the publisher and closes the store. An iteration already in flight when the
// stop arrives runs to completion; its network calls do not observe ctx.
func (s *BlockSyncer) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return apperr.NewBlockSyncErr("syncer already started", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.setState(StateRunning)
	s.log.Info("Starting block producer", "interval", s.interval, "confirmations", ConfirmationDepth)
	defer s.shutdown()

	work := context.WithoutCancel(runCtx)
	for {
		if runCtx.Err() != nil {
			s.beginStopping()
			return nil
		}
		s.SyncOnce(work)
		if !s.sleep(runCtx) {
			return nil
		}
	}
}

// Stop requests a graceful shutdown. It only signals the loop; repeated calls
// are no-ops.
func (s *BlockSyncer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *BlockSyncer) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.beginStopping()
		return false
	case <-t.C:
		return true
	}
}

func (s *BlockSyncer) beginStopping() {
	if s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		imetrics.Syncer().State.Set(float64(StateStopping))
		s.log.Info("Shutdown signal received. Stopping gracefully...")
	}
}

func (s *BlockSyncer) shutdown() {
	s.closeOnce.Do(func() {
		s.beginStopping()
		s.log.Info("Shutting down producer and closing store.")

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.publisher.FlushAndClose(ctx); err != nil {
			s.log.Error("Failed to flush publisher", "err", err)
			imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentKafka, "flush").Inc()
		}
		if err := s.store.Close(); err != nil {
			s.log.Error("Failed to close seen-height store", "err", err)
			imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentStore, "close").Inc()
		}
		s.setState(StateStopped)
		s.log.Info("Block producer stopped")
	})
}

// SyncOnce runs one iteration: read the tip, derive the confirmed height and
// publish that block unless it was already sent. It never panics.
func (s *BlockSyncer) SyncOnce(ctx context.Context) (outcome Outcome) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Error during processing", "panic", r, "stack", string(debug.Stack()))
			imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentSyncer, "panic").Inc()
			outcome = OutcomePanicked
		}
		imetrics.Syncer().IterationsTotal.WithLabelValues(string(outcome)).Inc()
	}()

	tip, err := s.reader.TipHeight(ctx)
	if err != nil || tip < 0 {
		s.log.Warn("Tip height unavailable; retrying next cycle", "tip", tip, "err", err)
		imetrics.App().WarningsTotal.WithLabelValues(imetrics.ComponentSyncer, "tip").Inc()
		return OutcomeTipUnavailable
	}
	imetrics.Syncer().TipHeight.Set(float64(tip))

	confirmed := tip - ConfirmationDepth
	if confirmed < 0 {
		s.log.Warn("Chain too short to publish any blocks.", "tip", tip)
		return OutcomeChainTooShort
	}
	imetrics.Syncer().ConfirmedHeight.Set(float64(confirmed))

	seen, err := s.store.Has(ctx, confirmed)
	if err != nil {
		s.log.Error("Failed to check seen-height store", "height", confirmed, "err", err)
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentStore, "has").Inc()
		return OutcomeStoreFailed
	}
	if seen {
		s.log.Info("Block already sent.", "height", confirmed)
		return OutcomeAlreadySent
	}

	block, err := s.reader.Block(ctx, confirmed)
	if err != nil || block == nil {
		s.log.Warn("No block data returned", "height", confirmed, "err", err)
		imetrics.App().WarningsTotal.WithLabelValues(imetrics.ComponentSyncer, "block").Inc()
		return OutcomeBlockUnavailable
	}

	ack, err := s.publisher.Publish(ctx, block)
	if err != nil {
		s.log.Error("Failed to send block", "height", confirmed, "err", err)
		return OutcomePublishFailed
	}

	if err := s.store.Mark(ctx, confirmed); err != nil {
		s.log.Error("Block sent but not marked as seen; it may be sent again after a restart", "height", confirmed, "err", err)
		imetrics.App().ErrorsTotal.WithLabelValues(imetrics.ComponentStore, "mark").Inc()
		return OutcomeMarkFailed
	}

	imetrics.Syncer().PublishedBlocks.Inc()
	imetrics.Syncer().LastPublishedHeight.Set(float64(confirmed))
	imetrics.Pipeline().EndToEndLatencyMS.Observe(float64(time.Since(started).Milliseconds()))
	s.log.Info("Block sent", "height", confirmed, "id", ack.EnvelopeID, "topic", ack.Topic, "partition", ack.Partition, "offset", ack.Offset)
	return OutcomePublished
}
