package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/core/usecase"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blocksync-service/internal/pkg/metrics"
)

const (
	driverName = "explorer"
	tipPath    = "/blocks/tip"
	blockPath  = "/block/{height}"
)

// Reader reads the chain tip and blocks from an explorer REST API. It never
// retries; a failed call is reported and the caller tries again next cycle.
type Reader struct {
	log    applog.AppLogger
	client *resty.Client
	base   string
}

var _ port.ChainReader = (*Reader)(nil)

// NewReader validates cfg and builds a Reader.
func NewReader(log applog.AppLogger, cfg Config, v *validator.Validate) (*Reader, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid explorer config", err)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	client := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	if cfg.TimeoutSeconds > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	return &Reader{log: log, client: client, base: base}, nil
}

// BaseURL returns the normalized API root.
func (r *Reader) BaseURL() string { return r.base }

// TipHeight returns the current chain height, or port.UnknownHeight with a
// BlockFetchErr when the explorer cannot be read.
func (r *Reader) TipHeight(ctx context.Context) (int64, error) {
	resp, err := r.get("tip", r.client.R().SetContext(ctx), tipPath)
	if err != nil {
		return port.UnknownHeight, err
	}

	var body struct {
		Height *json.Number `json:"height"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Height == nil {
		if err == nil {
			err = errors.New("height field missing")
		}
		return port.UnknownHeight, r.fail("tip", "decode", apperr.NewBlockFetchErr("malformed tip response", err))
	}

	tip, err := body.Height.Int64()
	if err != nil || tip < 0 {
		if err == nil {
			err = errors.New("negative height " + body.Height.String())
		}
		return port.UnknownHeight, r.fail("tip", "decode", apperr.NewBlockFetchErr("invalid tip height", err))
	}

	r.log.Trace("Fetched tip height", "tip", tip)
	return tip, nil
}

// Block returns the block document at height. A 404 maps to NotFoundErr, any
// other failure to BlockFetchErr; the block is nil in both cases.
func (r *Reader) Block(ctx context.Context, height int64) (entity.Block, error) {
	if height < 0 {
		return nil, apperr.NewInvalidArgErr("height must be non-negative", nil)
	}

	req := r.client.R().
		SetContext(ctx).
		SetPathParam("height", strconv.FormatInt(height, 10))
	resp, err := r.get("block", req, blockPath)
	if err != nil {
		return nil, err
	}

	block, err := usecase.UnmarshalBlockJSON(resp.Body())
	if err != nil {
		return nil, r.fail("block", "decode", apperr.NewBlockFetchErr("malformed block response", err))
	}
	got, ok := block.Height()
	if !ok {
		return nil, r.fail("block", "decode", apperr.NewBlockFetchErr("block has no numeric height", nil))
	}
	if got != height {
		return nil, r.fail("block", "height_mismatch", apperr.NewBlockFetchErr(
			fmt.Sprintf("explorer returned block %d for height %d", got, height), nil))
	}

	r.log.Trace("Fetched block", "height", height)
	return block, nil
}

func (r *Reader) get(call string, req *resty.Request, path string) (*resty.Response, error) {
	imetrics.Reader().RequestsTotal.WithLabelValues(driverName, call).Inc()
	start := time.Now()
	resp, err := req.Get(path)
	imetrics.Reader().FetchLatencyMS.WithLabelValues(driverName, call).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		return nil, r.fail(call, classifyError(err), apperr.NewBlockFetchErr("explorer request failed", err))
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, r.fail(call, "not_found", apperr.NewNotFoundErr("explorer returned 404 for "+resp.Request.URL, nil))
	case !resp.IsSuccess():
		return nil, r.fail(call, "status", apperr.NewBlockFetchErr("explorer returned "+resp.Status(), nil))
	}
	return resp, nil
}

func (r *Reader) fail(call, code string, err error) error {
	imetrics.Reader().ErrorsTotal.WithLabelValues(driverName, call, code).Inc()
	r.log.Debug("Explorer request failed", "call", call, "code", code, "err", err)
	return err
}

func classifyError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "transport"
	}
}
