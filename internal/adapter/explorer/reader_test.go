package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

type levelLogger struct {
	mu     sync.Mutex
	levels []string
}

func (l *levelLogger) add(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *levelLogger) Info(string, ...any)  { l.add("INFO") }
func (l *levelLogger) Warn(string, ...any)  { l.add("WARN") }
func (l *levelLogger) Error(string, ...any) { l.add("ERROR") }
func (l *levelLogger) Debug(string, ...any) { l.add("DEBUG") }
func (l *levelLogger) Trace(string, ...any) {}
func (l *levelLogger) Fatal(string, ...any) { l.add("FATAL") }

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func newTestReader(t *testing.T, h http.Handler) (*Reader, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	r, err := NewReader(noopLogger{}, Config{BaseURL: srv.URL + "/"}, validator.New())
	require.NoError(t, err)
	return r, srv
}

func TestNewReader_InvalidConfig(t *testing.T) {
	v := validator.New()
	cases := []Config{
		{},
		{BaseURL: "not a url"},
		{BaseURL: "http://localhost:3000", TimeoutSeconds: -1},
	}
	for _, cfg := range cases {
		_, err := NewReader(noopLogger{}, cfg, v)
		var ie *apperr.InvalidArgErr
		require.ErrorAs(t, err, &ie, "config %+v", cfg)
	}
}

func TestNewReader_StripsTrailingSlash(t *testing.T) {
	r, err := NewReader(noopLogger{}, Config{BaseURL: "https://explorer.example/api/"}, validator.New())
	require.NoError(t, err)
	require.Equal(t, "https://explorer.example/api", r.BaseURL())
}

func TestReader_TipHeight(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    int64
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"height":106}`, want: 106},
		{name: "extra fields", status: http.StatusOK, body: `{"height":840006,"hash":"000abc"}`, want: 840006},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, want: port.UnknownHeight, wantErr: true},
		{name: "malformed", status: http.StatusOK, body: `{"height":`, want: port.UnknownHeight, wantErr: true},
		{name: "missing height", status: http.StatusOK, body: `{}`, want: port.UnknownHeight, wantErr: true},
		{name: "negative", status: http.StatusOK, body: `{"height":-3}`, want: port.UnknownHeight, wantErr: true},
		{name: "fractional", status: http.StatusOK, body: `{"height":1.5}`, want: port.UnknownHeight, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				require.Equal(t, "/blocks/tip", req.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			got, err := r.TipHeight(context.Background())
			require.Equal(t, tc.want, got)
			if tc.wantErr {
				var fe *apperr.BlockFetchErr
				require.ErrorAs(t, err, &fe)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReader_TipHeight_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r, err := NewReader(noopLogger{}, Config{BaseURL: url, TimeoutSeconds: 1}, validator.New())
	require.NoError(t, err)
	got, err := r.TipHeight(context.Background())
	require.Equal(t, port.UnknownHeight, got)
	require.Error(t, err)
}

func TestReader_Block(t *testing.T) {
	var hits atomic.Int32
	r, _ := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		switch req.URL.Path {
		case "/block/100":
			_, _ = w.Write([]byte(`{"height":100,"hash":"00000000abc","tx":["a","b"],"bits":18446744073709551615}`))
		case "/block/101":
			_, _ = w.Write([]byte(`{"hash":"no-height"}`))
		case "/block/102":
			_, _ = w.Write([]byte(`null`))
		case "/block/103":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, req)
		}
	}))
	ctx := context.Background()

	b, err := r.Block(ctx, 100)
	require.NoError(t, err)
	h, ok := b.Height()
	require.True(t, ok)
	require.Equal(t, int64(100), h)
	require.Equal(t, json.Number("18446744073709551615"), b["bits"])

	var fe *apperr.BlockFetchErr
	for _, height := range []int64{101, 102, 103, 104} {
		b, err = r.Block(ctx, height)
		require.Nil(t, b)
		require.ErrorAs(t, err, &fe, "height %d", height)
	}

	b, err = r.Block(ctx, 999)
	require.Nil(t, b)
	var nf *apperr.NotFoundErr
	require.ErrorAs(t, err, &nf)

	before := hits.Load()
	_, err = r.Block(ctx, -1)
	var ie *apperr.InvalidArgErr
	require.ErrorAs(t, err, &ie)
	require.Equal(t, before, hits.Load())
}

func TestReader_NoRetry(t *testing.T) {
	var hits atomic.Int32
	r, _ := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := r.TipHeight(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(1), hits.Load())
}

func TestReader_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"height":1}`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	r, err := NewReader(noopLogger{}, Config{BaseURL: srv.URL}, validator.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got, err := r.TipHeight(ctx)
	require.Equal(t, port.UnknownHeight, got)
	var fe *apperr.BlockFetchErr
	require.ErrorAs(t, err, &fe)
}

func TestReader_BlockHeightMismatch(t *testing.T) {
	r, _ := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"height":99}`))
	}))

	b, err := r.Block(context.Background(), 100)
	require.Nil(t, b)
	var fe *apperr.BlockFetchErr
	require.ErrorAs(t, err, &fe)
	require.Contains(t, err.Error(), "block 99 for height 100")
}

func TestReader_FailuresLeaveWarningsToCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	logger := &levelLogger{}
	r, err := NewReader(logger, Config{BaseURL: srv.URL}, validator.New())
	require.NoError(t, err)

	_, err = r.TipHeight(context.Background())
	require.Error(t, err)
	_, err = r.Block(context.Background(), 1)
	require.Error(t, err)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.NotContains(t, logger.levels, "WARN")
	require.NotContains(t, logger.levels, "ERROR")
}
