package util

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// FakeExplorer serves /blocks/tip and /block/{height} for a chain whose tip
// can be moved while the service runs.
type FakeExplorer struct {
	*httptest.Server
	tip      atomic.Int64
	mu       sync.Mutex
	requests map[int64]int
}

// NewFakeExplorer starts an explorer reporting tip.
func NewFakeExplorer(tip int64) *FakeExplorer {
	fe := &FakeExplorer{requests: map[int64]int{}}
	fe.tip.Store(tip)
	fe.Server = httptest.NewServer(http.HandlerFunc(fe.serve))
	return fe
}

// SetTip moves the reported chain tip.
func (fe *FakeExplorer) SetTip(tip int64) { fe.tip.Store(tip) }

// BlockRequests returns how many times height was fetched.
func (fe *FakeExplorer) BlockRequests(height int64) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.requests[height]
}

func (fe *FakeExplorer) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/blocks/tip":
		_, _ = fmt.Fprintf(w, `{"height":%d}`, fe.tip.Load())
	case strings.HasPrefix(r.URL.Path, "/block/"):
		height, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/block/"), 10, 64)
		if err != nil || height < 0 || height > fe.tip.Load() {
			http.NotFound(w, r)
			return
		}
		fe.mu.Lock()
		fe.requests[height]++
		fe.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"height":%d,"hash":"%064x","tx":["cb-%d"]}`, height, height, height)
	default:
		http.NotFound(w, r)
	}
}
