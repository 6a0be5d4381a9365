package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/config"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/storage"
	"tadcatch/pkg/tadpoles"
)

// fakeBrowser records calls and serves canned element content.
type fakeBrowser struct {
	clicks    []string
	innerHTML map[string]string
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeBrowser) Location(ctx context.Context) (string, error)  { return "", nil }
func (f *fakeBrowser) Click(ctx context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}
func (f *fakeBrowser) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (f *fakeBrowser) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeBrowser) OuterHTML(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (f *fakeBrowser) InnerHTML(ctx context.Context, selector string) (string, error) {
	if html, ok := f.innerHTML[selector]; ok {
		return html, nil
	}
	return "", browser.ErrNotFound
}
func (f *fakeBrowser) SendKeys(ctx context.Context, selector, text string) error { return nil }
func (f *fakeBrowser) Eval(ctx context.Context, expr string, out interface{}) error {
	return nil
}
func (f *fakeBrowser) Cookies(ctx context.Context) ([]browser.Cookie, error) { return nil, nil }
func (f *fakeBrowser) SetCookie(ctx context.Context, cookie browser.Cookie) error {
	return nil
}
func (f *fakeBrowser) Close() error { return nil }

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(&config.LoggingConfig{Level: "disabled"})
	require.NoError(t, err)
	return log
}

func newTestEngine(t *testing.T, b browser.Browser, maxAttempts int) (*Engine, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	log := testLogger(t)
	// Zeroed ranges keep tests fast: every sleep resolves immediately.
	sleeper := backoff.New(config.BackoffConfig{}, log)
	cfg := config.DownloadConfig{ChunkSize: 1024, MaxAttempts: maxAttempts}

	return NewEngine(store, b, sleeper, cfg, "test-agent", nil, log), store
}

var mediaTarget = storage.MediaTarget{Child: "maya", Year: "2021", Month: "10", Day: "05", ID: "44556677"}

func TestPersistMediaRoutesByContentType(t *testing.T) {
	// URL suggests jpg, response says png: the response wins.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	engine, store := newTestEngine(t, &fakeBrowser{}, 0)
	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL+"/photo.jpg"))

	data, err := os.ReadFile(store.MediaPath(mediaTarget, "png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.False(t, store.Exists(store.MediaPath(mediaTarget, "jpg")))
}

func TestPersistMediaIdempotent(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, &fakeBrowser{}, 0)
	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL))
	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL))

	assert.Equal(t, int64(1), atomic.LoadInt64(&requests), "second run must not refetch")
}

func TestPersistMediaRetriesUntilSuccess(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpg"))
	}))
	defer server.Close()

	// MaxAttempts 0 retries without bound.
	engine, store := newTestEngine(t, &fakeBrowser{}, 0)
	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL))

	assert.Equal(t, int64(4), atomic.LoadInt64(&requests))
	assert.True(t, store.Exists(store.MediaPath(mediaTarget, "jpg")))
}

func TestPersistMediaRespectsAttemptBound(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, &fakeBrowser{}, 2)
	err := engine.PersistMedia(context.Background(), mediaTarget, server.URL)
	require.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
}

func TestPersistMediaDropsUnrecognizedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>error page</html>"))
	}))
	defer server.Close()

	engine, store := newTestEngine(t, &fakeBrowser{}, 0)
	// Dropped, not failed: the crawl keeps going.
	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL))

	_, found := store.AnyExists(store.MediaCandidates(mediaTarget))
	assert.False(t, found)
}

func TestPersistMediaBodyReadOutlastsFetchTimeout(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			w.Write([]byte("chunk"))
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
	}))
	defer server.Close()

	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	log := testLogger(t)
	sleeper := backoff.New(config.BackoffConfig{}, log)

	// The body takes ~300ms against a 100ms fetch timeout. The timeout only
	// bounds the response headers, so the stream must finish on the first
	// attempt instead of being killed mid-copy and retried forever.
	cfg := config.DownloadConfig{ChunkSize: 1024, MaxAttempts: 2, FetchTimeout: 100 * time.Millisecond}
	engine := NewEngine(store, &fakeBrowser{}, sleeper, cfg, "test-agent", nil, log)

	require.NoError(t, engine.PersistMedia(context.Background(), mediaTarget, server.URL))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))

	data, err := os.ReadFile(store.MediaPath(mediaTarget, "jpg"))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("chunk", 5), string(data))
}

func TestPersistMediaCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, _ := newTestEngine(t, &fakeBrowser{}, 0)
	err := engine.PersistMedia(ctx, mediaTarget, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersistReport(t *testing.T) {
	fb := &fakeBrowser{innerHTML: map[string]string{
		tadpoles.ReportModalBody: `<div class="report">Daily Report</div>`,
	}}

	engine, store := newTestEngine(t, fb, 0)
	marker := tadpoles.ReportMarker{Index: 3, Day: 5}
	target := storage.ReportTarget{Child: "maya", Year: "2021", Month: "10", Day: "05"}

	require.NoError(t, engine.PersistReport(context.Background(), marker, target))

	data, err := os.ReadFile(store.ReportPath(target))
	require.NoError(t, err)
	assert.Equal(t, `<html><div class="report">Daily Report</div></html>`, string(data))

	// Opened the right entry, then closed the modal.
	require.Len(t, fb.clicks, 2)
	assert.Equal(t, tadpoles.EntryXPath(3), fb.clicks[0])
	assert.Equal(t, tadpoles.ReportModalClose, fb.clicks[1])
}

func TestPersistReportIdempotent(t *testing.T) {
	fb := &fakeBrowser{innerHTML: map[string]string{
		tadpoles.ReportModalBody: "<div>report</div>",
	}}

	engine, store := newTestEngine(t, fb, 0)
	marker := tadpoles.ReportMarker{Index: 1, Day: 5}
	target := storage.ReportTarget{Child: "maya", Year: "2021", Month: "10", Day: "05"}

	require.NoError(t, store.WriteFile(store.ReportPath(target), []byte("<html>old</html>")))
	require.NoError(t, engine.PersistReport(context.Background(), marker, target))

	// Existing file short-circuits before any browser interaction.
	assert.Empty(t, fb.clicks)
	data, err := os.ReadFile(store.ReportPath(target))
	require.NoError(t, err)
	assert.Equal(t, "<html>old</html>", string(data))
}
