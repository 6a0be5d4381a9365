// Package download persists timeline items to the local tree. Media items are
// fetched directly over HTTP with the browser's session cookies; daily
// reports are captured from the portal's report modal since they have no
// direct URL.
package download

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/config"
	"tadcatch/pkg/errors"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/storage"
	"tadcatch/pkg/tadpoles"
)

// Engine downloads media and reports, one item at a time.
type Engine struct {
	client  *resty.Client
	browser browser.Browser
	store   *storage.Manager
	sleeper *backoff.Sleeper
	cfg     config.DownloadConfig
	log     logger.Logger
}

// NewEngine creates a download engine. cookies carries the authenticated
// session over from the browser.
func NewEngine(store *storage.Manager, b browser.Browser, sleeper *backoff.Sleeper, cfg config.DownloadConfig, userAgent string, cookies []*http.Cookie, log logger.Logger) *Engine {
	// A client-level timeout would also cover the raw body read and kill a
	// large media download mid-stream. Only connection setup and response
	// headers are time-bounded; the body copy runs until done or the request
	// context is cancelled.
	client := resty.New().
		SetTransport(&http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.FetchTimeout,
		}).
		SetCookies(cookies)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	return &Engine{
		client:  client,
		browser: b,
		store:   store,
		sleeper: sleeper,
		cfg:     cfg,
		log:     log,
	}
}

// PersistMedia downloads one media item. If any candidate path already
// exists the item was downloaded by an earlier run and nothing happens.
// Transient fetch failures retry until the configured attempt bound, or
// forever when no bound is set. An unrecognized content type drops the item
// without error; the crawl moves on.
func (e *Engine) PersistMedia(ctx context.Context, target storage.MediaTarget, url string) error {
	candidates := e.store.MediaCandidates(target)
	if path, ok := e.store.AnyExists(candidates); ok {
		e.log.WithField("path", path).Debug("media already downloaded")
		return nil
	}

	if err := e.sleeper.Pace(ctx); err != nil {
		return err
	}

	attempt := 0
	for {
		attempt++
		err := e.fetchMedia(ctx, target, url)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.log.WithError(err).WithFields(map[string]interface{}{
			"url":     url,
			"attempt": attempt,
		}).Warn("media fetch failed, will retry")

		if e.cfg.MaxAttempts > 0 && attempt >= e.cfg.MaxAttempts {
			return errors.New(errors.ErrorTypeTransientFetch, "media fetch failed after %d attempts: %v", attempt, err)
		}
		if err := e.sleeper.Failure(ctx); err != nil {
			return err
		}
	}
}

// fetchMedia performs one fetch attempt. A nil error means the item was
// either written or deliberately dropped; any error is a retry signal.
func (e *Engine) fetchMedia(ctx context.Context, target storage.MediaTarget, url string) error {
	resp, err := e.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		io.Copy(io.Discard, body)
		return errors.New(errors.ErrorTypeTransientFetch, "unexpected status %d", resp.StatusCode())
	}

	contentType, _, _ := strings.Cut(resp.Header().Get("Content-Type"), ";")
	ext, ok := storage.ExtensionForContentType(strings.TrimSpace(contentType))
	if !ok {
		e.log.WithFields(map[string]interface{}{
			"url":          url,
			"content_type": contentType,
		}).Warn("dropping media with unrecognized content type")
		return nil
	}

	path := e.store.MediaPath(target, ext)
	w := e.store.NewLazyWriter(path)

	buf := make([]byte, e.cfg.ChunkSize)
	if _, err := io.CopyBuffer(w, body, buf); err != nil {
		w.Discard()
		return errors.New(errors.ErrorTypeTransientFetch, "body read failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		return errors.New(errors.ErrorTypeDownload, "failed to store media: %v", err)
	}

	e.log.WithField("path", path).Info("downloaded media")
	return nil
}

// PersistReport captures one daily report through the portal's modal and
// writes it as a standalone HTML file. Idempotent like PersistMedia: an
// existing file short-circuits before the browser is touched.
func (e *Engine) PersistReport(ctx context.Context, marker tadpoles.ReportMarker, target storage.ReportTarget) error {
	path := e.store.ReportPath(target)
	if e.store.Exists(path) {
		e.log.WithField("path", path).Debug("report already downloaded")
		return nil
	}

	if err := e.browser.Click(ctx, tadpoles.EntryXPath(marker.Index)); err != nil {
		return errors.New(errors.ErrorTypeDownload, "failed to open report %d: %v", marker.Index, err)
	}
	if err := e.sleeper.Pace(ctx); err != nil {
		return err
	}

	body, err := e.browser.InnerHTML(ctx, tadpoles.ReportModalBody)
	if err != nil {
		return errors.New(errors.ErrorTypeDownload, "failed to capture report %d: %v", marker.Index, err)
	}

	if err := e.browser.Click(ctx, tadpoles.ReportModalClose); err != nil {
		return errors.New(errors.ErrorTypeDownload, "failed to close report %d: %v", marker.Index, err)
	}
	if err := e.sleeper.Pace(ctx); err != nil {
		return err
	}

	html := "<html>" + body + "</html>"
	if err := e.store.WriteFile(path, []byte(html)); err != nil {
		return errors.New(errors.ErrorTypeDownload, "failed to store report: %v", err)
	}

	e.log.WithField("path", path).Info("downloaded report")
	return nil
}
