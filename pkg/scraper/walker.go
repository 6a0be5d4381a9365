// Package scraper drives the crawl: it pages through the portal's month
// tiles, rotates through the account's children, and hands every resolved
// timeline item to the download engine.
package scraper

import (
	"context"
	stderrors "errors"
	"strings"

	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/errors"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/tadpoles"
)

// Walker pages through the month tiles on the home page and yields one
// timeline Page per (month, child) pair. Running out of month tiles is the
// crawl's normal termination; a missing timeline container or child tab is a
// structural failure because it means the portal markup changed.
type Walker struct {
	browser  browser.Browser
	sleeper  *backoff.Sleeper
	children []tadpoles.Child
	childIdx int
	log      logger.Logger
}

// NewWalker creates a walker over the given children. The child list must be
// non-empty.
func NewWalker(b browser.Browser, sleeper *backoff.Sleeper, children []tadpoles.Child, log logger.Logger) *Walker {
	return &Walker{
		browser:  b,
		sleeper:  sleeper,
		children: children,
		log:      log,
	}
}

// Walk visits every page in order and stops cleanly when the month tiles run
// out. A non-nil error from visit aborts the walk.
func (w *Walker) Walk(ctx context.Context, visit func(context.Context, tadpoles.Page) error) error {
	for monthIndex := 1; ; monthIndex++ {
		if err := w.ensureHome(ctx); err != nil {
			return err
		}

		monthSel, yearSel := tadpoles.MonthTileXPath(monthIndex)
		monthText, err := w.browser.Text(ctx, monthSel)
		if err != nil {
			if stderrors.Is(err, browser.ErrNotFound) {
				w.log.WithField("months", monthIndex-1).Info("no more month tiles, crawl complete")
				return nil
			}
			return errors.New(errors.ErrorTypeStructural, "failed to read month tile %d: %v", monthIndex, err)
		}
		yearText, err := w.browser.Text(ctx, yearSel)
		if err != nil {
			if stderrors.Is(err, browser.ErrNotFound) {
				w.log.WithField("months", monthIndex-1).Info("no more year tiles, crawl complete")
				return nil
			}
			return errors.New(errors.ErrorTypeStructural, "failed to read year tile %d: %v", monthIndex, err)
		}

		month, ok := tadpoles.MonthNumber(strings.ToLower(strings.TrimSpace(monthText)))
		if !ok {
			return errors.New(errors.ErrorTypeStructural, "unrecognized month tile text: %q", monthText)
		}
		year := strings.TrimSpace(yearText)

		w.log.WithFields(map[string]interface{}{
			"month": month,
			"year":  year,
		}).Info("visiting month")

		if err := w.browser.Click(ctx, monthSel); err != nil {
			return errors.New(errors.ErrorTypeStructural, "failed to open month tile %d: %v", monthIndex, err)
		}
		// The timeline renders lazily after navigation.
		if err := w.sleeper.Settle(ctx); err != nil {
			return err
		}

		for range w.children {
			page, err := w.capturePage(ctx, month, year)
			if err != nil {
				return err
			}
			if err := visit(ctx, page); err != nil {
				return err
			}
			w.childIdx = (w.childIdx + 1) % len(w.children)
		}
	}
}

// ensureHome navigates back to the home page if the browser drifted off it.
func (w *Walker) ensureHome(ctx context.Context) error {
	location, err := w.browser.Location(ctx)
	if err != nil {
		return errors.New(errors.ErrorTypeStructural, "failed to read location: %v", err)
	}
	if location == tadpoles.HomeURL {
		return nil
	}
	if err := w.browser.Navigate(ctx, tadpoles.HomeURL); err != nil {
		return errors.New(errors.ErrorTypeStructural, "failed to navigate home: %v", err)
	}
	return nil
}

// capturePage switches to the current child's tab when the account has more
// than one child, then snapshots and parses the timeline.
func (w *Walker) capturePage(ctx context.Context, month, year string) (tadpoles.Page, error) {
	child := w.children[w.childIdx]

	if len(w.children) > 1 {
		w.log.WithField("child", child.FirstName()).Info("switching child tab")
		if err := w.browser.Click(ctx, tadpoles.ChildTabXPath(w.childIdx)); err != nil {
			return tadpoles.Page{}, errors.New(errors.ErrorTypeStructural, "failed to open tab for %s: %v", child.FirstName(), err)
		}
		if err := w.sleeper.Pace(ctx); err != nil {
			return tadpoles.Page{}, err
		}
	}

	html, err := w.browser.OuterHTML(ctx, tadpoles.TimelineContainer)
	if err != nil {
		return tadpoles.Page{}, errors.New(errors.ErrorTypeStructural, "failed to capture timeline: %v", err)
	}
	entries, err := tadpoles.ParseTimeline(html)
	if err != nil {
		return tadpoles.Page{}, err
	}

	return tadpoles.Page{
		Month:   month,
		Year:    year,
		Child:   child,
		Entries: entries,
	}, nil
}
