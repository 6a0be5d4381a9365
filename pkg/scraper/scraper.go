package scraper

import (
	"context"
	"os"
	"os/signal"

	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/config"
	"tadcatch/pkg/errors"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/storage"
	"tadcatch/pkg/tadpoles"
)

// Persister stores resolved timeline items. Satisfied by download.Engine.
type Persister interface {
	PersistMedia(ctx context.Context, target storage.MediaTarget, url string) error
	PersistReport(ctx context.Context, marker tadpoles.ReportMarker, target storage.ReportTarget) error
}

// Scraper runs one full crawl over an already-authenticated browser session.
// Strictly sequential: one month, one child, one item at a time.
type Scraper struct {
	browser   browser.Browser
	sleeper   *backoff.Sleeper
	persister Persister
	cfg       *config.Config
	log       logger.Logger

	// signals delivers interrupts that skip the current item without
	// aborting the crawl. Nil outside Run.
	signals chan os.Signal
}

// New creates a scraper. The persister is constructed by the caller because
// it needs the session cookies that only exist after login.
func New(b browser.Browser, sleeper *backoff.Sleeper, persister Persister, cfg *config.Config, log logger.Logger) *Scraper {
	return &Scraper{
		browser:   b,
		sleeper:   sleeper,
		persister: persister,
		cfg:       cfg,
		log:       log,
	}
}

// appParams mirrors the portal's bootstrap object exposed on the home page.
type appParams struct {
	Children []tadpoles.Child `json:"children"`
}

// Run crawls every month tile for every child. Item-level failures are
// logged and skipped; structural failures abort the crawl.
func (s *Scraper) Run(ctx context.Context) error {
	s.signals = make(chan os.Signal, 1)
	signal.Notify(s.signals, os.Interrupt)
	defer signal.Stop(s.signals)

	if s.cfg.Download.IncludeReports {
		// Reports only appear in the timeline with the "All" filter active.
		if err := s.sleeper.Pace(ctx); err != nil {
			return err
		}
		if err := s.browser.Click(ctx, tadpoles.AllFilterButton); err != nil {
			return errors.New(errors.ErrorTypeStructural, "failed to enable the All filter: %v", err)
		}
	}

	children, err := s.discoverChildren(ctx)
	if err != nil {
		return err
	}
	s.log.WithField("children", len(children)).Info("starting crawl")

	walker := NewWalker(s.browser, s.sleeper, children, s.log)
	return walker.Walk(ctx, s.visitPage)
}

// discoverChildren reads the child list from the portal's appParams object.
func (s *Scraper) discoverChildren(ctx context.Context) ([]tadpoles.Child, error) {
	var params appParams
	if err := s.browser.Eval(ctx, tadpoles.AppParamsExpr, &params); err != nil {
		return nil, errors.New(errors.ErrorTypeStructural, "failed to read app parameters: %v", err)
	}
	if len(params.Children) == 0 {
		return nil, errors.New(errors.ErrorTypeStructural, "app parameters list no children")
	}
	return params.Children, nil
}

// visitPage resolves one page and persists its items in order.
func (s *Scraper) visitPage(ctx context.Context, page tadpoles.Page) error {
	items := tadpoles.Resolve(page.Entries)
	s.log.WithFields(map[string]interface{}{
		"child": page.Child.FirstName(),
		"month": page.Month,
		"year":  page.Year,
		"items": len(items),
	}).Info("resolved timeline page")

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.persistItem(ctx, func(itemCtx context.Context) error {
			switch v := item.(type) {
			case tadpoles.MediaItem:
				target := storage.MediaTarget{
					Child: page.Child.FirstName(),
					Year:  page.Year,
					Month: page.Month,
					Day:   v.DayText(),
					ID:    v.ID,
				}
				return s.persister.PersistMedia(itemCtx, target, v.URL)
			case tadpoles.ReportMarker:
				target := storage.ReportTarget{
					Child: page.Child.FirstName(),
					Year:  page.Year,
					Month: page.Month,
					Day:   v.DayText(),
				}
				return s.persister.PersistReport(itemCtx, v, target)
			default:
				return nil
			}
		})
		if err != nil {
			if errors.IsFatal(err) {
				return err
			}
			// One bad item never sinks the crawl.
			s.log.WithError(err).Error("failed to save item, continuing")
		}
	}
	return nil
}

// persistItem runs fn with an item-scoped context. An interrupt cancels only
// the current item; the crawl moves on to the next one.
func (s *Scraper) persistItem(ctx context.Context, fn func(context.Context) error) error {
	// An interrupt delivered between items targeted whatever was running at
	// the time, not the item about to start. Drop it.
	select {
	case <-s.signals:
		s.log.Debug("discarding interrupt received between items")
	default:
	}

	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-s.signals:
			s.log.Info("interrupted, skipping current item")
			cancel()
		case <-done:
		}
	}()

	err := fn(itemCtx)
	close(done)

	if itemCtx.Err() != nil && ctx.Err() == nil {
		return nil
	}
	return err
}
