package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"tadcatch/pkg/config"
	"tadcatch/pkg/logger"
)

// Chrome implements Browser on top of a chromedp session. A single session is
// shared for the whole run; element lookups carry an implicit wait after
// which ErrNotFound is reported.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         logger.Logger
}

// NewChrome starts a browser session configured from the portal settings.
func NewChrome(cfg config.PortalConfig, log logger.Logger) (*Chrome, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Launch the process eagerly so a missing Chrome binary fails here
	// instead of on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	log.Info("browser session started")

	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     cfg.ElementTimeout,
		log:         log,
	}, nil
}

// queryOpt picks the chromedp query strategy for a selector.
func queryOpt(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// run executes actions against the session with the implicit-wait timeout.
// A deadline hit during an element query is reported as ErrNotFound.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return c.mapRunError(err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// mapRunError translates a query that exhausted the implicit wait into
// ErrNotFound. The debug line records that the element timed out rather than
// being instantly absent, so a crawl that ends earlier than expected on a
// slow page can be told apart from one that genuinely ran out of tiles.
func (c *Chrome) mapRunError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.log.DebugWithFields("element wait timed out, treating as not found", map[string]interface{}{
			"timeout": c.timeout,
		})
		return ErrNotFound
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.log.InfoWithFields("navigating", map[string]interface{}{"url": url})
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, queryOpt(selector)))
}

func (c *Chrome) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Text(selector, &text, queryOpt(selector)))
	return text, err
}

func (c *Chrome) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	err := c.run(ctx, chromedp.AttributeValue(selector, name, &value, &ok, queryOpt(selector)))
	return value, ok, err
}

func (c *Chrome) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML(selector, &html, queryOpt(selector)))
	return html, err
}

func (c *Chrome) InnerHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := c.run(ctx, chromedp.InnerHTML(selector, &html, queryOpt(selector)))
	return html, err
}

func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, queryOpt(selector)))
}

func (c *Chrome) Eval(ctx context.Context, expr string, out interface{}) error {
	return c.run(ctx, chromedp.Evaluate(expr, out))
}

func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range raw {
			cookies = append(cookies, Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Expires:  ck.Expires,
				Secure:   ck.Secure,
				HTTPOnly: ck.HTTPOnly,
			})
		}
		return nil
	}))
	return cookies, err
}

func (c *Chrome) SetCookie(ctx context.Context, cookie Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		param := network.SetCookie(cookie.Name, cookie.Value).
			WithDomain(cookie.Domain).
			WithPath(cookie.Path).
			WithSecure(cookie.Secure).
			WithHTTPOnly(cookie.HTTPOnly)
		if cookie.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(cookie.Expires), 0))
			param = param.WithExpires(&exp)
		}
		return param.Do(ctx)
	}))
}

func (c *Chrome) Close() error {
	c.log.Info("shutting down browser session")
	c.cancel()
	c.allocCancel()
	return nil
}
