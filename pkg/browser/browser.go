// Package browser defines the narrow automation surface the crawler consumes.
// The core never talks to a browser engine directly; it addresses elements by
// selector through this interface, which keeps the walker and download engine
// testable against scripted fakes.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a selector matches no element within the
// implicit wait. For the next-month tile this is the crawl's normal
// termination signal; for structural elements it is fatal.
var ErrNotFound = errors.New("element not found")

// Cookie is one browser cookie, portable between the automation session and
// the HTTP client.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
}

// Browser is the automation collaborator. Selectors are XPath expressions
// when they start with "/" or "(", CSS selectors otherwise.
type Browser interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Click locates an element and clicks it.
	Click(ctx context.Context, selector string) error
	// Text returns the rendered text of the first matching element.
	Text(ctx context.Context, selector string) (string, error)
	// Attr returns the value of the named attribute on the first matching
	// element and whether the attribute is present.
	Attr(ctx context.Context, selector, name string) (string, bool, error)
	// OuterHTML returns the serialized markup of the first matching element.
	OuterHTML(ctx context.Context, selector string) (string, error)
	// InnerHTML returns the inner markup of the first matching element.
	InnerHTML(ctx context.Context, selector string) (string, error)
	// SendKeys types text into the first matching element.
	SendKeys(ctx context.Context, selector, text string) error
	// Eval evaluates a JavaScript expression and unmarshals the result.
	Eval(ctx context.Context, expr string, out interface{}) error
	// Cookies returns the session's current cookie set.
	Cookies(ctx context.Context) ([]Cookie, error)
	// SetCookie adds a cookie to the session.
	SetCookie(ctx context.Context, cookie Cookie) error
	// Close shuts the session down.
	Close() error
}
