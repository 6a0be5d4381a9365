// Package session establishes an authenticated portal session in the
// automation browser and carries it over to plain HTTP requests. Cookies are
// reused across runs through an encrypted jar so repeated crawls skip the
// login flow entirely.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tadcatch/pkg/auth"
	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/errors"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/tadpoles"
)

// Session drives login and cookie persistence for one crawl.
type Session struct {
	browser browser.Browser
	jar     *Jar
	sleeper *backoff.Sleeper
	creds   *auth.Credentials
	log     logger.Logger
}

// New creates a session. creds may be nil when a saved jar is expected to
// carry the run; Establish fails with an auth error if login turns out to be
// needed anyway.
func New(b browser.Browser, jar *Jar, sleeper *backoff.Sleeper, creds *auth.Credentials, log logger.Logger) *Session {
	return &Session{
		browser: b,
		jar:     jar,
		sleeper: sleeper,
		creds:   creds,
		log:     log,
	}
}

// Establish gets the browser onto the authenticated home page, reusing saved
// cookies when possible and running the login flow otherwise. On success the
// fresh cookies are written back to the jar.
func (s *Session) Establish(ctx context.Context) error {
	if err := s.browser.Navigate(ctx, tadpoles.RootURL); err != nil {
		return errors.New(errors.ErrorTypeAuth, "failed to reach portal: %v", err)
	}

	if s.tryRestore(ctx) {
		s.log.Info("reusing saved session cookies")
	} else {
		if err := s.login(ctx); err != nil {
			return err
		}
	}

	if err := s.browser.Navigate(ctx, tadpoles.HomeURL); err != nil {
		return errors.New(errors.ErrorTypeAuth, "failed to open home page: %v", err)
	}
	if err := s.sleeper.Pace(ctx); err != nil {
		return err
	}

	location, err := s.browser.Location(ctx)
	if err != nil {
		return errors.New(errors.ErrorTypeAuth, "failed to read location: %v", err)
	}
	if !strings.HasPrefix(location, tadpoles.HomeURL) {
		return errors.New(errors.ErrorTypeAuth, "not authenticated, landed on %s", location)
	}

	if err := s.dumpCookies(ctx); err != nil {
		s.log.WithError(err).Warn("failed to save session cookies")
	}
	return nil
}

// tryRestore loads the jar and installs its cookies into the browser.
// Returns false when there is no usable jar.
func (s *Session) tryRestore(ctx context.Context) bool {
	cookies, err := s.jar.Load()
	if err != nil {
		if err != ErrNoJar {
			s.log.WithError(err).Warn("discarding unreadable cookie jar")
		}
		return false
	}
	if len(cookies) == 0 {
		return false
	}

	installed := 0
	for _, c := range cookies {
		// Cookies for other domains cannot be set from the portal's origin.
		if !strings.Contains(c.Domain, "tadpoles") {
			continue
		}
		if err := s.browser.SetCookie(ctx, c); err != nil {
			s.log.WithError(err).WithField("cookie", c.Name).Debug("failed to restore cookie")
			continue
		}
		installed++
	}
	return installed > 0
}

// login walks the interactive login flow with the stored credentials.
func (s *Session) login(ctx context.Context) error {
	if s.creds == nil {
		return errors.New(errors.ErrorTypeAuth, "no saved session and no credentials available")
	}

	s.log.WithField("email", s.creds.Email).Info("logging in")

	steps := []struct {
		selector string
		action   string
	}{
		{tadpoles.LoginButton, "open login"},
		{tadpoles.LoginTile, "pick login provider"},
		{tadpoles.OtherLoginButton, "choose email login"},
	}
	for _, step := range steps {
		if err := s.browser.Click(ctx, step.selector); err != nil {
			return errors.New(errors.ErrorTypeAuth, "login flow: failed to %s: %v", step.action, err)
		}
		if err := s.sleeper.Pace(ctx); err != nil {
			return err
		}
	}

	if err := s.browser.SendKeys(ctx, tadpoles.EmailInput, s.creds.Email); err != nil {
		return errors.New(errors.ErrorTypeAuth, "login flow: failed to enter email: %v", err)
	}
	if err := s.browser.SendKeys(ctx, tadpoles.PasswordInput, s.creds.Password); err != nil {
		return errors.New(errors.ErrorTypeAuth, "login flow: failed to enter password: %v", err)
	}
	if err := s.browser.Click(ctx, tadpoles.SubmitButton); err != nil {
		return errors.New(errors.ErrorTypeAuth, "login flow: failed to submit: %v", err)
	}

	// The post-submit redirect chain needs the long settle.
	return s.sleeper.Settle(ctx)
}

// dumpCookies writes the browser's current cookies to the jar.
func (s *Session) dumpCookies(ctx context.Context) error {
	cookies, err := s.browser.Cookies(ctx)
	if err != nil {
		return err
	}
	return s.jar.Save(cookies)
}

// RequestCookies returns the browser's cookies in net/http form so the
// download client can authenticate the direct media fetches.
func (s *Session) RequestCookies(ctx context.Context) ([]*http.Cookie, error) {
	cookies, err := s.browser.Cookies(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeAuth, "failed to read cookies: %v", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out, nil
}
