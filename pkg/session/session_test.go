package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tadcatch/pkg/auth"
	"tadcatch/pkg/backoff"
	"tadcatch/pkg/browser"
	"tadcatch/pkg/config"
	"tadcatch/pkg/logger"
	"tadcatch/pkg/tadpoles"
)

// loginBrowser simulates the portal: it stays on the root URL until the
// login form is submitted, after which home navigation sticks.
type loginBrowser struct {
	location   string
	loggedIn   bool
	clicks     []string
	keys       map[string]string
	setCookies []browser.Cookie
	cookies    []browser.Cookie
}

func (b *loginBrowser) Navigate(ctx context.Context, url string) error {
	if url == tadpoles.HomeURL && !b.loggedIn {
		b.location = tadpoles.RootURL
		return nil
	}
	b.location = url
	return nil
}
func (b *loginBrowser) Location(ctx context.Context) (string, error) { return b.location, nil }
func (b *loginBrowser) Click(ctx context.Context, selector string) error {
	b.clicks = append(b.clicks, selector)
	if selector == tadpoles.SubmitButton {
		b.loggedIn = true
	}
	return nil
}
func (b *loginBrowser) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (b *loginBrowser) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	return "", false, nil
}
func (b *loginBrowser) OuterHTML(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (b *loginBrowser) InnerHTML(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (b *loginBrowser) SendKeys(ctx context.Context, selector, text string) error {
	if b.keys == nil {
		b.keys = make(map[string]string)
	}
	b.keys[selector] = text
	return nil
}
func (b *loginBrowser) Eval(ctx context.Context, expr string, out interface{}) error { return nil }
func (b *loginBrowser) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return b.cookies, nil
}
func (b *loginBrowser) SetCookie(ctx context.Context, cookie browser.Cookie) error {
	b.setCookies = append(b.setCookies, cookie)
	// Restored session cookies count as a valid login.
	b.loggedIn = true
	return nil
}
func (b *loginBrowser) Close() error { return nil }

func newTestSession(t *testing.T, b browser.Browser, creds *auth.Credentials) (*Session, *Jar) {
	t.Helper()
	t.Setenv("TADCATCH_PASSPHRASE", "test-passphrase")

	jar, err := NewJar(filepath.Join(t.TempDir(), "cookies.enc"))
	require.NoError(t, err)

	log, err := logger.New(&config.LoggingConfig{Level: "disabled"})
	require.NoError(t, err)
	sleeper := backoff.New(config.BackoffConfig{}, log)

	return New(b, jar, sleeper, creds, log), jar
}

func TestEstablishLogsInAndSavesCookies(t *testing.T) {
	b := &loginBrowser{
		cookies: []browser.Cookie{{Name: "session", Value: "abc", Domain: "www.tadpoles.com"}},
	}
	creds := &auth.Credentials{Email: "parent@example.com", Password: "hunter2"}
	sess, jar := newTestSession(t, b, creds)

	require.NoError(t, sess.Establish(context.Background()))

	// The full login flow ran in order.
	assert.Equal(t, []string{
		tadpoles.LoginButton,
		tadpoles.LoginTile,
		tadpoles.OtherLoginButton,
		tadpoles.SubmitButton,
	}, b.clicks)
	assert.Equal(t, "parent@example.com", b.keys[tadpoles.EmailInput])
	assert.Equal(t, "hunter2", b.keys[tadpoles.PasswordInput])

	// Fresh cookies landed in the jar for the next run.
	saved, err := jar.Load()
	require.NoError(t, err)
	assert.Equal(t, b.cookies, saved)
}

func TestEstablishReusesSavedCookies(t *testing.T) {
	b := &loginBrowser{
		cookies: []browser.Cookie{{Name: "session", Value: "abc", Domain: "www.tadpoles.com"}},
	}
	sess, jar := newTestSession(t, b, nil)
	require.NoError(t, jar.Save([]browser.Cookie{
		{Name: "session", Value: "abc", Domain: "www.tadpoles.com"},
		{Name: "other", Value: "x", Domain: "cdn.example.com"},
	}))

	require.NoError(t, sess.Establish(context.Background()))

	// No login flow, and only the portal-domain cookie was restored.
	assert.Empty(t, b.clicks)
	require.Len(t, b.setCookies, 1)
	assert.Equal(t, "session", b.setCookies[0].Name)
}

func TestEstablishWithoutCredentialsOrJarFails(t *testing.T) {
	sess, _ := newTestSession(t, &loginBrowser{}, nil)
	err := sess.Establish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestRequestCookies(t *testing.T) {
	b := &loginBrowser{
		cookies: []browser.Cookie{
			{Name: "session", Value: "abc", Domain: "www.tadpoles.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1735689600},
		},
	}
	sess, _ := newTestSession(t, b, nil)

	cookies, err := sess.RequestCookies(context.Background())
	require.NoError(t, err)
	require.Len(t, cookies, 1)

	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int64(1735689600), cookies[0].Expires.Unix())
}
