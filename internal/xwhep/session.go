package xwhep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pandeptwidyaop/xwhep-remote/internal/version"
)

const ethAuthCookie = "ethauthtoken"

// SessionProvider exchanges a signed token for session credentials.
type SessionProvider interface {
	Authenticate(ctx context.Context, token string) (Credentials, error)
}

var _ SessionProvider = (*Client)(nil)

// ErrNoState indicates the server accepted the token but returned no state.
var ErrNoState = errors.New("xwhep: authentication returned no state")

// Authenticate exchanges a signed token for session credentials. The server
// answers with a "state" cookie (or a redirect carrying ?state=) that replaces
// login and password on every later call.
func (c *Client) Authenticate(ctx context.Context, token string) (Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+pathEthAuth, nil)
	if err != nil {
		return Credentials{}, err
	}
	req.AddCookie(&http.Cookie{Name: ethAuthCookie, Value: token})
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", version.UserAgent())

	client := *c.http
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Credentials{}, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", pathEthAuth, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return Credentials{}, &StatusError{Path: pathEthAuth, Code: resp.StatusCode}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == paramState && cookie.Value != "" {
			return Credentials{State: cookie.Value}, nil
		}
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		if u, err := url.Parse(loc); err == nil {
			if state := u.Query().Get(paramState); state != "" {
				return Credentials{State: state}, nil
			}
		}
	}

	return Credentials{}, ErrNoState
}
