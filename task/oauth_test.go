package task

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/driver"
)

// echoStateDriver answers a callback with the state the authorize URL
// carries, the way a real browser redirect would.
type echoStateDriver struct {
	scriptDriver
	fixedState string
	visited    string
}

func (d *echoStateDriver) Callback(authorizeURL, _ string) (*url.URL, error) {
	d.visited = authorizeURL
	parsed, err := url.Parse(authorizeURL)
	if err != nil {
		return nil, err
	}
	state := parsed.Query().Get("state")
	if d.fixedState != "" {
		state = d.fixedState
	}
	return url.Parse("https://svc.example/callback?code=authcode&state=" + state)
}

func newOAuthServer(t *testing.T) (*httptest.Server, *map[string]string) {
	t.Helper()
	lastForm := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		for k := range r.PostForm {
			lastForm[k] = r.PostForm.Get(k)
		}

		switch {
		case r.PostForm.Get("grant_type") == "refresh_token" && r.PostForm.Get("refresh_token") == "good":
			json.NewEncoder(w).Encode(map[string]string{
				"access_token":  "at-refreshed",
				"refresh_token": "rt-rotated",
			})
		case r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") == "authcode":
			json.NewEncoder(w).Encode(map[string]string{
				"access_token":  "at-fresh",
				"refresh_token": "rt-fresh",
			})
		default:
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "nope",
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastForm
}

func newOAuthRuntime(drv driver.Driver) *Runtime {
	conn := &fakeConnection{configs: map[string]string{
		"oauthclientid":     "client-1",
		"oauthclientsecret": "secret-1",
	}}
	return newRuntime(Params{
		Connection:  conn,
		Driver:      drv,
		Request:     &Request{},
		CallbackURI: "https://svc.example/callback",
		UserConfig:  &memStore{},
	})
}

func TestOAuthLogin(t *testing.T) {
	t.Run("uses a cached refresh token", func(t *testing.T) {
		srv, lastForm := newOAuthServer(t)
		drv := &echoStateDriver{}
		rt := newOAuthRuntime(drv)
		rt.SetUserConfig(UserConfigRefreshToken, "good")

		o := &OAuth{Session: NewHTTPSession(), TokenURL: srv.URL + "/token"}
		require.NoError(t, o.LoadConfig(rt))
		require.NoError(t, o.Login(rt))

		assert.Empty(t, drv.visited)
		assert.Equal(t, "client-1", (*lastForm)["client_id"])
		assert.Equal(t, "secret-1", (*lastForm)["client_secret"])
		rotated, _ := rt.UserConfig(UserConfigRefreshToken)
		assert.Equal(t, "rt-rotated", rotated)
	})

	t.Run("falls back to the authorize flow on a rejected token", func(t *testing.T) {
		srv, lastForm := newOAuthServer(t)
		drv := &echoStateDriver{}
		rt := newOAuthRuntime(drv)
		rt.SetUserConfig(UserConfigRefreshToken, "stale")

		o := &OAuth{
			Session:      NewHTTPSession(),
			AuthorizeURL: srv.URL + "/authorize",
			TokenURL:     srv.URL + "/token",
			Scope:        "ais",
		}
		require.NoError(t, o.LoadConfig(rt))
		require.NoError(t, o.Login(rt))

		visited, err := url.Parse(drv.visited)
		require.NoError(t, err)
		query := visited.Query()
		assert.Equal(t, "code", query.Get("response_type"))
		assert.Equal(t, "client-1", query.Get("client_id"))
		assert.Equal(t, "ais", query.Get("scope"))
		assert.Equal(t, "https://svc.example/callback", query.Get("redirect_uri"))

		assert.Equal(t, "authcode", (*lastForm)["code"])
		fresh, _ := rt.UserConfig(UserConfigRefreshToken)
		assert.Equal(t, "rt-fresh", fresh)
	})

	t.Run("rejects a tampered state", func(t *testing.T) {
		srv, _ := newOAuthServer(t)
		drv := &echoStateDriver{fixedState: "evil"}
		rt := newOAuthRuntime(drv)

		o := &OAuth{
			Session:      NewHTTPSession(),
			AuthorizeURL: srv.URL + "/authorize",
			TokenURL:     srv.URL + "/token",
		}
		require.NoError(t, o.LoadConfig(rt))
		require.ErrorIs(t, o.Login(rt), ErrInvalidState)
	})
}
