package task

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSession(t *testing.T) {
	var lastHeader http.Header
	var lastMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header.Clone()
		lastMethod = r.Method
		switch r.URL.Path {
		case "/redirect":
			w.Header().Set("Location", "https://bank.example/done#access_token=frag-token&state=x")
			w.WriteHeader(http.StatusFound)
		case "/cookie":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			w.Write([]byte(`{}`))
		default:
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	t.Cleanup(srv.Close)

	t.Run("sends the standard headers", func(t *testing.T) {
		s := NewHTTPSession()
		require.NoError(t, s.Get(srv.URL+"/x", nil))
		assert.Equal(t, "application/json,*/*", lastHeader.Get("Accept"))
		assert.Equal(t, "no-cache", lastHeader.Get("Cache-Control"))
		assert.Equal(t, "Mozilla/5.0", lastHeader.Get("User-Agent"))
		assert.NotEmpty(t, lastHeader.Get("X-Request-ID"))
		assert.Equal(t, 200, s.StatusCode())

		var body struct {
			OK bool `json:"ok"`
		}
		require.NoError(t, s.JSON(&body))
		assert.True(t, body.OK)
	})

	t.Run("resolves paths against the base url", func(t *testing.T) {
		s := NewHTTPSession()
		require.ErrorIs(t, s.Get("/x", nil), ErrMissingConfig)

		s.SetBaseURL(srv.URL)
		require.NoError(t, s.PostJSON("/x", map[string]string{"a": "b"}))
		assert.Equal(t, http.MethodPost, lastMethod)
		assert.Equal(t, "application/json", lastHeader.Get("Content-Type"))
	})

	t.Run("does not follow redirects", func(t *testing.T) {
		s := NewHTTPSession()
		require.NoError(t, s.Get(srv.URL+"/redirect", nil))
		assert.Equal(t, http.StatusFound, s.StatusCode())

		require.NoError(t, s.BearerFromLocationFragment())
		require.NoError(t, s.Get(srv.URL+"/x", nil))
		assert.Equal(t, "Bearer frag-token", lastHeader.Get("Authorization"))
	})

	t.Run("keeps cookies across requests", func(t *testing.T) {
		s := NewHTTPSession()
		require.NoError(t, s.Get(srv.URL+"/cookie", nil))
		require.NoError(t, s.Get(srv.URL+"/x", nil))
		assert.Contains(t, lastHeader.Get("Cookie"), "session=abc")
	})

	t.Run("with bearer restores the previous token", func(t *testing.T) {
		s := NewHTTPSession()
		s.SetBearer("outer")
		err := s.WithBearer("inner", func() error {
			require.NoError(t, s.Get(srv.URL+"/x", nil))
			assert.Equal(t, "Bearer inner", lastHeader.Get("Authorization"))
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, s.Get(srv.URL+"/x", nil))
		assert.Equal(t, "Bearer outer", lastHeader.Get("Authorization"))
	})

	t.Run("header hook sees every request", func(t *testing.T) {
		s := NewHTTPSession()
		s.SetHeaderHook(func(header http.Header, method string) {
			header.Set("PSU-IP-Address", "203.0.113.9")
		})
		require.NoError(t, s.PostForm(srv.URL+"/x", map[string]string{"a": "b"}))
		assert.Equal(t, "203.0.113.9", lastHeader.Get("PSU-IP-Address"))
		assert.Equal(t, "application/x-www-form-urlencoded", lastHeader.Get("Content-Type"))
	})
}
