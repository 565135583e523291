package ovo

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

// testPortal fakes the identity provider: authorize redirect, login page
// with the embedded config blob, credential submit, consent replay, and the
// token endpoint.
type testPortal struct {
	t      *testing.T
	server *httptest.Server

	username string
	password string

	refreshed bool
}

func newTestPortal(t *testing.T) *testPortal {
	p := &testPortal{t: t, username: "user@example.com", password: "hunter2"}

	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "code", r.URL.Query().Get("response_type"))
		assert.Equal(t, "S256", r.URL.Query().Get("code_challenge_method"))
		assert.NotEmpty(t, r.URL.Query().Get("code_challenge"))
		assert.NotEmpty(t, r.URL.Query().Get("nonce"))
		http.Redirect(w, r, "/login?state=state-1", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		blob := base64.URLEncoding.EncodeToString([]byte(`{"extraParams":{"_csrf":"csrf-1","_intstate":"intstate-1"}}`))
		fmt.Fprintf(w, `<html><head><script>var bootstrap = window.atob("%s");</script></head><body></body></html>`, blob)
	})
	mux.HandleFunc("/usernamepassword/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, p.username, r.PostForm.Get("username"))
		assert.Equal(t, p.password, r.PostForm.Get("password"))
		assert.Equal(t, "state-1", r.PostForm.Get("state"))
		assert.Equal(t, "csrf-1", r.PostForm.Get("_csrf"))
		assert.Equal(t, "intstate-1", r.PostForm.Get("_intstate"))
		assert.NotEmpty(t, r.PostForm.Get("nonce"))
		fmt.Fprint(w, `<html><body><form method="post" action="/continue">`+
			`<input type="hidden" name="wa" value="wsignin1.0">`+
			`<input type="hidden" name="wresult" value="assertion-1">`+
			`</form></body></html>`)
	})
	mux.HandleFunc("/continue", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "wsignin1.0", r.PostForm.Get("wa"))
		assert.Equal(t, "assertion-1", r.PostForm.Get("wresult"))
		assert.NotEmpty(t, r.Header.Get("Origin"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		http.Redirect(w, r, "/callback?code=code-1", http.StatusFound)
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "signed in")
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "code-1", r.PostForm.Get("code"))
			assert.Len(t, r.PostForm.Get("code_verifier"), verifierLength)
			fmt.Fprint(w, `{"access_token":"token-1","id_token":"id-1","refresh_token":"refresh-1","expires_in":3600}`)
		case "refresh_token":
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			p.refreshed = true
			fmt.Fprint(w, `{"access_token":"token-2","id_token":"id-2","expires_in":3600}`)
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *testPortal) session() *Session {
	return NewSession(nil,
		WithBaseURLs(p.server.URL, p.server.URL),
		WithHTTPClient(p.server.Client()))
}

func TestLogin(t *testing.T) {
	portal := newTestPortal(t)
	s := portal.session()

	err := s.Login(context.Background(), portal.username, portal.password)
	require.NoError(t, err)

	require.NotNil(t, s.creds)
	assert.Equal(t, "token-1", s.creds.AccessToken)
	assert.Equal(t, "id-1", s.creds.IDToken)
	assert.Equal(t, "refresh-1", s.creds.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.creds.Expiry, time.Minute)
}

func TestLoginMissingConfigBlob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login?state=state-1", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><script>console.log("hi");</script></head></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewSession(nil, WithBaseURLs(server.URL, server.URL), WithHTTPClient(server.Client()))
	err := s.Login(context.Background(), "user", "pass")

	var scrapeErr *provider.ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, "ovo", scrapeErr.Provider)
}

func TestLoginMissingState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewSession(nil, WithBaseURLs(server.URL, server.URL), WithHTTPClient(server.Client()))
	err := s.Login(context.Background(), "user", "pass")

	var aerr *provider.AuthError
	require.ErrorAs(t, err, &aerr)
}

func TestDo(t *testing.T) {
	t.Run("NotLoggedIn", func(t *testing.T) {
		s := NewSession(nil)
		req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
		require.NoError(t, err)

		_, err = s.Do(req)
		var aerr *provider.AuthError
		require.ErrorAs(t, err, &aerr)
	})

	t.Run("RefreshOn401", func(t *testing.T) {
		portal := newTestPortal(t)

		mux := http.NewServeMux()
		mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "token-2" {
				http.Error(w, "expired", http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "id-2", r.Header.Get("myovo-id-token"))
			fmt.Fprint(w, "ok")
		})
		api := httptest.NewServer(mux)
		defer api.Close()

		s := portal.session()
		s.creds = &Credential{
			AccessToken:  "token-1",
			IDToken:      "id-1",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(time.Hour),
		}

		req, err := http.NewRequest(http.MethodGet, api.URL+"/api", nil)
		require.NoError(t, err)

		resp, err := s.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, portal.refreshed)
		assert.Equal(t, "token-2", s.creds.AccessToken)
		// The refresh response carried no new refresh token; the old one is
		// kept for next time.
		assert.Equal(t, "refresh-1", s.creds.RefreshToken)
	})

	t.Run("ProactiveRefreshWhenExpired", func(t *testing.T) {
		portal := newTestPortal(t)

		mux := http.NewServeMux()
		mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "token-2", r.Header.Get("Authorization"))
			fmt.Fprint(w, "ok")
		})
		api := httptest.NewServer(mux)
		defer api.Close()

		s := portal.session()
		s.creds = &Credential{
			AccessToken:  "token-1",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(-time.Minute),
		}

		req, err := http.NewRequest(http.MethodGet, api.URL+"/api", nil)
		require.NoError(t, err)

		resp, err := s.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.True(t, portal.refreshed)
	})
}
