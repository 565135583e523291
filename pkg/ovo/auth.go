// Package ovo talks to the OVO Energy retail portal: an Auth0-style PKCE
// login flow followed by GraphQL usage queries.
package ovo

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

const (
	defaultAuthBase = "https://login.ovoenergy.com.au"
	defaultAppBase  = "https://my.ovoenergy.com.au"

	clientID    = "5JHnPn71qgV3LmF3I3xX0KvfRBdROVhR"
	redirectURI = "https://my.ovoenergy.com.au?login=oea"
	audience    = "https://login.ovoenergy.com.au/api"
	tenant      = "ovoenergyau"
	connection  = "prod-myovo-auth"

	verifierLength = 43
)

var scopes = []string{"openid", "profile", "email", "offline_access"}

// Credential is the bearer material produced by a completed login. It is
// owned by its Session, refreshed in place, and never persisted.
type Credential struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

// Session drives the portal login protocol and attaches the resulting
// credential to outgoing requests. Not safe for concurrent use without
// external synchronization.
type Session struct {
	authBase string
	appBase  string
	client   *http.Client
	logger   *zap.Logger
	creds    *Credential
}

// Option overrides Session defaults, mostly for tests.
type Option func(*Session)

// WithBaseURLs points the session at alternate portal endpoints.
func WithBaseURLs(authBase, appBase string) Option {
	return func(s *Session) {
		s.authBase = strings.TrimRight(authBase, "/")
		s.appBase = strings.TrimRight(appBase, "/")
	}
}

// WithHTTPClient swaps the underlying client. A cookie jar is still
// attached if the client has none: the login flow depends on it.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

func NewSession(logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		authBase: defaultAuthBase,
		appBase:  defaultAppBase,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 60 * time.Second}
	}
	if s.client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		s.client.Jar = jar
	}
	return s
}

// Login walks the portal's authorization protocol end to end:
// authorize page → credential submit → consent form replay → code exchange.
// It is never retried internally; repeated logins risk a provider lockout.
func (s *Session) Login(ctx context.Context, username, password string) error {
	verifier, err := randomUnreserved(verifierLength)
	if err != nil {
		return authErr("generate verifier", err)
	}
	challenge := sha256.Sum256([]byte(verifier))

	rawNonce, err := randomUnreserved(verifierLength)
	if err != nil {
		return authErr("generate nonce", err)
	}
	// The portal wants the nonce itself base64 encoded.
	nonce := base64.URLEncoding.EncodeToString([]byte(rawNonce))

	state, body, err := s.fetchAuthPage(ctx, challenge[:], nonce)
	if err != nil {
		return err
	}

	csrf, intstate, err := extractAuthConfig(body)
	if err != nil {
		return err
	}

	consentAction, consentFields, loginURL, err := s.submitCredentials(ctx, username, password, nonce, state, csrf, intstate)
	if err != nil {
		return err
	}

	callbackURL, err := s.submitConsent(ctx, consentAction, consentFields, loginURL)
	if err != nil {
		return err
	}

	creds, err := s.exchangeCode(ctx, callbackURL, verifier)
	if err != nil {
		return err
	}

	s.creds = creds
	s.logger.Info("ovo login complete", zap.Time("token_expiry", creds.Expiry))
	return nil
}

// fetchAuthPage requests the authorization URL and returns the state
// correlation value from the redirected URL plus the page body.
func (s *Session) fetchAuthPage(ctx context.Context, challenge []byte, nonce string) (string, []byte, error) {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("redirect_uri", redirectURI)
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(challenge))
	q.Set("code_challenge_method", "S256")
	q.Set("audience", audience)
	q.Set("nonce", nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.authBase+"/authorize?"+q.Encode(), nil)
	if err != nil {
		return "", nil, authErr("build authorize request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, authErr("fetch authorize page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &provider.AuthError{Provider: "ovo", Op: "fetch authorize page", Status: resp.StatusCode}
	}

	state := resp.Request.URL.Query().Get("state")
	if state == "" {
		return "", nil, &provider.AuthError{Provider: "ovo", Op: "extract state from authorize redirect", Err: fmt.Errorf("no state parameter on %s", resp.Request.URL)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, authErr("read authorize page", err)
	}
	return state, body, nil
}

// submitCredentials posts identity/secret plus the scraped anti-CSRF tokens
// and returns the consent form to replay.
func (s *Session) submitCredentials(ctx context.Context, username, password, nonce, state, csrf, intstate string) (string, url.Values, *url.URL, error) {
	form := url.Values{}
	form.Set("audience", audience)
	form.Set("client_id", clientID)
	form.Set("connection", connection)
	form.Set("nonce", nonce)
	form.Set("password", password)
	form.Set("redirect_uri", redirectURI)
	form.Set("scope", strings.Join(scopes, " "))
	form.Set("state", state)
	form.Set("tenant", tenant)
	form.Set("username", username)
	form.Set("_csrf", csrf)
	form.Set("_intstate", intstate)

	loginEndpoint := s.authBase + "/usernamepassword/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, nil, authErr("build login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, nil, authErr("submit credentials", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, nil, &provider.AuthError{Provider: "ovo", Op: "submit credentials", Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, nil, authErr("read login response", err)
	}

	action, fields, err := extractForm(body)
	if err != nil {
		return "", nil, nil, err
	}
	return action, fields, resp.Request.URL, nil
}

// submitConsent replays the identity provider's auto-submit form verbatim,
// with Origin/Referer pointing back at the login response.
func (s *Session) submitConsent(ctx context.Context, action string, fields url.Values, referer *url.URL) (*url.URL, error) {
	target, err := referer.Parse(action)
	if err != nil {
		return nil, authErr("resolve consent action", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, authErr("build consent request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", referer.Scheme+"://"+referer.Host)
	req.Header.Set("Referer", referer.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, authErr("submit consent", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.AuthError{Provider: "ovo", Op: "submit consent", Status: resp.StatusCode}
	}
	return resp.Request.URL, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// exchangeCode trades the authorization code on the callback URL for the
// token set.
func (s *Session) exchangeCode(ctx context.Context, callback *url.URL, verifier string) (*Credential, error) {
	code := callback.Query().Get("code")
	if code == "" {
		return nil, &provider.AuthError{Provider: "ovo", Op: "extract authorization code", Err: fmt.Errorf("no code parameter on %s", callback)}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", clientID)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("redirect_uri", redirectURI)

	return s.requestToken(ctx, "exchange code", form)
}

func (s *Session) refresh(ctx context.Context) error {
	if s.creds == nil || s.creds.RefreshToken == "" {
		return &provider.AuthError{Provider: "ovo", Op: "refresh", Err: fmt.Errorf("no refresh token held")}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("refresh_token", s.creds.RefreshToken)

	creds, err := s.requestToken(ctx, "refresh", form)
	if err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = s.creds.RefreshToken
	}
	s.creds = creds
	s.logger.Debug("ovo token refreshed", zap.Time("token_expiry", creds.Expiry))
	return nil
}

func (s *Session) requestToken(ctx context.Context, op string, form url.Values) (*Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authBase+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, authErr("build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &provider.AuthError{Provider: "ovo", Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.AuthError{Provider: "ovo", Op: op, Status: resp.StatusCode}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &provider.AuthError{Provider: "ovo", Op: op, Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &provider.AuthError{Provider: "ovo", Op: op, Err: fmt.Errorf("token response missing access_token")}
	}

	return &Credential{
		AccessToken:  tok.AccessToken,
		IDToken:      tok.IDToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tokenExpiry(tok),
	}, nil
}

// tokenExpiry prefers the access token's own exp claim, falling back to the
// advertised lifetime.
func tokenExpiry(tok tokenResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if tok.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return time.Now().Add(time.Hour)
}

// Do sends an authorized request, refreshing the credential proactively
// when expired and once more reactively on a 401. The request needs a
// replayable body (GetBody) for the retry.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.creds == nil {
		return nil, &provider.AuthError{Provider: "ovo", Op: "authorized request", Err: fmt.Errorf("not logged in")}
	}

	if time.Now().After(s.creds.Expiry) {
		if err := s.refresh(req.Context()); err != nil {
			return nil, err
		}
	}

	resp, err := s.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := s.refresh(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return s.send(retry)
}

func (s *Session) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", s.creds.AccessToken)
	req.Header.Set("myovo-id-token", s.creds.IDToken)
	return s.client.Do(req)
}

func authErr(op string, err error) *provider.AuthError {
	return &provider.AuthError{Provider: "ovo", Op: op, Err: err}
}

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

func randomUnreserved(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(unreserved)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = unreserved[idx.Int64()]
	}
	return string(out), nil
}
