package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

const testPolicy = "B2C_1_test"

// fakeProvider emulates the B2C login pages, the token endpoint and the
// account list of the customer API.
type fakeProvider struct {
	t *testing.T

	mu    sync.Mutex
	calls []string

	omitSettings   bool
	selfAssertBody string
	redirectQuery  string
	refreshStatus  int
	accountsBody   string
	expiresIn      any
	challenge      string
	sessionCookies map[string]bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	return &fakeProvider{
		t:              t,
		selfAssertBody: `{"status":"200"}`,
		redirectQuery:  "code=auth-code",
		refreshStatus:  http.StatusOK,
		accountsBody:   `[{"accountNumber":"4000123456"},{"accountNumber":"other"}]`,
		expiresIn:      3600,
		sessionCookies: map[string]bool{},
	}
}

func (p *fakeProvider) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
}

func (p *fakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := "/tfp/" + testPolicy + "/"
	switch {
	case r.URL.Path == base+"oAuth2/v2.0/authorize":
		p.record("authorize")
		q := r.URL.Query()
		assert.Equal(p.t, "S256", q.Get("code_challenge_method"))
		assert.Equal(p.t, "code", q.Get("response_type"))
		assert.NotEmpty(p.t, q.Get("client-request-id"))
		assert.Equal(p.t, DefaultRedirectURI, q.Get("redirect_uri"))
		p.mu.Lock()
		p.challenge = q.Get("code_challenge")
		cookie := fmt.Sprintf("session-%d", len(p.sessionCookies))
		p.sessionCookies[cookie] = false
		p.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "x-ms-cpim-trans", Value: cookie, Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, "<html><head><script>")
		if !p.omitSettings {
			fmt.Fprintln(w, `  var SETTINGS = {"transId":"StateProperties=abc","csrf":"csrf-token","api":"CombinedSigninAndSignup"};`)
		}
		fmt.Fprintln(w, "</script></head></html>")

	case r.URL.Path == base+"SelfAsserted":
		p.record("selfasserted")
		assert.Equal(p.t, "csrf-token", r.Header.Get("X-CSRF-TOKEN"))
		assert.Equal(p.t, "StateProperties=abc", r.URL.Query().Get("tx"))
		assert.NoError(p.t, r.ParseForm())
		assert.Equal(p.t, "RESPONSE", r.PostForm.Get("request_type"))
		assert.Equal(p.t, "user@example.com", r.PostForm.Get("email"))

		c, err := r.Cookie("x-ms-cpim-trans")
		if !assert.NoError(p.t, err, "login cookies must be carried across steps") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		used := p.sessionCookies[c.Value]
		p.sessionCookies[c.Value] = true
		p.mu.Unlock()
		assert.False(p.t, used, "cookie from a previous login attempt was replayed")

		_, _ = w.Write([]byte(p.selfAssertBody))

	case r.URL.Path == base+"api/CombinedSigninAndSignup/confirmed":
		p.record("confirmed")
		assert.Equal(p.t, "csrf-token", r.URL.Query().Get("csrf_token"))
		assert.Equal(p.t, "false", r.URL.Query().Get("rememberMe"))
		w.Header().Set("Location", DefaultRedirectURI+"?"+p.redirectQuery)
		w.WriteHeader(http.StatusFound)

	case r.URL.Path == base+"oauth2/v2.0/token" && r.Method == http.MethodGet:
		p.record("token")
		q := r.URL.Query()
		assert.Equal(p.t, "authorization_code", q.Get("grant_type"))
		assert.Equal(p.t, "auth-code", q.Get("code"))
		p.mu.Lock()
		challenge := p.challenge
		p.mu.Unlock()
		assert.Equal(p.t, challenge, oauth2.S256ChallengeFromVerifier(q.Get("code_verifier")))
		writeJSON(w, map[string]any{
			"access_token":             "access-1",
			"refresh_token":            "refresh-1",
			"expires_in":               p.expiresIn,
			"refresh_token_expires_in": "1209600",
		})

	case r.URL.Path == base+"oauth2/v2.0/token" && r.Method == http.MethodPost:
		p.record("refresh")
		assert.NoError(p.t, r.ParseForm())
		assert.Equal(p.t, "refresh_token", r.PostForm.Get("grant_type"))
		if p.refreshStatus != http.StatusOK {
			w.WriteHeader(p.refreshStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"expired"}`))
			return
		}
		writeJSON(w, map[string]any{"access_token": "access-2", "expires_in": 3600})

	case r.URL.Path == "/api/v1/account":
		p.record("account")
		assert.True(p.t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer access-"))
		_, _ = w.Write([]byte(p.accountsBody))

	default:
		p.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestManager(t *testing.T, p *fakeProvider, now func() time.Time) *Manager {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	endpoints := DefaultEndpoints()
	endpoints.TokenBase = srv.URL + "/tfp"
	endpoints.Policy = testPolicy
	endpoints.APIBase = srv.URL + "/api/"

	opts := []Option{WithEndpoints(endpoints), WithTimeout(5 * time.Second)}
	if now != nil {
		opts = append(opts, WithClock(now))
	}
	return NewManager(Credentials{Username: "user@example.com", Password: "hunter2"}, opts...)
}

func TestLogin(t *testing.T) {
	p := newFakeProvider(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, p, func() time.Time { return now })

	require.NoError(t, m.Login(context.Background()))
	assert.Equal(t, []string{"authorize", "selfasserted", "confirmed", "token", "account"}, p.Calls())

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "4000123456", snap.AccountNumber)
	assert.Equal(t, now.Add(time.Hour), snap.AccessExpiry)
	assert.Equal(t, now.Add(14*24*time.Hour), snap.RefreshExpiry)
	assert.True(t, snap.Fresh)

	now = now.Add(56 * time.Minute)
	assert.False(t, m.Snapshot().Fresh, "access token inside the renewal margin")
	assert.True(t, m.Snapshot().Authenticated)
}

func TestLogin_FreshCookieJarPerAttempt(t *testing.T) {
	p := newFakeProvider(t)
	m := newTestManager(t, p, nil)

	require.NoError(t, m.Login(context.Background()))
	require.NoError(t, m.Login(context.Background()))
	assert.Len(t, p.sessionCookies, 2)
}

func TestLogin_MissingSettings(t *testing.T) {
	p := newFakeProvider(t)
	p.omitSettings = true
	m := newTestManager(t, p, nil)

	err := m.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrParse), "got %v", err)
	assert.Equal(t, []string{"authorize"}, p.Calls(), "no request may follow a missing settings line")
	assert.False(t, m.Snapshot().Authenticated)
}

func TestLogin_RedirectError(t *testing.T) {
	p := newFakeProvider(t)
	p.redirectQuery = "error=access_denied&error_description=AADB2C90118%3A+user+cancelled"
	m := newTestManager(t, p, nil)

	err := m.Login(context.Background())
	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "access_denied", authErr.Code)
	assert.Equal(t, "AADB2C90118: user cancelled", authErr.Description)
	assert.Equal(t, []string{"authorize", "selfasserted", "confirmed"}, p.Calls())
}

func TestLogin_BadCredentials(t *testing.T) {
	p := newFakeProvider(t)
	p.selfAssertBody = `{"status":"400","message":"Your password is incorrect."}`
	m := newTestManager(t, p, nil)

	err := m.Login(context.Background())
	require.ErrorIs(t, err, models.ErrAuth)
	assert.Contains(t, err.Error(), "Your password is incorrect.")
	assert.Equal(t, []string{"authorize", "selfasserted"}, p.Calls())
}

func TestLogin_AccountErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Empty", `[]`},
		{"NotAList", `{"accountNumber":"1"}`},
		{"MissingField", `[{"name":"home"}]`},
		{"NotJSON", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(t)
			p.accountsBody = tt.body
			m := newTestManager(t, p, nil)

			err := m.Login(context.Background())
			assert.ErrorIs(t, err, models.ErrAccount)
			assert.False(t, m.Snapshot().Authenticated)
		})
	}
}

func TestLogin_ExpiryFromJWT(t *testing.T) {
	exp := time.Date(2024, 6, 1, 13, 30, 0, 0, time.UTC)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	tr := &TokenResponse{AccessToken: signed}
	assert.True(t, tr.accessExpiry(time.Now()).Equal(exp))
}

func TestTokenResponse_FlexibleLifetimes(t *testing.T) {
	tr, err := decodeTokenResponse([]byte(`{"access_token":"a","expires_in":"3600","refresh_token_expires_in":86400}`))
	require.NoError(t, err)
	assert.Equal(t, seconds(3600), tr.ExpiresIn)
	assert.Equal(t, seconds(86400), tr.RefreshTokenExpiresIn)

	_, err = decodeTokenResponse([]byte(`{"expires_in":3600}`))
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	p := newFakeProvider(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, p, func() time.Time { return now })
	require.NoError(t, m.Login(context.Background()))

	now = now.Add(58 * time.Minute)
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, "access-2", m.session.AccessToken)
	assert.Equal(t, "refresh-1", m.session.RefreshToken, "refresh replaces only the access token")
	assert.Equal(t, now.Add(time.Hour), m.session.AccessExpiry)
}

func TestRefresh_FailureKeepsTokens(t *testing.T) {
	p := newFakeProvider(t)
	m := newTestManager(t, p, nil)
	require.NoError(t, m.Login(context.Background()))

	p.refreshStatus = http.StatusBadRequest
	err := m.Refresh(context.Background())

	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.Equal(t, "access-1", m.session.AccessToken)
	assert.Equal(t, "refresh-1", m.session.RefreshToken)
}

func TestEnsureSession(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		session   *Session
		wantCalls []string
	}{
		{
			name:      "NoAccount",
			session:   &Session{},
			wantCalls: []string{"authorize", "selfasserted", "confirmed", "token", "account"},
		},
		{
			name: "AccessExpiresIn3Minutes",
			session: &Session{
				AccessToken: "access-1", RefreshToken: "refresh-1", AccountNumber: "4000123456",
				AccessExpiry: base.Add(3 * time.Minute), RefreshExpiry: base.Add(48 * time.Hour),
			},
			wantCalls: []string{"refresh", "account"},
		},
		{
			name: "RefreshExpiresIn30Minutes",
			session: &Session{
				AccessToken: "access-1", RefreshToken: "refresh-1", AccountNumber: "4000123456",
				AccessExpiry: base.Add(3 * time.Minute), RefreshExpiry: base.Add(30 * time.Minute),
			},
			wantCalls: []string{"authorize", "selfasserted", "confirmed", "token", "account"},
		},
		{
			name: "Fresh",
			session: &Session{
				AccessToken: "access-1", RefreshToken: "refresh-1", AccountNumber: "4000123456",
				AccessExpiry: base.Add(time.Hour), RefreshExpiry: base.Add(48 * time.Hour),
			},
			wantCalls: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(t)
			m := newTestManager(t, p, func() time.Time { return base })
			m.session = tt.session

			token, account, err := m.EnsureSession(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "4000123456", account)
			assert.Equal(t, tt.wantCalls, p.Calls())
		})
	}
}

func TestEnsureSession_RefreshFailureInvalidates(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newFakeProvider(t)
	p.refreshStatus = http.StatusUnauthorized
	m := newTestManager(t, p, func() time.Time { return base })
	m.session = &Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountNumber: "4000123456",
		AccessExpiry: base.Add(time.Minute), RefreshExpiry: base.Add(48 * time.Hour),
	}

	_, _, err := m.EnsureSession(context.Background())
	require.ErrorIs(t, err, models.ErrAuth)
	assert.Equal(t, ActionLogin, m.session.NextAction(base))

	_, _, err = m.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh", "authorize", "selfasserted", "confirmed", "token", "account"}, p.Calls())
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		want    Settings
		wantErr bool
	}{
		{
			name: "Indented",
			page: "<script>\n    var SETTINGS = {\"transId\":\"tx1\",\"csrf\":\"c1\"};\n</script>",
			want: Settings{TransID: "tx1", CSRF: "c1"},
		},
		{name: "Missing", page: "<html></html>", wantErr: true},
		{name: "Malformed", page: "var SETTINGS = {transId:;", wantErr: true},
		{name: "NoCSRF", page: `var SETTINGS = {"transId":"tx1"};`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings([]byte(tt.page))
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRedirect(t *testing.T) {
	code, err := parseRedirect(DefaultRedirectURI + "?state=x&code=abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)

	_, err = parseRedirect("")
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = parseRedirect("msauth://nz.co.watercare/cb?state=x")
	assert.ErrorIs(t, err, models.ErrParse)
}

func TestNewPKCE(t *testing.T) {
	a, b := NewPKCE(), NewPKCE()
	assert.NotEqual(t, a.Verifier, b.Verifier)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(a.Verifier), a.Challenge)
	assert.GreaterOrEqual(t, len(a.Verifier), 43)
}

func TestSessionNextAction(t *testing.T) {
	now := time.Now()
	var nilSession *Session
	assert.Equal(t, ActionLogin, nilSession.NextAction(now))
	assert.Equal(t, "refresh", ActionRefresh.String())

	s := &Session{
		AccessToken: "a", AccountNumber: "1",
		AccessExpiry: now.Add(AccessTokenMargin), RefreshExpiry: now.Add(2 * time.Hour),
	}
	assert.Equal(t, ActionRefresh, s.NextAction(now), "expiry exactly at the margin needs a refresh")
	assert.False(t, s.Valid(now))
}
