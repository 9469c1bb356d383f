package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

const defaultTimeout = 30 * time.Second

// Credentials are the username (email) and password of the customer account.
type Credentials struct {
	Username string
	Password string
}

// Manager owns the session of one configured account. Login and Refresh are
// serialised by the same mutex so readers never observe half-written tokens.
type Manager struct {
	now       func() time.Time
	transport http.RoundTripper
	session   *Session
	creds     Credentials
	endpoints Endpoints
	timeout   time.Duration
	mu        sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithEndpoints overrides the provider URLs.
func WithEndpoints(e Endpoints) Option {
	return func(m *Manager) { m.endpoints = e }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTransport sets the HTTP transport used for every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(m *Manager) { m.transport = rt }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager with an empty session.
func NewManager(creds Credentials, opts ...Option) *Manager {
	m := &Manager{
		creds:     creds,
		endpoints: DefaultEndpoints(),
		timeout:   defaultTimeout,
		now:       time.Now,
		session:   &Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Endpoints returns the configured provider URLs.
func (m *Manager) Endpoints() Endpoints {
	return m.endpoints
}

// Snapshot returns the current session state without tokens.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.snapshot(m.now())
}

// Invalidate drops the session so the next EnsureSession performs a login.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &Session{}
}

// EnsureSession applies the freshness policy and returns the bearer token and
// account number to use for the next request. A failed refresh invalidates the
// session so the following cycle starts with a full login.
func (m *Manager) EnsureSession(ctx context.Context) (token, account string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	action := m.session.NextAction(m.now())
	switch action {
	case ActionLogin:
		logger.Debug("session requires login")
		err = m.login(ctx)
	case ActionRefresh:
		logger.Debug("access token needs renewing")
		if err = m.refresh(ctx); err != nil {
			m.session = &Session{}
		}
	}
	if err != nil {
		return "", "", err
	}

	metrics.SetAccessTokenRemaining(m.session.AccessExpiry.Sub(m.now()))
	return m.session.AccessToken, m.session.AccountNumber, nil
}

// Login performs the full interactive login and resolves the account.
func (m *Manager) Login(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx)
}

// Refresh exchanges the refresh token for a new access token and re-resolves
// the account. On failure the existing token state is left untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh(ctx)
}

// ResolveAccount reads the first account number with the current token.
func (m *Manager) ResolveAccount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.resolveAccount(ctx, m.session.AccessToken)
	if err != nil {
		return err
	}
	m.session.AccountNumber = account
	return nil
}

// flow carries the per-attempt state of one login.
type flow struct {
	client    *http.Client
	noFollow  *http.Client
	pkce      PKCE
	requestID string
	settings  Settings
	code      string
}

func (m *Manager) newClient(jar http.CookieJar) *http.Client {
	return &http.Client{Jar: jar, Timeout: m.timeout, Transport: m.transport}
}

func (m *Manager) login(ctx context.Context) (err error) {
	defer func() { metrics.ObserveLogin(err) }()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}

	f := &flow{
		client:    m.newClient(jar),
		noFollow:  m.newClient(jar),
		pkce:      NewPKCE(),
		requestID: uuid.NewString(),
	}
	f.noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	steps := []struct {
		name string
		run  func(context.Context, *flow) error
	}{
		{"authorize", m.authorize},
		{"self-asserted", m.selfAsserted},
		{"confirmed", m.confirm},
	}
	for _, step := range steps {
		if err := step.run(ctx, f); err != nil {
			logger.Warn("login step failed", "step", step.name, "error", err)
			return err
		}
	}

	tokens, err := m.exchangeCode(ctx, f)
	if err != nil {
		return err
	}

	now := m.now()
	account, err := m.resolveAccount(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	m.session = &Session{
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		AccessExpiry:  tokens.accessExpiry(now),
		RefreshExpiry: tokens.refreshExpiry(now),
		AccountNumber: account,
		LoggedInAt:    now,
	}
	logger.Info("logged in", "account", account, "access_expiry", m.session.AccessExpiry)
	return nil
}

func (m *Manager) authorize(ctx context.Context, f *flow) error {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("code_challenge_method", "S256")
	params.Set("client_id", m.endpoints.ClientID)
	params.Set("client-request-id", f.requestID)
	params.Set("scope", m.endpoints.Scope())
	params.Set("prompt", "select_account")
	params.Set("redirect_uri", m.endpoints.RedirectURI)
	params.Set("code_challenge", f.pkce.Challenge)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.AuthorizeURL()+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create authorize request: %w", err)
	}

	status, body, err := do(f.client, req)
	if err != nil {
		return fmt.Errorf("authorize request failed: %w", err)
	}
	if status != http.StatusOK {
		return &models.AuthError{Status: status, Description: "authorize page unavailable"}
	}

	settings, err := ParseSettings(body)
	if err != nil {
		return err
	}
	f.settings = settings
	return nil
}

func (m *Manager) selfAsserted(ctx context.Context, f *flow) error {
	query := url.Values{}
	query.Set("tx", f.settings.TransID)
	query.Set("p", m.endpoints.Policy)

	form := url.Values{}
	form.Set("request_type", "RESPONSE")
	form.Set("email", m.creds.Username)
	form.Set("password", m.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.endpoints.SelfAssertedURL()+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create self-asserted request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-TOKEN", f.settings.CSRF)

	status, body, err := do(f.client, req)
	if err != nil {
		return fmt.Errorf("self-asserted request failed: %w", err)
	}
	if status >= http.StatusBadRequest {
		return &models.AuthError{Status: status, Description: "credentials rejected"}
	}

	// B2C reports bad credentials as 200 with a JSON status field.
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if s := res.Get("status").String(); s != "" && s != "200" {
			return &models.AuthError{Code: "status_" + s, Description: res.Get("message").String()}
		}
	}
	return nil
}

func (m *Manager) confirm(ctx context.Context, f *flow) error {
	params := url.Values{}
	params.Set("rememberMe", "false")
	params.Set("csrf_token", f.settings.CSRF)
	params.Set("tx", f.settings.TransID)
	params.Set("p", m.endpoints.Policy)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.ConfirmedURL()+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create confirmed request: %w", err)
	}

	resp, err := f.noFollow.Do(req)
	if err != nil {
		return fmt.Errorf("confirmed request failed: %w", err)
	}
	closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return &models.AuthError{Status: resp.StatusCode, Description: "confirmation rejected"}
	}

	code, err := parseRedirect(resp.Header.Get("Location"))
	if err != nil {
		return err
	}
	f.code = code
	return nil
}

// parseRedirect extracts the authorization code from the confirmed step's
// Location header.
func parseRedirect(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: confirmed response has no redirect", models.ErrParse)
	}

	_, rawQuery, ok := strings.Cut(location, "?")
	if !ok {
		return "", fmt.Errorf("%w: redirect has no query", models.ErrParse)
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: redirect query: %v", models.ErrParse, err)
	}

	if e := query.Get("error"); e != "" {
		return "", &models.AuthError{Code: e, Description: query.Get("error_description")}
	}
	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: redirect carries neither code nor error", models.ErrParse)
	}
	return code, nil
}

func (m *Manager) exchangeCode(ctx context.Context, f *flow) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("client_id", m.endpoints.ClientID)
	params.Set("client-request-id", f.requestID)
	params.Set("client_info", "1")
	params.Set("code", f.code)
	params.Set("code_verifier", f.pkce.Verifier)
	params.Set("grant_type", "authorization_code")
	params.Set("scope", m.endpoints.Scope())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.TokenURL()+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	status, body, err := do(f.client, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, tokenError(status, body)
	}

	tokens, err := decodeTokenResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: token response: %v", models.ErrParse, err)
	}
	return tokens, nil
}

func (m *Manager) refresh(ctx context.Context) (err error) {
	defer func() { metrics.ObserveRefresh(err) }()

	if m.session.RefreshToken == "" {
		return &models.AuthError{Description: "no refresh token"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.endpoints.ClientID)
	form.Set("refresh_token", m.session.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoints.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := do(m.newClient(nil), req)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	if status != http.StatusOK {
		return tokenError(status, body)
	}

	tokens, err := decodeTokenResponse(body)
	if err != nil {
		return fmt.Errorf("%w: refresh response: %v", models.ErrParse, err)
	}

	account, err := m.resolveAccount(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	m.session.AccessToken = tokens.AccessToken
	m.session.AccessExpiry = tokens.accessExpiry(m.now())
	m.session.AccountNumber = account
	logger.Debug("access token refreshed", "access_expiry", m.session.AccessExpiry)
	return nil
}

func tokenError(status int, body []byte) error {
	res := gjson.ParseBytes(body)
	return &models.AuthError{
		Status:      status,
		Code:        res.Get("error").String(),
		Description: res.Get("error_description").String(),
	}
}

func (m *Manager) resolveAccount(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: no access token", models.ErrAccount)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.APIURL("v1/account"), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create account request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	status, body, err := do(m.newClient(nil), req)
	if err != nil {
		return "", fmt.Errorf("account request failed: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: account list returned status %d", models.ErrAccount, status)
	}

	return parseAccountNumber(body)
}

// parseAccountNumber reads accountNumber from the first element of the
// account list. Numeric account numbers are accepted as well as strings.
func parseAccountNumber(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: account list is not JSON", models.ErrAccount)
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return "", fmt.Errorf("%w: account list is not a list", models.ErrAccount)
	}
	if len(res.Array()) == 0 {
		return "", fmt.Errorf("%w: no accounts found", models.ErrAccount)
	}
	number := res.Get("0.accountNumber")
	if !number.Exists() || number.String() == "" {
		return "", fmt.Errorf("%w: account number not found", models.ErrAccount)
	}
	return number.String(), nil
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Error("failed to close response body", "error", err)
	}
}
