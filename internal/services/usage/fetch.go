// Package usage fetches usage reports from the customer API and normalises
// them into calendar-bucketed series.
package usage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // Pacific/Auckland must resolve without system zoneinfo

	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// LocalZone is the provider's civil timezone.
const LocalZone = "Pacific/Auckland"

// TokenSource supplies a fresh bearer token and the resolved account number.
type TokenSource interface {
	EnsureSession(ctx context.Context) (token, account string, err error)
}

// DateRange bounds a usage request. Both ends are sent as their calendar date
// with a T00:00:00Z time, as the customer app does.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) values() url.Values {
	v := url.Values{}
	v.Set("startDate", r.Start.Format(time.DateOnly)+"T00:00:00Z")
	v.Set("endDate", r.End.Format(time.DateOnly)+"T00:00:00Z")
	return v
}

// LookbackRange returns the window from local midnight days ago to today's
// local midnight.
func LookbackRange(now time.Time, days int, loc *time.Location) DateRange {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DateRange{Start: today.AddDate(0, 0, -days), End: today}
}

// DefaultRange returns the window used when the caller does not pick one.
// Billing-period endpoints use the provider's own default window.
func DefaultRange(kind models.EndpointKind, now time.Time, lookbackDays int, loc *time.Location) *DateRange {
	if kind.IsBillingPeriod() || lookbackDays <= 0 {
		return nil
	}
	r := LookbackRange(now, lookbackDays, loc)
	return &r
}

// RawPayload is an unparsed usage response.
type RawPayload struct {
	FetchedAt time.Time
	Endpoint  models.EndpointKind
	Body      []byte
}

// Service fetches and decodes usage reports.
type Service struct {
	tokens    TokenSource
	transport http.RoundTripper
	loc       *time.Location
	apiBase   string
	timeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTransport sets the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Service) { s.transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLocation overrides the civil timezone used for day and billing buckets.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a usage service for the API at apiBase.
func NewService(tokens TokenSource, apiBase string, opts ...Option) (*Service, error) {
	loc, err := time.LoadLocation(LocalZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", LocalZone, err)
	}
	s := &Service{
		tokens:  tokens,
		apiBase: apiBase,
		timeout: 30 * time.Second,
		loc:     loc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location returns the civil timezone of the service.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Fetch requests one usage report. The endpoint kind is validated before any
// network traffic, including the session check.
func (s *Service) Fetch(ctx context.Context, kind models.EndpointKind, rng *DateRange) (raw *RawPayload, err error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported endpoint %q", models.ErrValidation, kind)
	}

	start := time.Now()
	defer func() { metrics.ObserveFetch(string(kind), err, time.Since(start)) }()

	token, account, err := s.tokens.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.apiBase, "/") + "/v1/usage/" + url.PathEscape(account) + "/" + string(kind)
	if rng != nil {
		endpoint += "?" + rng.values().Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: s.timeout, Transport: s.transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.FetchError{Endpoint: kind, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		logger.Warn("fetched usage successfully but there was no data", "endpoint", kind)
	}

	return &RawPayload{Endpoint: kind, Body: body, FetchedAt: time.Now()}, nil
}
