package auth

import (
	"time"
)

// Freshness margins applied before every data fetch.
const (
	AccessTokenMargin  = 5 * time.Minute
	RefreshTokenMargin = time.Hour
)

// Session is the in-memory token state of one configured account. It is never
// persisted.
type Session struct {
	AccessExpiry  time.Time
	RefreshExpiry time.Time
	AccessToken   string
	RefreshToken  string
	AccountNumber string
	LoggedInAt    time.Time
}

// Action is what the freshness policy requires before the next fetch.
type Action int

const (
	// ActionNone means the session can be used as is.
	ActionNone Action = iota
	// ActionRefresh means the access token must be refreshed.
	ActionRefresh
	// ActionLogin means a full interactive login is required.
	ActionLogin
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRefresh:
		return "refresh"
	case ActionLogin:
		return "login"
	default:
		return "unknown"
	}
}

// NextAction applies the freshness policy at now.
func (s *Session) NextAction(now time.Time) Action {
	if s == nil || s.AccountNumber == "" || s.AccessToken == "" {
		return ActionLogin
	}
	if !s.RefreshExpiry.After(now.Add(RefreshTokenMargin)) {
		return ActionLogin
	}
	if !s.AccessExpiry.After(now.Add(AccessTokenMargin)) {
		return ActionRefresh
	}
	return ActionNone
}

// Valid reports whether the session can be used at now without any action.
func (s *Session) Valid(now time.Time) bool {
	return s.NextAction(now) == ActionNone
}

// Snapshot is a read-only view of the session safe to hand to the UI.
// Tokens are omitted.
type Snapshot struct {
	AccessExpiry  time.Time
	RefreshExpiry time.Time
	LoggedInAt    time.Time
	AccountNumber string
	Authenticated bool
	// Fresh is false when the next fetch has to refresh or log in first.
	Fresh bool
}

func (s *Session) snapshot(now time.Time) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		AccessExpiry:  s.AccessExpiry,
		RefreshExpiry: s.RefreshExpiry,
		LoggedInAt:    s.LoggedInAt,
		AccountNumber: s.AccountNumber,
		Authenticated: s.AccessToken != "" && s.AccountNumber != "",
		Fresh:         s.Valid(now),
	}
}
