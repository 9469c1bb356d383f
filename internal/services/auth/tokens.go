package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Refresh tokens issued by B2C live for 14 days unless configured otherwise.
const defaultRefreshTokenLifetime = 14 * 24 * time.Hour

// seconds decodes a lifetime sent either as a JSON number or a numeric string.
type seconds int64

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid lifetime %s: %w", data, err)
	}
	*s = seconds(v)
	return nil
}

// TokenResponse is the token endpoint's response for both code exchange and
// refresh.
type TokenResponse struct {
	AccessToken           string  `json:"access_token"`
	RefreshToken          string  `json:"refresh_token,omitempty"`
	TokenType             string  `json:"token_type,omitempty"`
	ExpiresIn             seconds `json:"expires_in"`
	RefreshTokenExpiresIn seconds `json:"refresh_token_expires_in"`
}

// accessExpiry converts expires_in to an absolute instant. When the provider
// omits it the token's own exp claim is used.
func (t *TokenResponse) accessExpiry(now time.Time) time.Time {
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if exp, ok := jwtExpiry(t.AccessToken); ok {
		return exp
	}
	return now
}

func (t *TokenResponse) refreshExpiry(now time.Time) time.Time {
	if t.RefreshTokenExpiresIn > 0 {
		return now.Add(time.Duration(t.RefreshTokenExpiresIn) * time.Second)
	}
	return now.Add(defaultRefreshTokenLifetime)
}

// jwtExpiry reads the exp claim without verifying the signature.
func jwtExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func decodeTokenResponse(body []byte) (*TokenResponse, error) {
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("response has no access_token")
	}
	return &tr, nil
}
