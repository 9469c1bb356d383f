// Package auth performs the Azure AD B2C login used by the Watercare customer
// app and keeps the resulting bearer token fresh.
package auth

import (
	"fmt"
	"strings"
)

// Fixed identifiers of the registered mobile client.
const (
	DefaultClientID    = "799c26af-c35b-4010-bd04-b6a7ebdba811"
	DefaultRedirectURI = "msauth://nz.co.watercare/yRDm0vmCd9zdnwt1eCLGp8KfdLY="
	DefaultAPIBase     = "https://customerapp.api.water.co.nz/"
	DefaultTokenBase   = "https://wslpwb2cprd.b2clogin.com/tfp/wslpwb2cprd.onmicrosoft.com"
	DefaultPolicy      = "B2C_1_sign_up_or_sign_in_mobile"
)

// Endpoints holds the base URLs and client identifiers used by the manager.
type Endpoints struct {
	APIBase     string
	TokenBase   string
	Policy      string
	ClientID    string
	RedirectURI string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIBase:     DefaultAPIBase,
		TokenBase:   DefaultTokenBase,
		Policy:      DefaultPolicy,
		ClientID:    DefaultClientID,
		RedirectURI: DefaultRedirectURI,
	}
}

// Scope returns the scope requested during login.
func (e Endpoints) Scope() string {
	return e.ClientID + " openid offline_access profile"
}

func (e Endpoints) policyURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(e.TokenBase, "/"), e.Policy, path)
}

// AuthorizeURL is the B2C authorize endpoint.
func (e Endpoints) AuthorizeURL() string { return e.policyURL("oAuth2/v2.0/authorize") }

// SelfAssertedURL is the credential submission endpoint.
func (e Endpoints) SelfAssertedURL() string { return e.policyURL("SelfAsserted") }

// ConfirmedURL is the endpoint that issues the authorization code redirect.
func (e Endpoints) ConfirmedURL() string {
	return e.policyURL("api/CombinedSigninAndSignup/confirmed")
}

// TokenURL is the token exchange and refresh endpoint.
func (e Endpoints) TokenURL() string { return e.policyURL("oauth2/v2.0/token") }

// APIURL joins a path onto the customer API base.
func (e Endpoints) APIURL(path string) string {
	return strings.TrimRight(e.APIBase, "/") + "/" + strings.TrimLeft(path, "/")
}
