package auth

import "golang.org/x/oauth2"

// PKCE is a verifier/challenge pair generated fresh for every login.
type PKCE struct {
	Verifier  string
	Challenge string
}

// NewPKCE generates a random verifier and its S256 challenge.
func NewPKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}
}
