// Package auth builds the OAuth2 token sources used for authenticated DAM endpoints
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
)

// ErrIncompleteCredentials is returned when only part of a client credentials grant is configured
var ErrIncompleteCredentials = errors.New("client id, client secret and token url are all required")

// Settings selects how bearer tokens are obtained. The first configured mode wins:
// a static token, then the client credentials grant, then Google application default credentials.
type Settings struct {
	Token        string   `json:"token"`
	ClientID     string   `json:"clientID"`
	ClientSecret string   `json:"clientSecret"`
	TokenURL     string   `json:"tokenURL"`
	Scopes       []string `json:"scopes"`
	GoogleADC    bool     `json:"googleADC"`
}

// Enabled reports whether any token mode is configured
func (s Settings) Enabled() bool {
	return s.Token != "" || s.ClientID != "" || s.ClientSecret != "" || s.TokenURL != "" || s.GoogleADC
}

// TokenSource returns the token source described by s, or nil when s is empty.
// ctx is used for token refreshes of the client credentials and Google modes.
func TokenSource(ctx context.Context, s Settings) (oauth2.TokenSource, error) {
	switch {
	case s.Token != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token, TokenType: "Bearer"}), nil

	case s.ClientID != "" || s.ClientSecret != "" || s.TokenURL != "":
		if s.ClientID == "" || s.ClientSecret == "" || s.TokenURL == "" {
			return nil, ErrIncompleteCredentials
		}
		cfg := &clientcredentials.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			TokenURL:     s.TokenURL,
			Scopes:       s.Scopes,
		}
		return cfg.TokenSource(ctx), nil

	case s.GoogleADC:
		src, err := google.DefaultTokenSource(ctx, s.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to load google default credentials: %w", err)
		}
		return src, nil
	}
	return nil, nil
}

// Transport wraps base so every request carries a bearer token from src.
// A nil src returns base unchanged.
func Transport(src oauth2.TokenSource, base http.RoundTripper) http.RoundTripper {
	if src == nil {
		return base
	}
	return &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, src),
		Base:   base,
	}
}
