package graph

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// graphScope requests the application permissions granted to the app
// registration, rather than delegated user scopes.
const graphScope = "https://graph.microsoft.com/.default"

// Credentials hold the Azure AD application registration used for the
// OAuth2 client-credentials flow.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// TokenURL overrides the token endpoint, mainly for tests. When
	// empty, the standard login.microsoftonline.com endpoint for the
	// tenant is used.
	TokenURL string
}

// tokenURL returns the OAuth2 token endpoint for the tenant.
func (c Credentials) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		c.TenantID,
	)
}

// HTTPClient exchanges the credentials for a bearer token and returns
// an http.Client whose transport injects and refreshes it. The first
// exchange happens eagerly so an authentication failure surfaces before
// any Graph call is attempted; there is no retry at this layer.
func (c Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.tokenURL(),
		Scopes:       []string{graphScope},
	}

	if _, err := cfg.Token(ctx); err != nil {
		return nil, fmt.Errorf("acquiring access token: %w", err)
	}

	return cfg.Client(ctx), nil
}
