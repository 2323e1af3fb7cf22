package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewGoogleTokenSource resolves application default credentials and wraps
// them in a caching token source. Token() refreshes the access token when
// it has expired, so adapters get a valid bearer token before each call.
func NewGoogleTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default credentials: %w", err)
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}
