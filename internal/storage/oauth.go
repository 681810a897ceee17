package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// firebaseScopes are the OAuth2 scopes accepted by the Realtime Database REST API.
var firebaseScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// NewServiceAccountClient returns an HTTP client that attaches a Google
// service-account access token to every request. The REST API accepts it in
// place of the legacy auth query token.
func NewServiceAccountClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", credentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, firebaseScopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", credentialsFile, err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}
