package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"

	"ytarchive/internal/credentials"
	"ytarchive/internal/services"
)

// UploadScopes are requested for every upload credential.
var UploadScopes = []string{yt.YoutubeUploadScope, yt.YoutubeScope}

// Authenticator turns client secret and token files into authorized HTTP clients.
// Refreshed tokens are written back to the token file.
type Authenticator struct {
	// Endpoint overrides the OAuth2 endpoint from the client secret file.
	Endpoint *oauth2.Endpoint
}

// OAuthConfig loads the OAuth2 client configuration for cred.
func (a Authenticator) OAuthConfig(cred credentials.Credential) (*oauth2.Config, error) {
	data, err := os.ReadFile(cred.ClientSecretFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "read client secret", cred.ClientSecretFile, err)
	}
	cfg, err := google.ConfigFromJSON(data, UploadScopes...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "parse client secret", cred.ClientSecretFile, err)
	}
	if a.Endpoint != nil {
		cfg.Endpoint = *a.Endpoint
	}
	return cfg, nil
}

// Authenticate implements credentials.Authenticator.
func (a Authenticator) Authenticate(ctx context.Context, cred credentials.Credential) (*http.Client, error) {
	cfg, err := a.OAuthConfig(cred)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cred.TokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "auth", "load token",
				fmt.Sprintf("no token for %s; run 'ytarchive auth %s'", cred.Name, cred.Name), err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "auth", "load token", cred.TokenFile, err)
	}
	// The handle outlives the request that created it.
	base := context.WithoutCancel(ctx)
	src := &savingTokenSource{
		base: cfg.TokenSource(base, tok),
		path: cred.TokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(base, oauth2.ReuseTokenSource(tok, src)), nil
}

// LoadToken reads a JSON-encoded token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return os.Rename(tmp, path)
}

type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		_ = SaveToken(s.path, tok)
	}
	return tok, nil
}
