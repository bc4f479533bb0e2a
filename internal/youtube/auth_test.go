package youtube_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"ytarchive/internal/credentials"
	"ytarchive/internal/services"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/youtube"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "a.json")
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	if err := youtube.SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
	loaded, err := youtube.LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" || !loaded.Expiry.Equal(tok.Expiry) {
		t.Fatalf("unexpected token %+v", loaded)
	}
}

func TestAuthenticateWithoutTokenIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploaders("upload-a"))
	up := cfg.Credentials.Uploaders[0]
	cred := credentials.Credential{Name: up.Name, ClientSecretFile: up.ClientSecretFile, TokenFile: up.TokenFile}

	_, err := youtube.Authenticator{}.Authenticate(context.Background(), cred)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ytarchive auth upload-a") {
		t.Fatalf("expected auth hint, got %v", err)
	}
}

func TestAuthenticateWithTokenBuildsClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploaders("upload-a"))
	up := cfg.Credentials.Uploaders[0]
	if err := youtube.SaveToken(up.TokenFile, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	cred := credentials.Credential{Name: up.Name, ClientSecretFile: up.ClientSecretFile, TokenFile: up.TokenFile}
	client, err := youtube.Authenticator{}.Authenticate(context.Background(), cred)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestOAuthConfigRejectsBadSecret(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.json")
	if err := os.WriteFile(secret, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	_, err := youtube.Authenticator{}.OAuthConfig(credentials.Credential{Name: "a", ClientSecretFile: secret})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
