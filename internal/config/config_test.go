package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ytarchive/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "test-key")
	t.Setenv("YTARCHIVE_SOURCE_CHANNEL_ID", "UC123")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "ytarchive", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	wantDB := filepath.Join(tempHome, ".local", "share", "ytarchive", "ytarchive.db")
	if cfg.Store.Path != wantDB {
		t.Fatalf("unexpected store path: got %q want %q", cfg.Store.Path, wantDB)
	}
	if cfg.Source.APIKey != "test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Source.APIKey)
	}
	if cfg.Source.ChannelID != "UC123" {
		t.Fatalf("expected channel from env, got %q", cfg.Source.ChannelID)
	}
	if err := cfg.ValidateSource(); err != nil {
		t.Fatalf("ValidateSource: %v", err)
	}
	if cfg.Quota.DailyCap != 10000 {
		t.Fatalf("unexpected daily cap: %d", cfg.Quota.DailyCap)
	}
	if cfg.QuotaWaitInterval() != 15*time.Minute {
		t.Fatalf("unexpected wait interval: %s", cfg.QuotaWaitInterval())
	}
	if cfg.Transfer.MaxRetries != 10 {
		t.Fatalf("unexpected retry budget: %d", cfg.Transfer.MaxRetries)
	}
	if cfg.ChunkSize() != 8*1024*1024 {
		t.Fatalf("unexpected chunk size: %d", cfg.ChunkSize())
	}
	if cfg.Upload.PrivacyStatus != "private" {
		t.Fatalf("unexpected privacy status: %q", cfg.Upload.PrivacyStatus)
	}
	if !strings.HasSuffix(cfg.Source.APIBaseURL, "/") {
		t.Fatalf("expected api base url with trailing slash, got %q", cfg.Source.APIBaseURL)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestValidateSourceRequiresKeyAndChannel(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("YTARCHIVE_SOURCE_CHANNEL_ID", "")
	t.Setenv("HOME", t.TempDir())

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateSource(); err == nil || !strings.Contains(err.Error(), "source.api_key") {
		t.Fatalf("expected api key error, got %v", err)
	}
	cfg.Source.APIKey = "k"
	if err := cfg.ValidateSource(); err == nil || !strings.Contains(err.Error(), "source.channel_id") {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	configPath := filepath.Join(tempDir, "ytarchive.toml")

	type uploader struct {
		Name             string `toml:"name"`
		ClientSecretFile string `toml:"client_secret_file"`
	}
	type payload struct {
		Source struct {
			ChannelID string `toml:"channel_id"`
			APIKey    string `toml:"api_key"`
		} `toml:"source"`
		Credentials struct {
			Uploaders []uploader `toml:"uploaders"`
		} `toml:"credentials"`
		Quota struct {
			DailyCap int `toml:"daily_cap"`
		} `toml:"quota"`
	}
	custom := payload{}
	custom.Source.ChannelID = "UCabc"
	custom.Source.APIKey = "abc123"
	custom.Credentials.Uploaders = []uploader{{Name: "upload-a", ClientSecretFile: "~/secrets/a.json"}}
	custom.Quota.DailyCap = 5000

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Quota.DailyCap != 5000 {
		t.Fatalf("expected daily cap override, got %d", cfg.Quota.DailyCap)
	}
	up, ok := cfg.Uploader("upload-a")
	if !ok {
		t.Fatal("expected uploader upload-a")
	}
	if up.ClientSecretFile != filepath.Join(tempDir, "secrets", "a.json") {
		t.Fatalf("client secret not expanded: %q", up.ClientSecretFile)
	}
	wantToken := filepath.Join(cfg.Paths.StateDir, "tokens", "upload-a.json")
	if up.TokenFile != wantToken {
		t.Fatalf("unexpected default token file: got %q want %q", up.TokenFile, wantToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"mysql without dsn", func(c *config.Config) { c.Store.Driver = "mysql"; c.Store.DSN = "" }, "store.dsn"},
		{"zero cap", func(c *config.Config) { c.Quota.DailyCap = 0 }, "quota.daily_cap"},
		{"negative retries", func(c *config.Config) { c.Transfer.MaxRetries = -1 }, "transfer.max_retries"},
		{"zero retries", func(c *config.Config) { c.Transfer.MaxRetries = 0 }, "transfer.max_retries"},
		{"bad privacy", func(c *config.Config) { c.Upload.PrivacyStatus = "secret" }, "upload.privacy_status"},
		{"duplicate uploader", func(c *config.Config) {
			c.Credentials.Uploaders = []config.Uploader{
				{Name: "a", ClientSecretFile: "/x"},
				{Name: "a", ClientSecretFile: "/y"},
			}
		}, "already in use"},
		{"uploader shadows reader", func(c *config.Config) {
			c.Credentials.Uploaders = []config.Uploader{{Name: "reader", ClientSecretFile: "/x"}}
		}, "already in use"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Path = "/tmp/ytarchive.db"
			cfg.Credentials.ReaderAccount = "reader"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(target); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
