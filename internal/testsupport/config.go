package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ytarchive/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Source.APIKey = "test"
	cfgVal.Source.ChannelID = "UCtestchannel"
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.Driver = "sqlite"
	cfgVal.Store.Path = filepath.Join(base, "state", "ytarchive.db")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithUploaders registers upload credentials with client secret files created under
// the test directory. Token files default to state_dir/tokens/<name>.json.
func WithUploaders(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			secret := filepath.Join(b.baseDir, "secrets", name+".json")
			if err := os.MkdirAll(filepath.Dir(secret), 0o755); err != nil {
				b.t.Fatalf("mkdir secrets dir: %v", err)
			}
			if err := os.WriteFile(secret, []byte(`{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`), 0o600); err != nil {
				b.t.Fatalf("write client secret: %v", err)
			}
			b.cfg.Credentials.Uploaders = append(b.cfg.Credentials.Uploaders, config.Uploader{
				Name:             name,
				ClientSecretFile: secret,
				TokenFile:        filepath.Join(b.cfg.Paths.StateDir, "tokens", name+".json"),
			})
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default ytarchive external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
