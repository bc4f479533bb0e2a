package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Source describes the channel being archived and the read-only API access used to list it.
type Source struct {
	ChannelID      string `toml:"channel_id"`
	APIKey         string `toml:"api_key"`
	APIBaseURL     string `toml:"api_base_url"`
	ShortsProbeURL string `toml:"shorts_probe_url"`
}

// Store selects the durable store backend.
type Store struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// Uploader names one destination credential. The name doubles as its quota account.
type Uploader struct {
	Name             string `toml:"name"`
	ClientSecretFile string `toml:"client_secret_file"`
	TokenFile        string `toml:"token_file"`
}

// Credentials lists the reading account and the upload credentials.
type Credentials struct {
	ReaderAccount string     `toml:"reader_account"`
	Uploaders     []Uploader `toml:"uploaders"`
}

// Quota contains per-account usage limits.
type Quota struct {
	DailyCap            int `toml:"daily_cap"`
	WaitIntervalSeconds int `toml:"wait_interval_seconds"`
}

// Transfer tunes the resumable upload driver.
type Transfer struct {
	ChunkSizeMiB      int `toml:"chunk_size_mib"`
	MaxRetries        int `toml:"max_retries"`
	BackoffCapSeconds int `toml:"backoff_cap_seconds"`
}

// Sync contains catalog synchronization settings.
type Sync struct {
	ClassifyWorkers int     `toml:"classify_workers"`
	ClassifyRPS     float64 `toml:"classify_rps"`
	RequestTimeout  int     `toml:"request_timeout"`
}

// Upload contains the metadata defaults applied to re-uploaded videos.
type Upload struct {
	PrivacyStatus   string `toml:"privacy_status"`
	DefaultLanguage string `toml:"default_language"`
	Embeddable      bool   `toml:"embeddable"`
	MadeForKids     bool   `toml:"made_for_kids"`
	UploadBaseURL   string `toml:"upload_base_url"`
}

// Media configures the download and verification tools.
type Media struct {
	YtDlpBinary     string `toml:"ytdlp_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	Format          string `toml:"format"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Archived       bool   `toml:"archived"`
	RunSummary     bool   `toml:"run_summary"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ytarchive.
//
// Configuration sections by subsystem:
//   - Paths: staging, state, and log directories
//   - Source: the channel being archived and its API key
//   - Store: SQLite file or MySQL DSN
//   - Credentials: reader account and upload credentials
//   - Quota: daily caps and the capacity wait interval
//   - Transfer: chunk size and retry budget for resumable uploads
//   - Sync: classification concurrency and pacing
//   - Upload: privacy and metadata defaults for re-uploads
//   - Media: yt-dlp invocation
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Store         Store         `toml:"store"`
	Credentials   Credentials   `toml:"credentials"`
	Quota         Quota         `toml:"quota"`
	Transfer      Transfer      `toml:"transfer"`
	Sync          Sync          `toml:"sync"`
	Upload        Upload        `toml:"upload"`
	Media         Media         `toml:"media"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytarchive.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file used by pipeline runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "ytarchive.lock")
}

// LogPath returns the run log file, or empty when file logging is disabled.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "ytarchive.log")
}

// QuotaWaitInterval is how long the credential pool sleeps when no uploader has capacity.
func (c *Config) QuotaWaitInterval() time.Duration {
	return time.Duration(c.Quota.WaitIntervalSeconds) * time.Second
}

// ChunkSize returns the resumable upload chunk size in bytes.
func (c *Config) ChunkSize() int64 {
	return int64(c.Transfer.ChunkSizeMiB) * 1024 * 1024
}

// BackoffCap returns the upper bound for a single retry sleep.
func (c *Config) BackoffCap() time.Duration {
	return time.Duration(c.Transfer.BackoffCapSeconds) * time.Second
}

// DownloadTimeout bounds a single yt-dlp invocation.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Media.DownloadTimeout) * time.Second
}

// Uploader returns the named upload credential.
func (c *Config) Uploader(name string) (Uploader, bool) {
	name = strings.TrimSpace(name)
	for _, u := range c.Credentials.Uploaders {
		if u.Name == name {
			return u, true
		}
	}
	return Uploader{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
