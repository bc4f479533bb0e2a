package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeCredentials(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeMedia()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.ChannelID = strings.TrimSpace(c.Source.ChannelID)
	if c.Source.ChannelID == "" {
		if value, ok := os.LookupEnv("YTARCHIVE_SOURCE_CHANNEL_ID"); ok {
			c.Source.ChannelID = strings.TrimSpace(value)
		}
	}
	c.Source.APIKey = strings.TrimSpace(c.Source.APIKey)
	if c.Source.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.Source.APIKey = strings.TrimSpace(value)
		}
	}
	c.Source.APIBaseURL = withTrailingSlash(c.Source.APIBaseURL, defaultAPIBaseURL)
	c.Source.ShortsProbeURL = withTrailingSlash(c.Source.ShortsProbeURL, defaultShortsProbeURL)
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("YTARCHIVE_MYSQL_DSN"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = filepath.Join(c.Paths.StateDir, defaultStoreFile)
	}
	var err error
	if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCredentials() error {
	c.Credentials.ReaderAccount = strings.TrimSpace(c.Credentials.ReaderAccount)
	if c.Credentials.ReaderAccount == "" {
		c.Credentials.ReaderAccount = defaultReaderAccount
	}
	for i := range c.Credentials.Uploaders {
		u := &c.Credentials.Uploaders[i]
		u.Name = strings.TrimSpace(u.Name)
		var err error
		if u.ClientSecretFile, err = expandPath(strings.TrimSpace(u.ClientSecretFile)); err != nil {
			return fmt.Errorf("credentials.uploaders[%d].client_secret_file: %w", i, err)
		}
		if strings.TrimSpace(u.TokenFile) == "" && u.Name != "" {
			u.TokenFile = filepath.Join(c.Paths.StateDir, "tokens", u.Name+".json")
		}
		if u.TokenFile, err = expandPath(strings.TrimSpace(u.TokenFile)); err != nil {
			return fmt.Errorf("credentials.uploaders[%d].token_file: %w", i, err)
		}
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.PrivacyStatus = strings.ToLower(strings.TrimSpace(c.Upload.PrivacyStatus))
	if c.Upload.PrivacyStatus == "" {
		c.Upload.PrivacyStatus = defaultPrivacyStatus
	}
	c.Upload.DefaultLanguage = strings.TrimSpace(c.Upload.DefaultLanguage)
	c.Upload.UploadBaseURL = withTrailingSlash(c.Upload.UploadBaseURL, defaultUploadBaseURL)
}

func (c *Config) normalizeMedia() {
	c.Media.YtDlpBinary = strings.TrimSpace(c.Media.YtDlpBinary)
	if c.Media.YtDlpBinary == "" {
		c.Media.YtDlpBinary = defaultYtDlpBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.Format = strings.TrimSpace(c.Media.Format)
	if c.Media.Format == "" {
		c.Media.Format = defaultYtDlpFormat
	}
	if c.Media.DownloadTimeout <= 0 {
		c.Media.DownloadTimeout = defaultDownloadTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("YTARCHIVE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func withTrailingSlash(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
