package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateQuota(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateSource checks the settings needed to read the source channel. Commands that
// only touch the local store skip it.
func (c *Config) ValidateSource() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.Source.APIKey == "" {
		return fmt.Errorf("source.api_key is required. Set YOUTUBE_API_KEY env var or edit %s (create with 'ytarchive config init')", defaultPath)
	}
	if c.Source.ChannelID == "" {
		return fmt.Errorf("source.channel_id is required. Set YTARCHIVE_SOURCE_CHANNEL_ID env var or edit %s", defaultPath)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path must be set when store.driver is sqlite")
		}
	case "mysql":
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is mysql (or export YTARCHIVE_MYSQL_DSN)")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite or mysql)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateCredentials() error {
	seen := map[string]struct{}{c.Credentials.ReaderAccount: {}}
	for i, u := range c.Credentials.Uploaders {
		if u.Name == "" {
			return fmt.Errorf("credentials.uploaders[%d].name must be set", i)
		}
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("credentials.uploaders[%d].name %q is already in use", i, u.Name)
		}
		seen[u.Name] = struct{}{}
		if u.ClientSecretFile == "" {
			return fmt.Errorf("credentials.uploaders[%d].client_secret_file must be set", i)
		}
	}
	return nil
}

func (c *Config) validateQuota() error {
	if c.Quota.DailyCap <= 0 {
		return errors.New("quota.daily_cap must be positive")
	}
	if c.Quota.WaitIntervalSeconds <= 0 {
		return errors.New("quota.wait_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.ChunkSizeMiB <= 0 {
		return errors.New("transfer.chunk_size_mib must be positive")
	}
	if c.Transfer.MaxRetries <= 0 {
		return errors.New("transfer.max_retries must be positive")
	}
	if c.Transfer.BackoffCapSeconds <= 0 {
		return errors.New("transfer.backoff_cap_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.ClassifyWorkers <= 0 {
		return errors.New("sync.classify_workers must be positive")
	}
	if c.Sync.ClassifyRPS <= 0 {
		return errors.New("sync.classify_rps must be positive")
	}
	if c.Sync.RequestTimeout <= 0 {
		return errors.New("sync.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.PrivacyStatus {
	case "private", "unlisted", "public":
		return nil
	default:
		return fmt.Errorf("upload.privacy_status: unsupported value %q", c.Upload.PrivacyStatus)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if level := strings.TrimSpace(c.Logging.Level); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
		}
	}
	return nil
}
