package config

const (
	defaultConfigPath             = "~/.config/ytarchive/config.toml"
	defaultStagingDir             = "~/.local/share/ytarchive/staging"
	defaultStateDir               = "~/.local/share/ytarchive"
	defaultLogDir                 = "~/.local/share/ytarchive/logs"
	defaultStoreDriver            = "sqlite"
	defaultStoreFile              = "ytarchive.db"
	defaultAPIBaseURL             = "https://youtube.googleapis.com/"
	defaultShortsProbeURL         = "https://www.youtube.com/shorts/"
	defaultUploadBaseURL          = "https://youtube.googleapis.com/upload/youtube/v3/"
	defaultReaderAccount          = "reader"
	defaultDailyCap               = 10000
	defaultWaitIntervalSeconds    = 15 * 60
	defaultChunkSizeMiB           = 8
	defaultMaxRetries             = 10
	defaultBackoffCapSeconds      = 64
	defaultClassifyWorkers        = 20
	defaultClassifyRPS            = 10
	defaultSyncRequestTimeout     = 30
	defaultPrivacyStatus          = "private"
	defaultYtDlpBinary            = "yt-dlp"
	defaultYtDlpFormat            = "bestvideo+bestaudio/best"
	defaultFFprobeBinary          = "ffprobe"
	defaultDownloadTimeoutSeconds = 4 * 60 * 60
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Source: Source{
			APIBaseURL:     defaultAPIBaseURL,
			ShortsProbeURL: defaultShortsProbeURL,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Credentials: Credentials{
			ReaderAccount: defaultReaderAccount,
		},
		Quota: Quota{
			DailyCap:            defaultDailyCap,
			WaitIntervalSeconds: defaultWaitIntervalSeconds,
		},
		Transfer: Transfer{
			ChunkSizeMiB:      defaultChunkSizeMiB,
			MaxRetries:        defaultMaxRetries,
			BackoffCapSeconds: defaultBackoffCapSeconds,
		},
		Sync: Sync{
			ClassifyWorkers: defaultClassifyWorkers,
			ClassifyRPS:     defaultClassifyRPS,
			RequestTimeout:  defaultSyncRequestTimeout,
		},
		Upload: Upload{
			PrivacyStatus: defaultPrivacyStatus,
			Embeddable:    true,
			UploadBaseURL: defaultUploadBaseURL,
		},
		Media: Media{
			YtDlpBinary:     defaultYtDlpBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			Format:          defaultYtDlpFormat,
			DownloadTimeout: defaultDownloadTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Archived:       true,
			RunSummary:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
