package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ytarchive/internal/config"
	"ytarchive/internal/credentials"
	"ytarchive/internal/logging"
	"ytarchive/internal/media"
	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/quota"
	"ytarchive/internal/store"
	"ytarchive/internal/transfer"
	"ytarchive/internal/workflow"
	"ytarchive/internal/youtube"
)

// app bundles the collaborators a pipeline command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	ledger   *quota.Ledger
	pool     *credentials.Pool
	machine  *pipeline.Machine
	notifier notifications.Service
	orch     *workflow.Orchestrator
}

// runtimeOptions adjusts wiring per command.
type runtimeOptions struct {
	// progress receives upload progress in addition to the log sink.
	progress func(transfer.Progress)
}

func (c *commandContext) buildRuntime(ctx context.Context, opts runtimeOptions) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}

	ledger := quota.NewLedger(st, logger)
	pool := newPool(cfg, ledger, logger)
	machine := pipeline.New(st, newFetcher(cfg, logger), media.Layout{Root: cfg.Paths.StagingDir}, logger)
	notifier := notifications.NewService(cfg)

	deps := workflow.Deps{
		Store:       st,
		Machine:     machine,
		Pool:        pool,
		NewUploader: uploaderFactory(cfg, logger),
		Notifier:    notifier,
		Logger:      logger,
	}
	if cfg.Source.APIKey != "" {
		syncTimeout := time.Duration(cfg.Sync.RequestTimeout) * time.Second
		catalog, err := youtube.NewCatalog(ctx, youtube.CatalogConfig{
			APIKey:     cfg.Source.APIKey,
			BaseURL:    cfg.Source.APIBaseURL,
			HTTPClient: &http.Client{Timeout: syncTimeout},
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		deps.Catalog = catalog
		deps.Classifier = youtube.NewShortsProbe(cfg.Source.ShortsProbeURL, cfg.Sync.ClassifyRPS, syncTimeout, logger)
	}

	orch, err := workflow.New(deps, workflow.Settings{
		ChannelID:       cfg.Source.ChannelID,
		ClassifyWorkers: cfg.Sync.ClassifyWorkers,
		Transfer: transfer.Options{
			ChunkSize:  cfg.ChunkSize(),
			MaxRetries: cfg.Transfer.MaxRetries,
			BackoffCap: cfg.BackoffCap(),
			Progress:   opts.progress,
		},
	})
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		ledger:   ledger,
		pool:     pool,
		machine:  machine,
		notifier: notifier,
		orch:     orch,
	}, nil
}

// provisionAccounts creates or refreshes a ledger row for every configured account.
func (r *app) provisionAccounts(ctx context.Context) error {
	for _, acct := range r.pool.Accounts(r.cfg.Quota.DailyCap) {
		if err := r.store.ProvisionAccount(ctx, acct); err != nil {
			return err
		}
	}
	r.logger.Debug("quota accounts provisioned",
		logging.Int("uploaders", len(r.cfg.Credentials.Uploaders)),
		logging.Int("daily_cap", r.cfg.Quota.DailyCap),
	)
	return nil
}

func credentialsFromConfig(cfg *config.Config) []credentials.Credential {
	out := make([]credentials.Credential, 0, len(cfg.Credentials.Uploaders))
	for _, up := range cfg.Credentials.Uploaders {
		out = append(out, credentials.Credential{
			Name:             up.Name,
			ClientSecretFile: up.ClientSecretFile,
			TokenFile:        up.TokenFile,
		})
	}
	return out
}

func newPool(cfg *config.Config, ledger *quota.Ledger, logger *slog.Logger) *credentials.Pool {
	return credentials.NewPool(ledger, youtube.Authenticator{}, cfg.Credentials.ReaderAccount, credentialsFromConfig(cfg),
		credentials.WithWaitInterval(cfg.QuotaWaitInterval()),
		credentials.WithLogger(logger),
	)
}

func newFetcher(cfg *config.Config, logger *slog.Logger) *media.Fetcher {
	return media.NewFetcher(
		media.WithYtDlp(cfg.Media.YtDlpBinary),
		media.WithFormat(cfg.Media.Format),
		media.WithFFprobe(cfg.Media.FFprobeBinary),
		media.WithTimeout(cfg.DownloadTimeout()),
		media.WithLogger(logger),
	)
}

func uploaderFactory(cfg *config.Config, logger *slog.Logger) workflow.UploaderFactory {
	clientCfg := youtube.ClientConfig{
		UploadBaseURL: cfg.Upload.UploadBaseURL,
		APIBaseURL:    cfg.Source.APIBaseURL,
		Defaults: youtube.UploadDefaults{
			PrivacyStatus:   cfg.Upload.PrivacyStatus,
			DefaultLanguage: cfg.Upload.DefaultLanguage,
			Embeddable:      cfg.Upload.Embeddable,
			MadeForKids:     cfg.Upload.MadeForKids,
		},
		Logger: logger,
	}
	return func(lease *credentials.Lease) workflow.Uploader {
		return youtube.NewClient(lease.Client, clientCfg)
	}
}
