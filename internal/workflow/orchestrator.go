package workflow

import (
	"context"
	"errors"
	"log/slog"

	"ytarchive/internal/credentials"
	"ytarchive/internal/logging"
	"ytarchive/internal/notifications"
	"ytarchive/internal/pipeline"
	"ytarchive/internal/quota"
	"ytarchive/internal/staging"
	"ytarchive/internal/store"
	"ytarchive/internal/transfer"
	"ytarchive/internal/youtube"
)

// Catalog reads the source channel. Every billed call is charged to meter first.
type Catalog interface {
	ListVideoIDs(ctx context.Context, channelID string, meter quota.Meter) ([]string, error)
	FetchVideos(ctx context.Context, ids []string, meter quota.Meter) ([]youtube.Video, error)
}

// ShortsClassifier decides whether a video is a short.
type ShortsClassifier interface {
	IsShort(ctx context.Context, id string) (bool, error)
}

// Store is the catalog surface of the durable store.
type Store interface {
	UpsertVideos(ctx context.Context, records []store.VideoRecord) error
	KnownIDs(ctx context.Context, ids []string) (map[string]store.Classification, error)
}

// StateMachine drives per-video lifecycle transitions.
type StateMachine interface {
	Download(ctx context.Context, rec store.VideoRecord) (pipeline.LocalFiles, error)
	LocalFiles(id string) (pipeline.LocalFiles, error)
	MarkPushed(ctx context.Context, id, remoteID string) error
	Cleanup(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*store.VideoRecord, error)
	NextPending(ctx context.Context, limit int) ([]*store.VideoRecord, error)
	NextDownloadedUnpushed(ctx context.Context) ([]*store.VideoRecord, error)
	PushedWithLocalFiles(ctx context.Context) ([]*store.VideoRecord, error)
	SweepOrphans(ctx context.Context) (staging.CleanupResult, error)
}

// UploaderPool hands out quota-checked upload handles and meters the reader.
type UploaderPool interface {
	SelectUploader(ctx context.Context, cost int) (*credentials.Lease, error)
	ReaderAccount() string
	ReaderMeter() quota.Meter
}

// Uploader performs write calls through one leased account.
type Uploader interface {
	OpenVideoInsert(ctx context.Context, rec store.VideoRecord, payload transfer.Payload) (transfer.Session, error)
	OpenThumbnailSet(ctx context.Context, remoteID string, payload transfer.Payload) (transfer.Session, error)
	RemoteID(body []byte) (string, error)
	UpdateMetadata(ctx context.Context, remoteID string, rec store.VideoRecord) error
}

// UploaderFactory binds an Uploader to a lease.
type UploaderFactory func(lease *credentials.Lease) Uploader

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store       Store
	Machine     StateMachine
	Catalog     Catalog
	Classifier  ShortsClassifier
	Pool        UploaderPool
	NewUploader UploaderFactory
	Notifier    notifications.Service
	Logger      *slog.Logger
}

// Settings tune an Orchestrator.
type Settings struct {
	ChannelID       string
	ClassifyWorkers int
	Transfer        transfer.Options
}

// Orchestrator runs sync, recovery and main passes over the archive.
type Orchestrator struct {
	store       Store
	machine     StateMachine
	catalog     Catalog
	classifier  ShortsClassifier
	pool        UploaderPool
	newUploader UploaderFactory
	notifier    notifications.Service
	logger      *slog.Logger
	settings    Settings
}

// New validates deps and builds an Orchestrator. Catalog, Classifier and Store are
// only needed for sync; Pool and NewUploader only for uploads.
func New(deps Deps, settings Settings) (*Orchestrator, error) {
	if deps.Machine == nil {
		return nil, errors.New("workflow: state machine required")
	}
	if settings.ClassifyWorkers <= 0 {
		settings.ClassifyWorkers = 1
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	logger := logging.NewComponentLogger(deps.Logger, "orchestrator")
	if settings.Transfer.Logger == nil {
		settings.Transfer.Logger = logger
	}
	return &Orchestrator{
		store:       deps.Store,
		machine:     deps.Machine,
		catalog:     deps.Catalog,
		classifier:  deps.Classifier,
		pool:        deps.Pool,
		newUploader: deps.NewUploader,
		notifier:    notifier,
		logger:      logger,
		settings:    settings,
	}, nil
}

func (o *Orchestrator) canSync() error {
	if o.catalog == nil || o.classifier == nil || o.store == nil || o.pool == nil {
		return errors.New("workflow: sync requires catalog, classifier, store and pool")
	}
	if o.settings.ChannelID == "" {
		return errors.New("workflow: sync requires a channel id")
	}
	return nil
}

func (o *Orchestrator) canUpload() error {
	if o.pool == nil || o.newUploader == nil {
		return errors.New("workflow: upload requires an uploader pool and factory")
	}
	return nil
}
