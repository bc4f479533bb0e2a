package store

import "time"

// Classification is the content category assigned to a video once, at ingestion.
type Classification string

const (
	ClassificationShort       Classification = "short"
	ClassificationLiveArchive Classification = "liveArchive"
	ClassificationStandard    Classification = "standard"
)

// Classify derives a classification from ingestion signals. Shorts take
// precedence over live archives.
func Classify(isShort, hasLiveDetails bool) Classification {
	switch {
	case isShort:
		return ClassificationShort
	case hasLiveDetails:
		return ClassificationLiveArchive
	default:
		return ClassificationStandard
	}
}

// Valid reports whether the classification is one of the known values.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationShort, ClassificationLiveArchive, ClassificationStandard:
		return true
	default:
		return false
	}
}

// VideoRecord is one source video together with its pipeline flags.
type VideoRecord struct {
	ID              string
	Classification  Classification
	Title           string
	Description     string
	PublishedAt     time.Time
	ScheduledStart  *time.Time
	ActualStart     *time.Time
	ActualEnd       *time.Time
	CategoryID      string
	Tags            []string
	ThumbnailURL    string
	ViewCount       *int64
	LikeCount       *int64
	CommentCount    *int64
	Downloaded      bool
	Pushed          bool
	UploadedVideoID string
	SyncedAt        time.Time
	UpdatedAt       time.Time
}

// Role distinguishes the catalog-reading account from upload accounts.
type Role string

const (
	RoleReader Role = "reader"
	RoleUpload Role = "upload"
)

// QuotaAccount tracks consumed cost units for one credential.
type QuotaAccount struct {
	Name          string
	Role          Role
	CredentialRef string
	ConsumedUnits int
	DailyCap      int
	UpdatedAt     time.Time
}

// Remaining returns the units still available today.
func (a QuotaAccount) Remaining() int {
	if a.ConsumedUnits >= a.DailyCap {
		return 0
	}
	return a.DailyCap - a.ConsumedUnits
}

// Stats summarizes the video table for status reporting.
type Stats struct {
	Total            int
	Pending          int
	Downloaded       int
	Pushed           int
	AwaitingCleanup  int
	ByClassification map[Classification]int
}
