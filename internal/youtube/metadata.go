package youtube

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"ytarchive/internal/store"
)

const (
	maxTitleRunes       = 100
	maxDescriptionBytes = 5000
	shortsTitleSuffix   = " #Shorts"
)

// UploadDefaults are the status and language settings applied to every re-upload.
type UploadDefaults struct {
	PrivacyStatus   string
	DefaultLanguage string
	Embeddable      bool
	MadeForKids     bool
}

// Metadata is the snippet text derived from a source record.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
}

// BuildMetadata derives upload text from rec. Text is NFC-normalized, angle brackets
// are removed because the platform rejects them, and lengths are clamped to platform
// limits.
func BuildMetadata(rec store.VideoRecord) Metadata {
	title := sanitize(rec.Title)
	if title == "" {
		title = rec.ID
	}
	if rec.Classification == store.ClassificationShort && !strings.Contains(strings.ToLower(title), "#shorts") {
		title = truncateRunes(title, maxTitleRunes-utf8.RuneCountInString(shortsTitleSuffix)) + shortsTitleSuffix
	}
	title = truncateRunes(title, maxTitleRunes)

	description := describe(rec) + sanitize(rec.Description)
	description = truncateBytes(description, maxDescriptionBytes)

	tags := make([]string, 0, len(rec.Tags))
	for _, tag := range rec.Tags {
		if cleaned := sanitize(tag); cleaned != "" {
			tags = append(tags, cleaned)
		}
	}
	return Metadata{Title: title, Description: description, Tags: tags, CategoryID: rec.CategoryID}
}

func describe(rec store.VideoRecord) string {
	var b strings.Builder
	b.WriteString("####################\n\n")
	switch rec.Classification {
	case store.ClassificationShort:
		b.WriteString("[Short]\n")
	case store.ClassificationLiveArchive:
		b.WriteString("[Live archive or premiere]\n")
		fmt.Fprintf(&b, "Scheduled start: %s\n", formatOptional(rec.ScheduledStart, "[not set]"))
		fmt.Fprintf(&b, "Actual start: %s\n", formatOptional(rec.ActualStart, "[unknown]"))
		fmt.Fprintf(&b, "Actual end: %s\n", formatOptional(rec.ActualEnd, "[unknown]"))
	default:
		b.WriteString("[Video]\n")
	}
	fmt.Fprintf(&b, "Published: %s\n", formatTimestamp(rec.PublishedAt))
	fmt.Fprintf(&b, "Views: %s\n", formatCount(rec.ViewCount, "[hidden]"))
	fmt.Fprintf(&b, "Likes: %s\n", formatCount(rec.LikeCount, "[hidden]"))
	fmt.Fprintf(&b, "Comments: %s\n", formatCount(rec.CommentCount, "[disabled]"))
	fmt.Fprintf(&b, "Statistics as of %s. Archived from the original upload %s.\n", formatTimestamp(rec.SyncedAt), rec.ID)
	b.WriteString("\n####################\n\n\n")
	return b.String()
}

func sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	return strings.TrimSpace(s)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "[unknown]"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func formatOptional(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return formatTimestamp(*t)
}

func formatCount(v *int64, fallback string) string {
	if v == nil {
		return fallback
	}
	digits := fmt.Sprintf("%d", *v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 && digits[i-1] != '-' {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
