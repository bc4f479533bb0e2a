package testsupport

import (
	"context"
	"testing"
	"time"

	"ytarchive/internal/config"
	"ytarchive/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo returns a standard-classified record published at the given offset in days
// from a fixed epoch, so ordering in tests is deterministic.
func NewVideo(id string, day int) store.VideoRecord {
	published := time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	return store.VideoRecord{
		ID:             id,
		Classification: store.ClassificationStandard,
		Title:          "Video " + id,
		Description:    "Description for " + id,
		PublishedAt:    published,
		CategoryID:     "22",
		Tags:           []string{"archive"},
		ThumbnailURL:   "https://i.ytimg.com/vi/" + id + "/maxresdefault.jpg",
	}
}

// MustUpsertVideos stores the given records or fails the test.
func MustUpsertVideos(t testing.TB, st *store.Store, records ...store.VideoRecord) {
	t.Helper()
	if err := st.UpsertVideos(context.Background(), records); err != nil {
		t.Fatalf("UpsertVideos: %v", err)
	}
}

// MustProvision creates quota accounts with the given cap and consumed units.
func MustProvision(t testing.TB, st *store.Store, role store.Role, dailyCap, consumed int, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		if err := st.ProvisionAccount(ctx, store.QuotaAccount{Name: name, Role: role, DailyCap: dailyCap}); err != nil {
			t.Fatalf("ProvisionAccount %s: %v", name, err)
		}
		if consumed > 0 {
			if err := st.ReserveUnits(ctx, name, consumed); err != nil {
				t.Fatalf("ReserveUnits %s: %v", name, err)
			}
		}
	}
}
