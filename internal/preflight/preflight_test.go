package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"ytarchive/internal/store"
	"ytarchive/internal/testsupport"
	"ytarchive/internal/youtube"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadableFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "secret.json")
	if err := os.WriteFile(f, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckReadableFile("secret", f); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckReadableFile("secret", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckReadableFile("secret", ""); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "upload-a.json")
	missing := CheckToken("Token upload-a", "upload-a", path)
	if missing.Passed || missing.Detail != "no token; run 'ytarchive auth upload-a'" {
		t.Fatalf("unexpected result for missing token: %+v", missing)
	}

	if err := youtube.SaveToken(path, &oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if result := CheckToken("t", "upload-a", path); result.Passed {
		t.Fatal("expected failure without refresh token")
	}

	if err := youtube.SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now()}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if result := CheckToken("t", "upload-a", path); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestCheckStore(t *testing.T) {
	if result := CheckStore(context.Background(), fakePinger{}); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckStore(context.Background(), fakePinger{err: errors.New("down")}); result.Passed || result.Detail != "down" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result := CheckStore(context.Background(), nil); result.Passed {
		t.Fatal("expected failure for nil store")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), "api", srv.URL+"/youtube/v3/"); !result.Passed {
		t.Fatalf("expected 404 to count as reachable, got %s", result.Detail)
	}
	if result := CheckEndpoint(context.Background(), "api", srv.URL+"/broken"); result.Passed {
		t.Fatal("expected failure on 502")
	}
	if result := CheckEndpoint(context.Background(), "api", ""); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsEachConcern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploaders("upload-a"), testsupport.WithStubbedBinaries())
	cfg.Source.APIBaseURL = srv.URL + "/youtube/v3/"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, fakePinger{})
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Staging directory", "State directory", "Source channel", "Store", "yt-dlp", "FFprobe", "Client secret upload-a", "Data API"} {
		if r, ok := byName[name]; !ok || !r.Passed {
			t.Fatalf("expected %s to pass, got %+v", name, r)
		}
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Token upload-a" {
		t.Fatalf("expected only the token check to fail, got %+v", failed)
	}
}

func TestAccountsMergesLedgerAndConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploaders("upload-a", "upload-b"))
	ledger := []*store.QuotaAccount{
		{Name: "reader", Role: store.RoleReader, DailyCap: 10000, ConsumedUnits: 12},
		{Name: "upload-a", Role: store.RoleUpload, DailyCap: 10000, ConsumedUnits: 9000},
		{Name: "retired", Role: store.RoleUpload, DailyCap: 10000},
	}

	statuses := Accounts(cfg, ledger)
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %+v", statuses)
	}
	reader := statuses[0]
	if reader.Name != "reader" || !reader.Ready || reader.Remaining != 9988 {
		t.Fatalf("unexpected reader %+v", reader)
	}
	if a := statuses[1]; a.Name != "upload-a" || a.Remaining != 1000 || a.Ready || !a.Provisioned {
		t.Fatalf("unexpected upload-a %+v", a)
	}
	if b := statuses[2]; b.Name != "upload-b" || b.Provisioned || b.Detail != "not provisioned" {
		t.Fatalf("unexpected upload-b %+v", b)
	}
	if orphan := statuses[3]; orphan.Name != "retired" || orphan.Detail == "" {
		t.Fatalf("unexpected orphan %+v", orphan)
	}
}
