package uploader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"sqlancer/internal/config"
)

func TestObjectPrefix(t *testing.T) {
	cases := map[string]string{
		"":             "case_0001/",
		"runs":         "runs/case_0001/",
		"/runs/night/": "runs/night/case_0001/",
	}
	for prefix, want := range cases {
		if got := objectPrefix(prefix, "/tmp/reports/case_0001"); got != want {
			t.Fatalf("prefix %q: expected %s, got %s", prefix, want, got)
		}
	}
}

func TestWalkFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"case.sql", "summary.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "min"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var keys []string
	err := walkFiles(dir, "p/", func(path, key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(keys)
	if strings.Join(keys, ",") != "p/case.sql,p/summary.json" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestNewWithoutStorageIsNoop(t *testing.T) {
	u, err := New(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.Enabled() {
		t.Fatalf("expected disabled uploader")
	}
	loc, err := u.UploadDir(context.Background(), t.TempDir())
	if err != nil || loc != "" {
		t.Fatalf("expected no-op upload, got %q %v", loc, err)
	}
}
