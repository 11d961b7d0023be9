package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	content := "patients: patients.parquet\nconditions: data/conditions.parquet\ntrials: trials.json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if manifest.Patients != filepath.Join(dir, "patients.parquet") {
		t.Fatalf("unexpected patients path: %q", manifest.Patients)
	}
	if manifest.Conditions != filepath.Join(dir, "data", "conditions.parquet") {
		t.Fatalf("unexpected conditions path: %q", manifest.Conditions)
	}
	if manifest.Trials != filepath.Join(dir, "trials.json") {
		t.Fatalf("unexpected trials path: %q", manifest.Trials)
	}
}

func TestLoadManifestKeepsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	content := "trials: /srv/data/trials.json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if manifest.Trials != "/srv/data/trials.json" {
		t.Fatalf("expected absolute path preserved, got %q", manifest.Trials)
	}
	if manifest.Patients != "" {
		t.Fatalf("expected empty patients entry, got %q", manifest.Patients)
	}
}

func TestLoadManifestRejectsEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for manifest without datasets")
	}
}
