// Package ingest loads registry datasets: a yaml manifest naming parquet
// patient/condition files and a JSON trial corpus.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest names the dataset files of one load. Relative paths are resolved
// against the manifest's own directory. Empty entries skip that dataset.
type Manifest struct {
	Patients   string `yaml:"patients"`
	Conditions string `yaml:"conditions"`
	Trials     string `yaml:"trials"`
}

func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Patients == "" && manifest.Conditions == "" && manifest.Trials == "" {
		return Manifest{}, fmt.Errorf("manifest %s lists no datasets", path)
	}

	base := filepath.Dir(path)
	manifest.Patients = resolvePath(base, manifest.Patients)
	manifest.Conditions = resolvePath(base, manifest.Conditions)
	manifest.Trials = resolvePath(base, manifest.Trials)
	return manifest, nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
