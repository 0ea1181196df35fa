package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sorairo/tenki/internal/models"
)

const (
	DocumentFile  = "weather.json"
	BuildInfoFile = "build-info.json"
)

// WriteDocument writes the weather document to <dir>/weather.json and returns the path.
func WriteDocument(dir string, doc models.Document) (string, error) {
	path := filepath.Join(dir, DocumentFile)
	if err := writeJSONAtomic(path, doc); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// NewBuildInfo stamps a build at now.
func NewBuildInfo(runID string, now time.Time) models.BuildInfo {
	return models.BuildInfo{
		BuildTime: now.UTC(),
		Timestamp: now.UnixMilli(),
		RunID:     runID,
	}
}

// WriteBuildInfo writes <dir>/build-info.json and returns the path.
func WriteBuildInfo(dir string, info models.BuildInfo) (string, error) {
	path := filepath.Join(dir, BuildInfoFile)
	if err := writeJSONAtomic(path, info); err != nil {
		return "", fmt.Errorf("write build info: %w", err)
	}
	return path, nil
}

// ReadDocument loads a weather document written by WriteDocument.
func ReadDocument(path string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// ReadBuildInfo loads build-info.json.
func ReadBuildInfo(path string) (models.BuildInfo, error) {
	var info models.BuildInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return info, nil
}

// writeJSONAtomic encodes v with 2-space indentation into a temp file in the
// target directory and renames it over path, so readers never see a partial file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
