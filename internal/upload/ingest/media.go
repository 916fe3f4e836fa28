package ingest

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// SaveUpload copies an uploaded stream into the media area in chunks and
// returns the saved path. The caller removes the file once ingestion for it
// reaches a terminal outcome.
func (s *Service) SaveUpload(r io.Reader, fileName string) (string, error) {
	if err := os.MkdirAll(s.MediaDir, 0o755); err != nil {
		return "", fmt.Errorf("creating media dir: %w", err)
	}

	path := filepath.Join(s.MediaDir, filepath.Base(fileName))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(f, r, make([]byte, 1024*1024)); err != nil {
		removeIfExists(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// CleanMedia removes media-area files whose names contain the given name,
// and the scratch directory of that name if one exists. Strategies call it
// on failure so no partial artifacts outlive their member.
func (s *Service) CleanMedia(name string) {
	if name == "" {
		return
	}
	entries, err := os.ReadDir(s.MediaDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), name) {
			continue
		}
		removeIfExists(filepath.Join(s.MediaDir, entry.Name()))
	}
	dir := filepath.Join(s.MediaDir, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[upload] could not remove %s: %v", dir, err)
		}
	}
}
