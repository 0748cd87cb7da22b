package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
)

// ErrNotFound is returned when no sidecar exists for an identifier
var ErrNotFound = errors.New("metadata not found")

// Store reads and writes sidecars under the download directory
type Store struct {
	downloadDir string
	logger      logger.Logger
}

// Summary is the handful of fields shown in listings
type Summary struct {
	Identifier    string   `json:"identifier"`
	Caption       string   `json:"caption"`
	Hashtags      []string `json:"hashtags"`
	Mentions      []string `json:"mentions"`
	Likes         int64    `json:"likes"`
	CommentsCount int64    `json:"comments_count"`
	Author        string   `json:"author"`
	CollectedAt   string   `json:"collected_at"`
}

// NewStore creates a store rooted at downloadDir
func NewStore(downloadDir string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{downloadDir: downloadDir, logger: log.WithField("component", "metadata")}
}

// Path returns {download_dir}/{id}/{id}_metadata.json
func (s *Store) Path(identifier string) string {
	return filepath.Join(s.downloadDir, identifier, identifier+"_metadata.json")
}

// Save writes the sidecar, replacing any previous one
func (s *Store) Save(identifier string, sc *Sidecar) (string, error) {
	path, err := s.write(identifier, sc)
	if err != nil {
		s.logger.WithError(err).ErrorWithFields("Failed to save metadata", map[string]interface{}{
			"identifier": identifier,
		})
		return "", errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to save metadata", err).
			WithDetail("identifier", identifier)
	}
	return path, nil
}

func (s *Store) write(identifier string, v interface{}) (string, error) {
	path := s.Path(identifier)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename: %w", err)
	}

	s.logger.InfoWithFields("Metadata saved", map[string]interface{}{
		"path":  path,
		"bytes": buf.Len(),
	})
	return path, nil
}

// Load reads the sidecar for identifier
func (s *Store) Load(identifier string) (*Sidecar, error) {
	data, err := s.read(identifier)
	if err != nil {
		return nil, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", identifier, err)
	}
	return &sc, nil
}

func (s *Store) read(identifier string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(identifier))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %s: %w", identifier, err)
	}
	return data, nil
}

// Update merges top-level keys of updates into the stored sidecar.
// Nested objects are replaced, not merged.
func (s *Store) Update(identifier string, updates map[string]interface{}) (string, error) {
	data, err := s.read(identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnWithFields("Cannot update missing metadata", map[string]interface{}{
				"identifier": identifier,
			})
		}
		return "", err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode metadata for %s: %w", identifier, err)
	}
	for k, v := range updates {
		doc[k] = v
	}

	path, err := s.write(identifier, doc)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to save metadata", err).
			WithDetail("identifier", identifier)
	}
	return path, nil
}

// Exists reports whether a sidecar is stored for identifier
func (s *Store) Exists(identifier string) bool {
	_, err := os.Stat(s.Path(identifier))
	return err == nil
}

// Delete removes the sidecar. It reports false when there was none.
func (s *Store) Delete(identifier string) (bool, error) {
	err := os.Remove(s.Path(identifier))
	switch {
	case err == nil:
		s.logger.InfoWithFields("Metadata deleted", map[string]interface{}{"identifier": identifier})
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("delete metadata for %s: %w", identifier, err)
	}
}

// Summary loads the sidecar and returns its key fields
func (s *Store) Summary(identifier string) (*Summary, error) {
	sc, err := s.Load(identifier)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Identifier:    identifier,
		Caption:       sc.Post.Caption,
		Hashtags:      sc.Post.Hashtags,
		Mentions:      sc.Post.Mentions,
		Likes:         sc.Engagement.Likes,
		CommentsCount: sc.Engagement.CommentsCount,
		Author:        sc.Author.Username,
		CollectedAt:   sc.CollectedAt,
	}, nil
}
