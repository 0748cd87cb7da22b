package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediagrab/pkg/models"
)

// Manager owns the download directory. Each identifier gets its own
// subdirectory holding its media, thumbnail and metadata sidecar.
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Dir returns the per-identifier directory without creating it
func (m *Manager) Dir(identifier string) string {
	return filepath.Join(m.outputDir, identifier)
}

// EnsureDir creates and returns the per-identifier directory
func (m *Manager) EnsureDir(identifier string) (string, error) {
	dir := m.Dir(identifier)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", identifier, err)
	}
	return dir, nil
}

// FindExisting looks for media already stored for identifier. It returns
// nil when nothing usable is on disk.
func (m *Manager) FindExisting(identifier string) (*models.Outcome, error) {
	matches, err := filepath.Glob(filepath.Join(m.Dir(identifier), "*"+identifier+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", identifier, err)
	}

	var media []string
	var thumb string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		switch {
		case IsThumbnail(path):
			if thumb == "" {
				thumb = path
			}
		case IsMediaFile(path):
			media = append(media, path)
		}
	}
	if len(media) == 0 {
		return nil, nil
	}
	SortMedia(media)

	outcome := &models.Outcome{
		MediaPaths:    media,
		ThumbnailPath: thumb,
		Kind:          InferKind(media),
		Strategy:      models.StrategyCache,
		Metadata: models.OutcomeMetadata{
			Identifier:  identifier,
			RetrievedAt: time.Now().UTC(),
		},
	}
	if len(media) == 1 {
		if info, err := os.Stat(media[0]); err == nil {
			size := info.Size()
			outcome.Metadata.SizeBytes = &size
		}
	}
	outcome.NormalizeThumbnail()
	return outcome, nil
}

// SortMedia orders stored media by their numeric index suffix, falling
// back to name order
func SortMedia(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ii, jj := mediaIndex(paths[i]), mediaIndex(paths[j])
		if ii != jj {
			return ii < jj
		}
		return paths[i] < paths[j]
	})
}

func mediaIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return 0
	}
	n := 0
	for _, r := range base[i+1:] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Save writes r to name inside the identifier directory atomically
func (m *Manager) Save(r io.Reader, identifier, name string) (string, error) {
	dir, err := m.EnsureDir(identifier)
	if err != nil {
		return "", err
	}
	filename := filepath.Join(dir, name)

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return filename, nil
}

// RelativePath returns path relative to the output directory with forward
// slashes, for building download URLs
func (m *Manager) RelativePath(path string) (string, error) {
	rel, err := filepath.Rel(m.outputDir, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", path, m.outputDir)
	}
	return filepath.ToSlash(rel), nil
}

// Writable checks that files can be created in the output directory
func (m *Manager) Writable() error {
	f, err := os.CreateTemp(m.outputDir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("download directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
