package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediagrab/pkg/logger"
)

// TempStore manages short-lived working directories under one base dir
type TempStore struct {
	baseDir string
	maxAge  time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	pending map[string]*time.Timer
}

// TempStats summarises what the temp store currently holds
type TempStats struct {
	BaseDir    string  `json:"base_dir"`
	TotalFiles int     `json:"total_files"`
	TotalDirs  int     `json:"total_dirs"`
	TotalBytes int64   `json:"total_size_bytes"`
	TotalMB    float64 `json:"total_size_mb"`
}

// NewTempStore creates baseDir and returns a store whose items expire after maxAge
func NewTempStore(baseDir string, maxAge time.Duration, log logger.Logger) (*TempStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TempStore{
		baseDir: baseDir,
		maxAge:  maxAge,
		logger:  log,
		pending: make(map[string]*time.Timer),
	}, nil
}

// BaseDir returns the root of the temp store
func (s *TempStore) BaseDir() string {
	return s.baseDir
}

// CreateTempDir makes a uniquely named directory {prefix}_{uuid}
func (s *TempStore) CreateTempDir(prefix string) (string, error) {
	if prefix == "" {
		prefix = "media"
	}
	dir := filepath.Join(s.baseDir, fmt.Sprintf("%s_%s", prefix, uuid.NewString()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	s.logger.DebugWithFields("Created temporary directory", map[string]interface{}{
		"path": dir,
	})
	return dir, nil
}

// WithTemporaryFile moves path into a fresh temp dir, calls fn with the
// new location and removes the temp dir afterwards
func (s *TempStore) WithTemporaryFile(path string, fn func(tmpPath string) error) error {
	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]

	dir, err := s.CreateTempDir("scoped_" + stem)
	if err != nil {
		return err
	}
	defer s.remove(dir)

	tmpPath := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, tmpPath); err != nil {
			return fmt.Errorf("failed to move %s into temp storage: %w", path, err)
		}
	}
	return fn(tmpPath)
}

// ScheduleCleanup removes path after delay. A non-positive delay uses the
// store's max age. Rescheduling a path replaces its earlier timer.
func (s *TempStore) ScheduleCleanup(path string, delay time.Duration) {
	if delay <= 0 {
		delay = s.maxAge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[path]; ok {
		t.Stop()
	}
	s.pending[path] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
		s.remove(path)
	})
}

// CleanupOld removes top-level items last modified more than maxAge ago
func (s *TempStore) CleanupOld(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = s.maxAge
	}
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	cleaned := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if s.remove(filepath.Join(s.baseDir, entry.Name())) == nil {
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.InfoWithFields("Cleaned up old temporary items", map[string]interface{}{
			"count": cleaned,
		})
	}
	return cleaned, nil
}

// CleanupAll removes every item in the store and cancels pending timers
func (s *TempStore) CleanupAll() error {
	s.mu.Lock()
	for path, t := range s.pending {
		t.Stop()
		delete(s.pending, path)
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if err := s.remove(filepath.Join(s.baseDir, entry.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartJanitor runs CleanupOld every interval until Stop is called
func (s *TempStore) StartJanitor(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.logger.Warn("Temp storage janitor already running")
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.CleanupOld(s.maxAge); err != nil {
					s.logger.WithError(err).Warn("Temp storage cleanup failed")
				}
			case <-stop:
				return
			}
		}
	}(s.stop, s.done)

	logger.LogComponentStart(s.logger, "temp-janitor", map[string]interface{}{
		"interval": interval,
		"max_age":  s.maxAge,
	})
}

// Stop halts the janitor and waits for it to exit
func (s *TempStore) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	logger.LogComponentStop(s.logger, "temp-janitor", "stopped")
}

// Stats walks the store and reports its size
func (s *TempStore) Stats() TempStats {
	stats := TempStats{BaseDir: s.baseDir}
	filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == s.baseDir {
			return nil
		}
		if info.IsDir() {
			stats.TotalDirs++
		} else {
			stats.TotalFiles++
			stats.TotalBytes += info.Size()
		}
		return nil
	})
	stats.TotalMB = float64(stats.TotalBytes*100/(1024*1024)) / 100
	return stats
}

func (s *TempStore) remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		s.logger.WithError(err).WarnWithFields("Failed to remove temporary item", map[string]interface{}{
			"path": path,
		})
		return err
	}
	return nil
}
