package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/models"
	"mediagrab/pkg/platform"
	"mediagrab/pkg/router"
)

const capabilitiesNote = "Photo and full carousel support require Instagram credentials (.env, config file or `mediagrab auth login`)"

// maxBodyBytes bounds the JSON request bodies
const maxBodyBytes = 64 << 10

func (s *Server) decodeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req downloadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, errs.InvalidURL("Request body must be JSON with a url field").
			WithDetail("error", err.Error()))
		return "", false
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, errs.InvalidURL("url is required"))
		return "", false
	}
	return req.URL, true
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rawURL, ok := s.decodeURL(w, r)
	if !ok {
		return
	}
	log := s.logger.WithContext(r.Context())

	out, err := s.deps.Registry.Dispatch(r.Context(), rawURL)
	if err != nil {
		log.WithError(err).WarnWithFields("Download failed", map[string]interface{}{
			"url":        rawURL,
			"error_type": string(errs.TypeOf(err)),
		})
		writeError(w, err)
		return
	}

	resp, err := s.downloadResponse(out)
	if err != nil {
		log.WithError(err).Error("Failed to build media URLs")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// downloadResponse turns file paths into URLs under /downloads/
func (s *Server) downloadResponse(out *models.Outcome) (*DownloadResponse, error) {
	urls := make([]string, 0, len(out.MediaPaths))
	for _, p := range out.MediaPaths {
		u, err := s.fileURL(p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, errs.DownloadFailed("Download produced no media files")
	}

	resp := &DownloadResponse{
		Status:    "success",
		MediaURL:  urls[0],
		MediaType: out.Kind,
		Platform:  out.Platform,
		Strategy:  out.Strategy,
		Metadata:  out.Metadata,
	}
	if len(urls) > 1 {
		resp.MediaURLs = urls
	}
	if out.ThumbnailPath != "" {
		u, err := s.fileURL(out.ThumbnailPath)
		if err != nil {
			return nil, err
		}
		resp.ThumbnailURL = &u
	}
	return resp, nil
}

func (s *Server) fileURL(p string) (string, error) {
	rel, err := s.deps.Store.RelativePath(p)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeDownloadFailed, "Downloaded file is outside the download directory", err)
	}
	return path.Join("/downloads", rel), nil
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	rawURL, ok := s.decodeURL(w, r)
	if !ok {
		return
	}

	p := s.deps.Registry.Detect(rawURL)
	if p == nil {
		writeError(w, platform.Unsupported(rawURL))
		return
	}
	res, err := p.Probe(r.Context(), rawURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:       "success",
		Platform:     p.Name(),
		MediaType:    res.Kind,
		ItemCount:    res.ItemCount,
		RequiresAuth: res.RequiresAuth,
	})
}

type healthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Checks    map[string]bool `json:"checks"`
}

// handleHealth answers 503 when any check fails so load balancers can act on it
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"download_dir_writable":  s.deps.Store != nil && s.deps.Store.Writable() == nil,
		"downloader_initialized": s.deps.Registry != nil && len(s.deps.Registry.Platforms()) > 0,
	}

	status, code := "healthy", http.StatusOK
	for _, ok := range checks {
		if !ok {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, healthResponse{
		Status:    status,
		Version:   s.opts.Version,
		Timestamp: s.now().UTC(),
		Checks:    checks,
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	var caps router.Capabilities
	if s.deps.Capabilities != nil {
		caps = s.deps.Capabilities.Capabilities()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capabilities": caps,
		"note":         capabilitiesNote,
	})
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"platforms": s.deps.Registry.Platforms(),
	})
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	stats := accounts.Stats{Accounts: []accounts.AccountStats{}}
	if s.deps.Pool != nil {
		stats = s.deps.Pool.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

// fileServer serves downloaded media without directory listings
func (s *Server) fileServer() http.Handler {
	fs := http.StripPrefix("/downloads/", http.FileServer(noListing{http.Dir(s.deps.Store.GetOutputDir())}))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// noListing hides directories behind 404s
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
