package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// statusWriter captures the status code and body size
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// requestID tags each request with the caller's X-Request-ID or a new uuid
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// logRequests logs every request and counts it by route pattern
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.deps.Metrics.ObserveHTTP(route, sw.status)
		logger.LogRequest(s.logger.WithContext(r.Context()), r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.WithContext(r.Context()).ErrorWithFields("Handler panicked", map[string]interface{}{
					"panic": fmt.Sprint(rec),
					"path":  r.URL.Path,
				})
				writeError(w, errs.DownloadFailed("An unexpected error occurred"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit refuses clients over the per-IP budget with 429
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, retryAfter := s.deps.Limiter.Allow(ip)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		seconds := int(retryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		s.logger.WarnWithFields("Client rate limited", map[string]interface{}{
			"client": ip,
			"limit":  s.deps.Limiter.Limit(),
		})
		writeError(w, errs.RateLimited(fmt.Sprintf("Rate limit exceeded: %d requests per minute", s.deps.Limiter.Limit())).
			WithDetail("retry_after_seconds", seconds))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
