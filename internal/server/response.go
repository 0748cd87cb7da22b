package server

import (
	"encoding/json"
	"net/http"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/models"
)

// DownloadResponse is the success body of POST /api/download
type DownloadResponse struct {
	Status       string                 `json:"status"`
	MediaURL     string                 `json:"media_url"`
	MediaURLs    []string               `json:"media_urls,omitempty"`
	MediaType    models.Kind            `json:"media_type"`
	ThumbnailURL *string                `json:"thumbnail_url"`
	Platform     string                 `json:"platform"`
	Strategy     string                 `json:"strategy"`
	Metadata     models.OutcomeMetadata `json:"metadata"`
}

// ProbeResponse is the success body of POST /api/probe
type ProbeResponse struct {
	Status       string      `json:"status"`
	Platform     string      `json:"platform"`
	MediaType    models.Kind `json:"media_type"`
	ItemCount    int         `json:"item_count"`
	RequiresAuth bool        `json:"requires_auth"`
}

// ErrorResponse is the body of every failed call
type ErrorResponse struct {
	Status    string                 `json:"status"`
	ErrorType string                 `json:"error_type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
}

type downloadRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status that matches the error type. Errors
// outside the taxonomy become download_failed.
func writeError(w http.ResponseWriter, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Wrap(errs.ErrorTypeDownloadFailed, "An unexpected error occurred", err)
	}
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	writeJSON(w, errs.StatusCode(e.Type), ErrorResponse{
		Status:    "error",
		ErrorType: string(e.Type),
		Message:   e.Message,
		Details:   details,
	})
}
