package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/maltedev/outlet-scraper/internal/scraper"
)

const (
	CodeBadRequest       = "bad_request"
	CodeUnknownExtractor = "unknown_extractor"
	CodeEmptyBody        = "empty_body"
	CodeTooLarge         = "payload_too_large"
	CodeUndecodable      = "undecodable"
	CodeInternal         = "internal"
)

type Handlers struct {
	scraper      *scraper.Service
	maxBodyBytes int64
	logger       *slog.Logger
	now          func() time.Time
}

func NewHandlers(svc *scraper.Service, maxBodyBytes int64, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:      svc,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "api"),
		now:          time.Now,
	}
}

// ExtractResponse carries the records of one extract call.
type ExtractResponse struct {
	RunID   string          `json:"run_id"`
	Charset string          `json:"charset"`
	Source  charset.Source  `json:"source"`
	Records []models.Record `json:"records"`
}

// Extract runs an extractor over the raw request body. The optional path
// query parameter is used as the archive path hint.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("extractor")
	if name == "" {
		h.respondError(w, r, http.StatusBadRequest, CodeBadRequest, "extractor is required")
		return
	}

	persist := false
	if v := r.URL.Query().Get("persist"); v != "" {
		var err error
		if persist, err = strconv.ParseBool(v); err != nil {
			h.respondError(w, r, http.StatusBadRequest, CodeBadRequest, "persist must be a boolean")
			return
		}
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large")
			return
		}
		h.respondError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to read request body")
		return
	}

	result, err := h.scraper.Extract(r.Context(), scraper.ExtractRequest{
		Raw:       raw,
		PathHint:  r.URL.Query().Get("path"),
		Extractor: name,
		Persist:   persist,
	})
	switch {
	case errors.Is(err, scraper.ErrUnknownExtractor):
		h.respondError(w, r, http.StatusBadRequest, CodeUnknownExtractor, err.Error())
		return
	case errors.Is(err, charset.ErrEmptyInput):
		h.respondError(w, r, http.StatusBadRequest, CodeEmptyBody, "request body is empty")
		return
	case errors.Is(err, charset.ErrDecode):
		h.respondError(w, r, http.StatusUnprocessableEntity, CodeUndecodable, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to extract", "error", err, "extractor", name)
		h.respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to extract records")
		return
	}

	resp := ExtractResponse{
		RunID:   result.Run.ID,
		Records: result.Records,
	}
	if result.Encoding != nil {
		resp.Charset = result.Encoding.Charset
		resp.Source = result.Encoding.Source
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Extractors lists the registered extractor names.
func (h *Handlers) Extractors(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{
		"extractors": h.scraper.Extractors(),
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.respondJSON(w, status, models.Error{
		Code:    code,
		Message: message,
		Time:    h.now(),
		URL:     r.URL.Path,
	})
}
