package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/maltedev/fixprice-scraper/internal/database"
	"github.com/maltedev/fixprice-scraper/internal/jobs"
	"github.com/maltedev/fixprice-scraper/internal/models"
	"github.com/maltedev/fixprice-scraper/internal/parser"
)

const maxBodyBytes = 10 << 20

// RecordLookup finds a stored record by its key: the RPC, or the URL for
// records without one.
type RecordLookup interface {
	Get(ctx context.Context, key string) (*models.ProductRecord, error)
}

type Handlers struct {
	parser  parser.Parser
	jobs    *jobs.Manager
	records RecordLookup
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandlers wires the API. records may be nil when no database sink is
// configured; the records endpoint then answers 503.
func NewHandlers(p parser.Parser, jobs *jobs.Manager, records RecordLookup, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		parser:  p,
		jobs:    jobs,
		records: records,
		logger:  logger.With("component", "api"),
		now:     time.Now,
	}
}

// Health reports liveness and a job summary.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"jobs":   h.jobs.GetStats(),
	})
}

// ParseListing extracts detail links and the next page from a posted
// listing page. The page URL comes from the url query parameter.
func (h *Handlers) ParseListing(w http.ResponseWriter, r *http.Request) {
	pageURL, doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	listing, err := h.parser.ParseListing(doc, pageURL)
	if err != nil {
		resp := map[string]interface{}{"error": err.Error()}
		if listing != nil {
			resp["listing"] = listing
		}
		h.respondJSON(w, statusFor(err), resp)
		return
	}

	h.respondJSON(w, http.StatusOK, listing)
}

// ParseDetail turns a posted product page into a record.
func (h *Handlers) ParseDetail(w http.ResponseWriter, r *http.Request) {
	pageURL, doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	record, err := h.parser.ParseDetail(doc, pageURL, h.now())
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// CreateCrawlResponse represents the job creation response
type CreateCrawlResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateCrawl starts a background crawl job
func (h *Handlers) CreateCrawl(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.CatalogURLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "catalog_urls is required")
		return
	}
	for _, raw := range req.CatalogURLs {
		if !isAbsoluteURL(raw) {
			h.respondError(w, http.StatusBadRequest, "invalid catalog URL: "+raw)
			return
		}
	}

	job, err := h.jobs.CreateJob(req)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateCrawlResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Crawl started",
	})
}

// GetJob handles job status retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// GetJobRecords returns the records a job has captured so far.
func (h *Handlers) GetJobRecords(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	records, err := h.jobs.GetJobRecords(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, records)
}

// GetRecord returns a record persisted by the database sink.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		h.respondError(w, http.StatusServiceUnavailable, "record storage is not configured")
		return
	}

	key := chi.URLParam(r, "key")
	record, err := h.records.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			h.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		h.logger.Error("failed to get record", "key", key, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get record")
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

func (h *Handlers) readDocument(w http.ResponseWriter, r *http.Request) (string, *goquery.Document, bool) {
	pageURL := r.URL.Query().Get("url")
	if !isAbsoluteURL(pageURL) {
		h.respondError(w, http.StatusBadRequest, "url query parameter must be an absolute URL")
		return "", nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read body")
		return "", nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.respondError(w, http.StatusBadRequest, "request body must contain HTML")
		return "", nil, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid HTML")
		return "", nil, false
	}

	return pageURL, doc, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, parser.ErrMalformedURL),
		errors.Is(err, parser.ErrMissingRequiredField),
		errors.Is(err, parser.ErrComputation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
