package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/listing-report/internal/models"
	"github.com/maltedev/listing-report/internal/report"
	"github.com/maltedev/listing-report/internal/runs"
	"github.com/maltedev/listing-report/internal/scrape"
	"github.com/maltedev/listing-report/internal/sites"
)

// Registry names behind the legacy endpoints.
const (
	LegacyPhones    = "phones"
	LegacyNotebooks = "notebooks"
)

const customRegistry = "custom"

type Handlers struct {
	runner   *runs.Runner
	registry *sites.Registry
	history  runs.Store
	adhoc    AdhocOptions
	guard    *hostGuard
	logger   *slog.Logger
}

func NewHandlers(runner *runs.Runner, registry *sites.Registry, history runs.Store, adhoc AdhocOptions, logger *slog.Logger) *Handlers {
	if history == nil {
		history = runs.NopStore{}
	}
	if adhoc.MaxBodyBytes <= 0 {
		adhoc.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handlers{
		runner:   runner,
		registry: registry,
		history:  history,
		adhoc:    adhoc,
		guard:    newHostGuard(adhoc),
		logger:   logger.With("component", "api"),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"source,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

// RegistryInfo describes one named registry.
type RegistryInfo struct {
	Name    string   `json:"name"`
	Sources []string `json:"sources"`
}

// ScrapeRequest carries an ad-hoc list of sites.
type ScrapeRequest struct {
	Sites []models.SiteConfig `json:"sites"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ListRegistries(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	infos := make([]RegistryInfo, 0, len(names))
	for _, name := range names {
		cfgs, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		info := RegistryInfo{Name: name, Sources: make([]string, len(cfgs))}
		for i, cfg := range cfgs {
			info.Sources[i] = cfg.SourceID
		}
		infos = append(infos, info)
	}
	h.respondJSON(w, http.StatusOK, infos)
}

// ScrapeRegistry runs the registry named in the URL and streams back the
// workbook.
func (h *Handlers) ScrapeRegistry(w http.ResponseWriter, r *http.Request) {
	h.scrapeNamed(w, r, chi.URLParam(r, "registry"))
}

// ScrapeNamed serves a fixed registry, used by the legacy routes.
func (h *Handlers) ScrapeNamed(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.scrapeNamed(w, r, name)
	}
}

func (h *Handlers) scrapeNamed(w http.ResponseWriter, r *http.Request, name string) {
	cfgs, err := h.registry.Get(name)
	if err != nil {
		h.respondError(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	h.run(w, r, name, cfgs)
}

// ScrapeSites runs the sites posted in the request body. Every page the
// run loads, detail pages included, must pass the host guard.
func (h *Handlers) ScrapeSites(w http.ResponseWriter, r *http.Request) {
	if !h.adhoc.Enabled {
		h.respondError(w, http.StatusForbidden, ErrorResponse{Error: "ad-hoc scraping is disabled"})
		return
	}

	var req ScrapeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.adhoc.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		h.respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := sites.ValidateSites(req.Sites); err != nil {
		h.respondError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	for _, cfg := range req.Sites {
		if err := h.guard.Check(r.Context(), cfg.EntryURL); err != nil {
			h.logger.Warn("rejected ad-hoc site", "source", cfg.SourceID, "url", cfg.EntryURL, "error", err)
			h.respondError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Source: cfg.SourceID})
			return
		}
	}

	ctx := scrape.WithURLGuard(r.Context(), h.guard.Check)
	h.run(w, r.WithContext(ctx), customRegistry, req.Sites)
}

func (h *Handlers) run(w http.ResponseWriter, r *http.Request, name string, cfgs []models.SiteConfig) {
	data, run, err := h.runner.Run(r.Context(), name, cfgs)
	if err != nil {
		h.respondRunError(w, run, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Run-ID", run.ID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write report", "run_id", run.ID, "error", err)
	}
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.history.List(r.Context(), limit)
	if errors.Is(err, runs.ErrHistoryDisabled) {
		h.respondError(w, http.StatusNotImplemented, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.respondError(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs"})
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) respondRunError(w http.ResponseWriter, run *runs.Run, err error) {
	resp := ErrorResponse{
		Error:  err.Error(),
		Kind:   scrape.Kind(err),
		Source: scrape.FailedSource(err),
	}
	if run != nil {
		resp.RunID = run.ID.String()
	}
	h.respondError(w, statusFor(err), resp)
}

// statusFor maps a failed run onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scrape.ErrNoSources), errors.Is(err, scrape.ErrDuplicateSource):
		return http.StatusBadRequest
	}

	switch scrape.Kind(err) {
	case scrape.KindTimeout:
		return http.StatusGatewayTimeout
	case scrape.KindCanceled:
		return http.StatusServiceUnavailable
	case scrape.KindNavigation, scrape.KindEvaluation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, resp ErrorResponse) {
	h.respondJSON(w, status, resp)
}
