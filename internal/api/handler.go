package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/konsi/campaign-filter/internal/bus"
	"github.com/konsi/campaign-filter/internal/campaign"
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/pipeline"
	"github.com/konsi/campaign-filter/internal/repository"
	"github.com/konsi/campaign-filter/internal/strategy"
	"github.com/konsi/campaign-filter/internal/tabular"
)

// PreviewRows is the number of rows returned by POST /campaigns/preview.
const PreviewRows = 50

// DefaultMaxUploadBytes bounds a multipart upload when none is configured.
const DefaultMaxUploadBytes = 256 << 20

var errBadRequest = errors.New("bad request")

// invalidator is implemented by rule sources that cache.
type invalidator interface {
	Invalidate(ctx context.Context, agreement, campaign string) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	rules     domain.RuleSource
	cache     domain.Cache
	bus       domain.EventBus
	assembler *campaign.Assembler
	processor *pipeline.Processor
	version   string
	maxUpload int64
}

// NewHandler creates a new API handler. rules serves saved exclusion rules
// to runs and may cache in front of repo. repo, cache and bus may be nil.
func NewHandler(repo domain.Repository, rules domain.RuleSource, cache domain.Cache, eventBus domain.EventBus, processor *pipeline.Processor, version string) *Handler {
	return &Handler{
		repo:      repo,
		rules:     rules,
		cache:     cache,
		bus:       eventBus,
		assembler: campaign.NewAssembler(rules),
		processor: processor,
		version:   version,
		maxUpload: DefaultMaxUploadBytes,
	}
}

// WithMaxUpload bounds the size of processing requests.
func (h *Handler) WithMaxUpload(n int64) *Handler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

// WithClock replaces the clock used for age cutoffs and campaign labels.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.assembler.WithClock(now)
	h.processor.WithClock(now)
	return h
}

// Process handles POST /campaigns/process. The response is the campaign
// export as a CSV attachment.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	run, result, cfg, err := h.execute(r)
	w.Header().Set(RunIDHeader, run.ID)
	if err != nil {
		writeProcessingError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := tabular.Write(&buf, result.Table); err != nil {
		writeProcessingError(w, err)
		return
	}

	name := tabular.FileName(cfg.Agreement, cfg.Campaign)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// PreviewResponse is the response of POST /campaigns/preview.
type PreviewResponse struct {
	RunID           string     `json:"runId"`
	Label           string     `json:"label"`
	Rows            int        `json:"rows"`
	InputRows       int        `json:"inputRows"`
	ConvaiRows      int        `json:"convaiRows"`
	TotalCommission float64    `json:"totalCommission"`
	Columns         []string   `json:"columns"`
	Preview         [][]string `json:"preview"`
}

// Preview handles POST /campaigns/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	run, result, _, err := h.execute(r)
	w.Header().Set(RunIDHeader, run.ID)
	if err != nil {
		writeProcessingError(w, err)
		return
	}

	rows := result.Table.Rows
	writeJSON(w, http.StatusOK, PreviewResponse{
		RunID:           run.ID,
		Label:           result.Label,
		Rows:            result.OutputRows,
		InputRows:       result.InputRows,
		ConvaiRows:      result.ConvaiRows,
		TotalCommission: result.TotalCommission,
		Columns:         result.Table.Columns,
		Preview:         rows[:min(len(rows), PreviewRows)],
	})
}

// execute runs one campaign from a multipart request and publishes its
// summary. The returned run is never nil.
func (h *Handler) execute(r *http.Request) (*domain.CampaignRun, *pipeline.Result, *domain.AppConfig, error) {
	start := time.Now()
	run := &domain.CampaignRun{ID: uuid.NewString(), CreatedAt: start.UTC()}

	result, cfg, err := h.runCampaign(r, run)

	run.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		slog.Warn("campaign run failed",
			"run_id", run.ID,
			"agreement", run.Agreement,
			"campaign", run.Campaign,
			"error", err,
		)
	} else {
		run.Status = domain.RunStatusCompleted
		run.InputRows = result.InputRows
		run.OutputRows = result.OutputRows
		run.ConvaiRows = result.ConvaiRows
		slog.Info("campaign run completed",
			"run_id", run.ID,
			"agreement", run.Agreement,
			"campaign", run.Campaign,
			"input_rows", run.InputRows,
			"output_rows", run.OutputRows,
			"convai_rows", run.ConvaiRows,
			"duration_ms", run.DurationMs,
		)
	}

	if h.bus != nil {
		if perr := bus.PublishRun(r.Context(), h.bus, run); perr != nil {
			slog.Error("failed to publish run", "run_id", run.ID, "error", perr)
		}
	}
	return run, result, cfg, err
}

func (h *Handler) runCampaign(r *http.Request, run *domain.CampaignRun) (*pipeline.Result, *domain.AppConfig, error) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid multipart form: %w", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	var req domain.CampaignRequest
	raw := r.FormValue("config")
	if raw == "" {
		return nil, nil, fmt.Errorf("%w: config is required", errBadRequest)
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid config JSON: %v", errBadRequest, err)
	}
	run.Campaign = req.Campaign
	run.Team = req.Team

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one file is required", errBadRequest)
	}

	sources := make([]tabular.Source, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		defer f.Close()
		sources = append(sources, tabular.Source{Name: fh.Filename, Reader: f})
	}

	base, err := tabular.Load(sources...)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := h.assembler.Build(ctx, &req, base)
	if err != nil {
		return nil, nil, err
	}
	run.Agreement = cfg.Agreement
	run.Campaign = string(cfg.Campaign)
	run.Team = cfg.Team

	result, err := h.processor.Process(ctx, base, cfg)
	if err != nil {
		return nil, nil, err
	}
	return result, cfg, nil
}

func writeProcessingError(w http.ResponseWriter, err error) {
	writeJSON(w, processingStatus(err), map[string]string{
		"error": "processing failed: " + err.Error(),
	})
}

func processingStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, campaign.ErrUnknownCampaign),
		errors.Is(err, campaign.ErrInvalidNumber),
		errors.Is(err, campaign.ErrInvalidBank),
		errors.Is(err, campaign.ErrInvalidConfig),
		errors.Is(err, strategy.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyTable),
		errors.Is(err, domain.ErrMissingColumn):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RulesRequest is the body of PUT /exclusion-rules/{agreement}/{campaign}.
type RulesRequest struct {
	Lotacoes    []string `json:"lotacoes"`
	Vinculos    []string `json:"vinculos"`
	Secretarias []string `json:"secretarias"`
}

// ListExclusionRules handles GET /exclusion-rules/{agreement}.
func (h *Handler) ListExclusionRules(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	agreement := agreementParam(r)

	list, err := h.repo.ListExclusionRules(r.Context(), agreement)
	if err != nil {
		slog.Error("failed to list exclusion rules", "agreement", agreement, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list exclusion rules",
		})
		return
	}
	if list == nil {
		list = []*domain.ExclusionRules{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agreement": agreement,
		"rules":     list,
		"count":     len(list),
	})
}

// GetExclusionRules handles GET /exclusion-rules/{agreement}/{campaign}.
// Served through the same source runs read from.
func (h *Handler) GetExclusionRules(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "exclusion rules not available",
		})
		return
	}
	agreement, key := agreementParam(r), campaignParam(r)

	rules, err := h.rules.GetExclusionRules(r.Context(), agreement, key)
	if err != nil {
		slog.Error("failed to get exclusion rules", "agreement", agreement, "campaign", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get exclusion rules",
		})
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// SaveExclusionRules handles PUT /exclusion-rules/{agreement}/{campaign}.
func (h *Handler) SaveExclusionRules(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	ctx := r.Context()
	agreement, key := agreementParam(r), campaignParam(r)

	var req RulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rules := &domain.ExclusionRules{
		Agreement:   agreement,
		Campaign:    key,
		Lotacoes:    cleanList(req.Lotacoes),
		Vinculos:    cleanList(req.Vinculos),
		Secretarias: cleanList(req.Secretarias),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := h.repo.SaveExclusionRules(ctx, rules); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("failed to save exclusion rules", "agreement", agreement, "campaign", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save exclusion rules",
		})
		return
	}

	if inv, ok := h.rules.(invalidator); ok {
		if err := inv.Invalidate(ctx, agreement, key); err != nil {
			slog.Warn("failed to invalidate cached rules", "agreement", agreement, "campaign", key, "error", err)
		}
	}

	slog.Info("exclusion rules saved", "agreement", agreement, "campaign", key)
	writeJSON(w, http.StatusOK, rules)
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get run", "run_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get run",
		})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /runs?agreement=&limit=.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}
	agreement := normalizeAgreement(r.URL.Query().Get("agreement"))

	runs, err := h.repo.ListRuns(r.Context(), agreement, limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}
	if runs == nil {
		runs = []*domain.CampaignRun{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// ListBanks handles GET /banks.
func (h *Handler) ListBanks(w http.ResponseWriter, _ *http.Request) {
	banks := campaign.Banks()
	writeJSON(w, http.StatusOK, map[string]any{
		"banks": banks,
		"count": len(banks),
	})
}

// ListCampaigns handles GET /campaigns.
func (h *Handler) ListCampaigns(w http.ResponseWriter, _ *http.Request) {
	rowRules := []*domain.RowRule{}
	if h.processor != nil {
		rowRules = h.processor.Rules()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaigns":          domain.CampaignTypes,
		"teams":              campaign.Teams,
		"conditionalColumns": domain.ConditionalColumns,
		"products":           []domain.Product{domain.ProductBenefit, domain.ProductCard},
		"rowRules":           rowRules,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	for _, c := range h.dependencies() {
		if err := c.ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns 503 until every configured backing service answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.dependencies() {
		if err := c.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": c.name + ": " + err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

type dependency struct {
	name string
	ping func(context.Context) error
}

func (h *Handler) dependencies() []dependency {
	var deps []dependency
	if h.repo != nil {
		deps = append(deps, dependency{"repository", h.repo.Ping})
	}
	if h.cache != nil {
		deps = append(deps, dependency{"cache", h.cache.Ping})
	}
	if h.bus != nil {
		deps = append(deps, dependency{"bus", h.bus.Ping})
	}
	return deps
}

func (h *Handler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return false
	}
	return true
}

func agreementParam(r *http.Request) string {
	return normalizeAgreement(pathParam(r, "agreement"))
}

// campaignParam accepts a rule key ("benefício_cartão") or a campaign
// name ("Benefício & Cartão").
func campaignParam(r *http.Request) string {
	raw := strings.TrimSpace(pathParam(r, "campaign"))
	if c := domain.CampaignType(raw); c.Valid() {
		return c.RuleKey()
	}
	return strings.ToLower(raw)
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func normalizeAgreement(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
