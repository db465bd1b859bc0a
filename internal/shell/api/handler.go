// Package api provides HTTP handlers for the guardrails API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
	"github.com/artpar/guardrails/internal/core/tenant"
	apimiddleware "github.com/artpar/guardrails/internal/shell/api/middleware"
	"github.com/artpar/guardrails/internal/shell/api/openapi"
)

// ResponseTemplatesPath is the collection path of the response template API.
const ResponseTemplatesPath = "/guardrail-service/api/response_templates"

// =============================================================================
// Collaborators
// =============================================================================

// TemplateService is the response template use case surface.
type TemplateService interface {
	List(ctx context.Context, tenantID string, filter domain.ResponseTemplateFilter, page query.PageRequest) (query.Page[domain.ResponseTemplate], error)
	Create(ctx context.Context, tenantID string, candidate domain.ResponseTemplate) (*domain.ResponseTemplate, error)
	GetByID(ctx context.Context, tenantID string, id int64) (*domain.ResponseTemplate, error)
	Update(ctx context.Context, tenantID string, id int64, candidate domain.ResponseTemplate) (*domain.ResponseTemplate, error)
	Delete(ctx context.Context, tenantID string, id int64) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// Handler
// =============================================================================

// Config holds handler settings.
type Config struct {
	TenantHeader    string
	RequireTenant   bool
	DefaultPageSize int
	MaxPageSize     int
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	service  TemplateService
	db       Pinger
	logger   *slog.Logger
	config   Config
	validate *validator.Validate
	openapi  *openapi.Generator
}

// NewHandler creates a new API handler.
func NewHandler(svc TemplateService, db Pinger, l *slog.Logger, cfg Config) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = query.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 || cfg.MaxPageSize > query.MaxPageSize {
		cfg.MaxPageSize = query.MaxPageSize
	}

	gen := openapi.NewGenerator()
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "response_templates",
		BasePath:       ResponseTemplatesPath,
		Model:          ResponseTemplateResponse{},
		Request:        ResponseTemplateRequest{},
		ListFilters:    []string{"response", "description", "type"},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})

	return &Handler{
		service:  svc,
		db:       db,
		logger:   l,
		config:   cfg,
		validate: newValidator(),
		openapi:  gen,
	}
}

// newValidator returns a validator that reports fields by their query or
// JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Group(func(r chi.Router) {
		r.Use(h.jsonContentType)
		r.Get("/health", h.handleHealth)
		r.Get("/ready", h.handleReady)
	})

	r.Get("/openapi.json", h.openapi.Handler())

	r.Route(ResponseTemplatesPath, func(r chi.Router) {
		r.Use(h.jsonContentType)
		r.Use(apimiddleware.NewTenantMiddleware(apimiddleware.TenantConfig{
			Header: h.config.TenantHeader,
			Logger: h.logger,
		}).Handler)
		if h.config.RequireTenant {
			r.Use(apimiddleware.RequireTenant(h.logger))
		}

		r.Get("/", h.handleListResponseTemplates)
		r.Post("/", h.handleCreateResponseTemplate)
		r.Get("/{id}", h.handleGetResponseTemplate)
		r.Put("/{id}", h.handleUpdateResponseTemplate)
		r.Delete("/{id}", h.handleDeleteResponseTemplate)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Response Template Handlers
// =============================================================================

func (h *Handler) handleListResponseTemplates(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeDomainError(w, r, validationError(err))
		return
	}

	sort, err := query.ParseSort(params.Sort, domain.SortColumns)
	if err != nil {
		h.writeDomainError(w, r, domain.NewInvalidArgument("sort", err.Error()))
		return
	}

	size := params.Size
	if size == 0 {
		size = h.config.DefaultPageSize
	}
	if size > h.config.MaxPageSize {
		size = h.config.MaxPageSize
	}

	filter := domain.ResponseTemplateFilter{
		ExactMatch:          params.ExactMatch,
		CommaSeparatedValue: params.CommaSeparatedValue,
		Response:            params.Response,
		Description:         params.Description,
		Type:                domain.TemplateType(params.Type),
	}
	page, err := h.service.List(r.Context(), tenant.ID(r.Context()), filter,
		query.PageRequest{Number: params.Page, Size: size, Sort: sort})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, query.Map(page, toResponse))
}

func (h *Handler) handleCreateResponseTemplate(w http.ResponseWriter, r *http.Request) {
	candidate, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), tenant.ID(r.Context()), candidate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toResponse(*created))
}

func (h *Handler) handleGetResponseTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	t, err := h.service.GetByID(r.Context(), tenant.ID(r.Context()), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(*t))
}

func (h *Handler) handleUpdateResponseTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	candidate, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), tenant.ID(r.Context()), id, candidate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(*updated))
}

func (h *Handler) handleDeleteResponseTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), tenant.ID(r.Context()), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeRequest reads a ResponseTemplateRequest body. It writes the error
// response itself and reports false on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (domain.ResponseTemplate, bool) {
	var req ResponseTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error", "")
		return domain.ResponseTemplate{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeDomainError(w, r, validationError(err))
		return domain.ResponseTemplate{}, false
	}
	return domain.ResponseTemplate{
		Type:        domain.TemplateType(req.Type),
		Response:    req.Response,
		Description: req.Description,
	}, true
}

// =============================================================================
// Query Parsing
// =============================================================================

func parseListParams(values url.Values) (ListParams, error) {
	p := ListParams{
		Sort:        values["sort"],
		Response:    values.Get("response"),
		Description: values.Get("description"),
		Type:        values.Get("type"),
	}

	var err error
	if p.Page, err = intParam(values, "page"); err != nil {
		return ListParams{}, err
	}
	if p.Size, err = intParam(values, "size"); err != nil {
		return ListParams{}, err
	}
	if p.ExactMatch, err = boolParam(values, "exact_match"); err != nil {
		return ListParams{}, err
	}
	if p.CommaSeparatedValue, err = boolParam(values, "comma_separated_value"); err != nil {
		return ListParams{}, err
	}
	return p, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewInvalidArgument(name, fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return n, nil
}

func boolParam(values url.Values, name string) (bool, error) {
	raw := values.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewInvalidArgument(name, fmt.Sprintf("%s must be a boolean, got %q", name, raw))
	}
	return b, nil
}

// validationError converts the first struct validation failure into an
// InvalidArgument error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewInvalidArgument("", err.Error())
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "oneof":
		msg = fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return domain.NewInvalidArgument(fe.Field(), msg)
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code, field string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
		Field: field,
	})
}

// writeDomainError maps error kinds to HTTP statuses. Anything unrecognized
// is logged and reported as 500 without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var field string
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}

	switch domain.KindOf(err) {
	case domain.ErrInvalidArgument:
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_argument", field)
	case domain.ErrInvalidOperation:
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_operation", field)
	case domain.ErrAlreadyExists:
		h.writeError(w, http.StatusConflict, err.Error(), "already_exists", field)
	case domain.ErrNotFound:
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found", field)
	default:
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "internal server error", "internal_error", "")
	}
}

func toResponse(t domain.ResponseTemplate) ResponseTemplateResponse {
	return ResponseTemplateResponse{
		ID:          t.ID,
		TenantID:    t.TenantID,
		Type:        string(t.Type),
		Response:    t.Response,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
