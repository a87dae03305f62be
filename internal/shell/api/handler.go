// Package api provides HTTP handlers for the template registry API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artpar/tmplregistry/internal/core/auth"
	"github.com/artpar/tmplregistry/internal/core/domain"
	"github.com/artpar/tmplregistry/internal/core/validation"
	"github.com/artpar/tmplregistry/internal/shell/api/middleware"
	"github.com/artpar/tmplregistry/internal/shell/api/openapi"
	"github.com/artpar/tmplregistry/internal/shell/registry"
	"github.com/artpar/tmplregistry/internal/shell/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxPublishBodyBytes bounds the size of a publish request body.
const maxPublishBodyBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	registry registry.Registry
	auth     *middleware.AuthMiddleware
	openapi  *openapi.Generator
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, reg registry.Registry, authMW *middleware.AuthMiddleware, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}

	gen := openapi.NewGenerator()
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "templates",
		Model:          TemplateResponse{},
		CreateSchema:   openapi.PublishTemplateSchema(),
		CreateSummary:  "Publish a template version",
		SupportsFind:   true,
		SupportsCreate: true,
	})

	return &Handler{
		store:    s,
		registry: reg,
		auth:     authMW,
		openapi:  gen,
		logger:   l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.jsonContentType)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API description
	r.Get("/openapi.json", h.openapi.Handler())
	r.Get("/openapi.yaml", h.openapi.YAMLHandler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.auth.Handler)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.handleListTemplates)
			r.Get("/{id}", h.handleGetTemplate)
			r.With(middleware.RequireScope(auth.ScopeBuild, h.logger)).Post("/", h.handlePublishTemplate)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// requestID tags every request with an ID, reusing the caller's X-Request-ID
// when present, and echoes it in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(chimiddleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(chimiddleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
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

	if err := h.store.Ping(r.Context()); err != nil {
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
// Template Handlers
// =============================================================================

func (h *Handler) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if ok, reason := auth.CanPublishTemplate(authCtx); !ok {
		h.writeError(w, http.StatusForbidden, reason, "forbidden")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPublishBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "request body too large or unreadable", "validation_error")
		return
	}

	if err := openapi.ValidatePublishPayload(body); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	var req PublishTemplateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if field, msg := validation.ValidatePublishFields(req.Name, req.Version, req.TemplateURL); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	result, err := h.registry.Publish(r.Context(), domain.PublishRequest{
		Name:        req.Name,
		Version:     req.Version,
		Maintainer:  req.Maintainer,
		Description: req.Description,
		TemplateURL: req.TemplateURL,
		Labels:      domain.NewLabelSet(req.Labels...),
	}, authCtx.PipelineID)
	if err != nil {
		h.writePublishError(w, r, req, err)
		return
	}

	h.logger.Info("template published",
		"template", result.Template.Name,
		"version", result.Template.Version,
		"template_id", result.Template.ID,
		"pipeline_id", authCtx.PipelineID,
		"outcome", result.Kind.String(),
		"request_id", chimiddleware.GetReqID(r.Context()),
	)

	if result.Created {
		w.Header().Set("Location", fmt.Sprintf("/api/v1/templates/%d", result.Template.ID))
		h.writeJSON(w, http.StatusCreated, templateToResponse(result.Template))
		return
	}
	h.writeJSON(w, http.StatusOK, templateToResponse(result.Template))
}

func (h *Handler) writePublishError(w http.ResponseWriter, r *http.Request, req PublishTemplateRequest, err error) {
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, "not allowed to publish this template", "unauthorized")
	case errors.Is(err, registry.ErrPipelineNotFound):
		h.writeError(w, http.StatusNotFound, "pipeline does not exist", "not_found")
	case store.IsConflict(err):
		h.writeError(w, http.StatusConflict, "template was modified concurrently, retry the publish", "conflict")
	default:
		h.logger.Error("failed to publish template",
			"template", req.Name,
			"version", req.Version,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "failed to publish template", "internal_error")
	}
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), 1)
	if err != nil || page < 1 {
		h.writeError(w, http.StatusBadRequest, "page must be a positive integer", "validation_error")
		return
	}
	count, err := intParam(query.Get("count"), 50)
	if err != nil || count < 1 || count > 1000 {
		h.writeError(w, http.StatusBadRequest, "count must be between 1 and 1000", "validation_error")
		return
	}

	sort := store.SortOrder(query.Get("sort"))
	switch sort {
	case "":
		sort = store.SortDescending
	case store.SortDescending, store.SortAscending:
	default:
		h.writeError(w, http.StatusBadRequest, "sort must be ascending or descending", "validation_error")
		return
	}

	templates, err := h.store.ListTemplates(r.Context(), store.Page(page, count, sort))
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list templates", "internal_error")
		return
	}

	total, err := h.store.CountTemplates(r.Context())
	if err != nil {
		h.logger.Error("failed to count templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list templates", "internal_error")
		return
	}

	resp := ListTemplatesResponse{
		Templates: make([]TemplateResponse, 0, len(templates)),
		Total:     total,
		Page:      page,
		Count:     count,
	}
	for i := range templates {
		resp.Templates = append(resp.Templates, templateToResponse(&templates[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "id must be a positive integer", "validation_error")
		return
	}

	template, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "template does not exist", "not_found")
			return
		}
		h.logger.Error("failed to get template", "template_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get template", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, templateToResponse(template))
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func templateToResponse(t *domain.Template) TemplateResponse {
	return TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Version:     t.Version,
		ScmURI:      t.ScmURI,
		Maintainer:  t.Maintainer,
		Description: t.Description,
		TemplateURL: t.TemplateURL,
		Labels:      t.Labels.Slice(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// intParam parses an optional integer query parameter.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
