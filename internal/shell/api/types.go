package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// PublishTemplateRequest is the request body for publishing a template.
type PublishTemplateRequest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Maintainer  string   `json:"maintainer,omitempty"`
	Description string   `json:"description,omitempty"`
	TemplateURL string   `json:"templateUrl,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// TemplateResponse is the response for template operations.
type TemplateResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	ScmURI      string    `json:"scmUri"`
	Maintainer  string    `json:"maintainer"`
	Description string    `json:"description"`
	TemplateURL string    `json:"templateUrl"`
	Labels      []string  `json:"labels"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListTemplatesResponse is the response for listing templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Count     int                `json:"count"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
