package store

import (
	"context"

	"github.com/artpar/tmplregistry/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the template registry.
//
// Every method is atomic on its own. Creates enforce name ownership and
// (name, version) uniqueness and report violations as ErrConflict.
type Store interface {
	// Pipeline operations
	CreatePipeline(ctx context.Context, pipeline *domain.Pipeline) error
	GetPipeline(ctx context.Context, id int64) (*domain.Pipeline, error)

	// Template lookups
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)
	FindTemplateByName(ctx context.Context, name string) (*domain.Template, error)
	FindTemplateExact(ctx context.Context, name, version string) (*domain.Template, error)
	ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error)
	CountTemplates(ctx context.Context) (int, error)

	// Template writes
	CreateTemplate(ctx context.Context, template *domain.Template) error
	CreateTemplateVersion(ctx context.Context, template *domain.Template) error
	UpdateTemplateLabels(ctx context.Context, id int64, expected, labels domain.LabelSet) (*domain.Template, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// SortOrder orders template listings by creation time.
type SortOrder string

const (
	SortDescending SortOrder = "descending"
	SortAscending  SortOrder = "ascending"
)

// ListOptions defines pagination and ordering options.
type ListOptions struct {
	Limit  int
	Offset int
	Sort   SortOrder
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  50,
		Offset: 0,
		Sort:   SortDescending,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Sort != SortAscending {
		o.Sort = SortDescending
	}
	return o
}

// Page converts a 1-based page number and page size into list options.
func Page(page, count int, sort SortOrder) ListOptions {
	if page < 1 {
		page = 1
	}
	opts := ListOptions{Limit: count, Sort: sort}.Normalize()
	opts.Offset = (page - 1) * opts.Limit
	return opts
}
