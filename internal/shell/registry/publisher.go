// Package registry applies publish decisions to the template store.
// This is part of the Imperative Shell - it performs the reads, calls the
// pure resolver and executes the resulting outcome.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/tmplregistry/internal/core/domain"
	"github.com/artpar/tmplregistry/internal/core/publish"
	"github.com/artpar/tmplregistry/internal/shell/store"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrPipelineNotFound is returned when the publishing pipeline is unknown.
	ErrPipelineNotFound = errors.New("pipeline does not exist")

	// ErrUnauthorized is returned when the template name is owned by another
	// scm uri.
	ErrUnauthorized = errors.New("not allowed to publish this template")
)

// MaxConflictRetries bounds how often a publish is re-resolved after losing
// a write race.
const MaxConflictRetries = 1

// =============================================================================
// Publisher
// =============================================================================

// Registry publishes templates on behalf of pipelines.
type Registry interface {
	Publish(ctx context.Context, req domain.PublishRequest, pipelineID int64) (*Result, error)
}

// Result describes what a successful publish did.
type Result struct {
	// Template is the stored template after the publish.
	Template *domain.Template

	// Kind is the outcome that was applied.
	Kind publish.Kind

	// Created is true when a new template row was inserted.
	Created bool
}

// Publisher implements Registry on top of a store.
type Publisher struct {
	store   store.Store
	logger  *slog.Logger
	retries int
	now     func() time.Time
}

// NewPublisher creates a publisher. retries is clamped to
// [0, MaxConflictRetries].
func NewPublisher(s store.Store, logger *slog.Logger, retries int) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	retries = min(max(retries, 0), MaxConflictRetries)
	return &Publisher{
		store:   s,
		logger:  logger.With("component", "publisher"),
		retries: retries,
		now:     time.Now,
	}
}

// Publish resolves and applies a publish request for the given pipeline.
//
// A write that loses a race with a concurrent publish is re-resolved against
// fresh reads up to the configured retry count. A conflict that survives the
// retries is returned and wraps store.ErrConflict.
func (p *Publisher) Publish(ctx context.Context, req domain.PublishRequest, pipelineID int64) (*Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := p.publishOnce(ctx, req, pipelineID)
		if err == nil {
			return result, nil
		}
		if !store.IsConflict(err) || attempt >= p.retries {
			return nil, err
		}
		p.logger.Warn("publish conflict, retrying",
			"template", req.Name,
			"version", req.Version,
			"attempt", attempt+1,
			"error", err,
		)
	}
}

func (p *Publisher) publishOnce(ctx context.Context, req domain.PublishRequest, pipelineID int64) (*Result, error) {
	pipeline, byName, err := p.loadFamily(ctx, req.Name, pipelineID)
	if err != nil {
		return nil, err
	}

	exact := publish.Absent()
	if byName.Found && pipeline.Owns(byName.Template) {
		exact, err = p.lookupExact(ctx, req.Name, req.Version)
		if err != nil {
			return nil, err
		}
	}

	outcome, err := publish.Resolve(req, *pipeline, byName, exact)
	if err != nil {
		return nil, err
	}

	p.logger.Info("publish resolved",
		"template", req.Name,
		"version", req.Version,
		"pipeline_id", pipelineID,
		"outcome", outcome.Kind().String(),
	)

	return p.apply(ctx, outcome)
}

// loadFamily reads the pipeline and the family concurrently.
func (p *Publisher) loadFamily(ctx context.Context, name string, pipelineID int64) (*domain.Pipeline, publish.Lookup, error) {
	var (
		pipeline *domain.Pipeline
		byName   publish.Lookup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pl, err := p.store.GetPipeline(gctx, pipelineID)
		if err != nil {
			if store.IsNotFound(err) {
				return fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
			}
			return fmt.Errorf("failed to load pipeline: %w", err)
		}
		pipeline = pl
		return nil
	})
	g.Go(func() error {
		t, err := p.store.FindTemplateByName(gctx, name)
		if err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to load template family: %w", err)
		}
		byName = publish.Found(*t)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, publish.Lookup{}, err
	}
	return pipeline, byName, nil
}

func (p *Publisher) lookupExact(ctx context.Context, name, version string) (publish.Lookup, error) {
	t, err := p.store.FindTemplateExact(ctx, name, version)
	if err != nil {
		if store.IsNotFound(err) {
			return publish.Absent(), nil
		}
		return publish.Lookup{}, fmt.Errorf("failed to load template version: %w", err)
	}
	return publish.Found(*t), nil
}

// apply executes the outcome against the store.
func (p *Publisher) apply(ctx context.Context, outcome publish.Outcome) (*Result, error) {
	switch o := outcome.(type) {
	case publish.CreateTemplate:
		t := o.Config.Template(p.now())
		if err := p.store.CreateTemplate(ctx, t); err != nil {
			return nil, err
		}
		return &Result{Template: t, Kind: o.Kind(), Created: true}, nil

	case publish.CreateVersion:
		t := o.Config.Template(p.now())
		if err := p.store.CreateTemplateVersion(ctx, t); err != nil {
			return nil, err
		}
		return &Result{Template: t, Kind: o.Kind(), Created: true}, nil

	case publish.RejectUnauthorized:
		p.logger.Warn("publish rejected",
			"template", o.Name,
			"owner", o.Owner,
			"caller", o.Caller,
		)
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, o.Name)

	case publish.MergeLabels:
		if !o.Changed() {
			t, err := p.store.GetTemplate(ctx, o.TemplateID)
			if err != nil {
				return nil, err
			}
			return &Result{Template: t, Kind: o.Kind()}, nil
		}
		t, err := p.store.UpdateTemplateLabels(ctx, o.TemplateID, o.Previous, o.Labels)
		if err != nil {
			return nil, err
		}
		return &Result{Template: t, Kind: o.Kind()}, nil

	default:
		return nil, fmt.Errorf("unhandled publish outcome %T", outcome)
	}
}
