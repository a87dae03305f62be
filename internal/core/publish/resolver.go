package publish

import (
	"errors"
	"fmt"

	"github.com/artpar/tmplregistry/internal/core/domain"
)

// ErrInvariantViolation is returned when the lookups handed to Resolve
// describe a registry state that cannot exist.
var ErrInvariantViolation = errors.New("publish: registry invariant violated")

// =============================================================================
// Lookup
// =============================================================================

// Lookup is the result of an optional registry read.
type Lookup struct {
	Template domain.Template
	Found    bool
}

// Found wraps a template returned by a registry read.
func Found(t domain.Template) Lookup {
	return Lookup{Template: t, Found: true}
}

// Absent is the result of a registry read that matched nothing.
func Absent() Lookup {
	return Lookup{}
}

// =============================================================================
// Resolve
// =============================================================================

// Resolve decides the outcome of publishing req on behalf of pipeline.
//
// byName is any template of the family req.Name; exact is the template for
// (req.Name, req.Version). The ownership check always runs before exact is
// consulted.
func Resolve(req domain.PublishRequest, pipeline domain.Pipeline, byName, exact Lookup) (Outcome, error) {
	if err := checkLookups(req, byName, exact); err != nil {
		return nil, err
	}

	switch {
	case !byName.Found:
		return CreateTemplate{Config: domain.NewTemplateConfig(req, pipeline.ScmURI)}, nil

	case !pipeline.Owns(byName.Template):
		return RejectUnauthorized{
			Name:   req.Name,
			Owner:  byName.Template.ScmURI,
			Caller: pipeline.ScmURI,
		}, nil

	case !exact.Found:
		return CreateVersion{Config: domain.NewTemplateConfig(req, byName.Template.ScmURI)}, nil

	default:
		previous := exact.Template.Labels
		merged := previous.Union(req.Labels)
		return MergeLabels{
			TemplateID: exact.Template.ID,
			Previous:   previous,
			Labels:     merged,
			Added:      merged.Difference(previous),
		}, nil
	}
}

// checkLookups rejects lookup combinations a consistent registry cannot produce.
func checkLookups(req domain.PublishRequest, byName, exact Lookup) error {
	if exact.Found && !byName.Found {
		return fmt.Errorf("%w: version %s@%s exists but its family does not",
			ErrInvariantViolation, req.Name, req.Version)
	}
	if byName.Found && byName.Template.Name != req.Name {
		return fmt.Errorf("%w: family lookup for %q returned %q",
			ErrInvariantViolation, req.Name, byName.Template.Name)
	}
	if exact.Found && (exact.Template.Name != req.Name || exact.Template.Version != req.Version) {
		return fmt.Errorf("%w: exact lookup for %s@%s returned %s@%s",
			ErrInvariantViolation, req.Name, req.Version, exact.Template.Name, exact.Template.Version)
	}
	return nil
}
