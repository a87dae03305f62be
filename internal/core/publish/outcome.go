package publish

import "github.com/artpar/tmplregistry/internal/core/domain"

// =============================================================================
// Outcome Kind
// =============================================================================

// Kind names the four possible outcomes of a publish.
type Kind int

const (
	KindCreateTemplate Kind = iota + 1
	KindCreateVersion
	KindRejectUnauthorized
	KindMergeLabels
)

// String returns the kind in snake_case, as used in logs.
func (k Kind) String() string {
	switch k {
	case KindCreateTemplate:
		return "create_template"
	case KindCreateVersion:
		return "create_version"
	case KindRejectUnauthorized:
		return "reject_unauthorized"
	case KindMergeLabels:
		return "merge_labels"
	default:
		return "unknown"
	}
}

// =============================================================================
// Outcomes
// =============================================================================

// Outcome is the effect a publish request should have on the registry.
// It is implemented only by the types in this package.
type Outcome interface {
	Kind() Kind
	isOutcome()
}

// CreateTemplate creates the first version of a new template family and
// establishes Config.ScmURI as its owner.
type CreateTemplate struct {
	Config domain.TemplateConfig
}

// CreateVersion adds a new version to a family the caller already owns.
type CreateVersion struct {
	Config domain.TemplateConfig
}

// RejectUnauthorized refuses the publish: the family belongs to another scm uri.
type RejectUnauthorized struct {
	Name   string
	Owner  string
	Caller string
}

// MergeLabels extends the labels of an existing exact version.
//
// Labels is the complete set to store. Added holds only the labels that are
// new relative to Previous; when it is empty the publish is a no-op.
type MergeLabels struct {
	TemplateID int64
	Previous   domain.LabelSet
	Labels     domain.LabelSet
	Added      domain.LabelSet
}

// Changed reports whether applying the merge modifies the stored labels.
func (m MergeLabels) Changed() bool {
	return m.Added.Len() > 0
}

func (CreateTemplate) Kind() Kind     { return KindCreateTemplate }
func (CreateVersion) Kind() Kind      { return KindCreateVersion }
func (RejectUnauthorized) Kind() Kind { return KindRejectUnauthorized }
func (MergeLabels) Kind() Kind        { return KindMergeLabels }

func (CreateTemplate) isOutcome()     {}
func (CreateVersion) isOutcome()      {}
func (RejectUnauthorized) isOutcome() {}
func (MergeLabels) isOutcome()        {}
