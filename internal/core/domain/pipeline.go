package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrPipelineIDInvalid = errors.New("pipeline id must be positive")
	ErrScmURIRequired    = errors.New("scm uri is required")
)

// Pipeline is the source-control backed entity that owns template families.
// ScmURI is opaque and only ever compared for equality.
type Pipeline struct {
	ID        int64     `json:"id"`
	ScmURI    string    `json:"scmUri"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPipeline creates a pipeline record for the given id and scm uri.
func NewPipeline(id int64, scmURI string) (*Pipeline, error) {
	if id <= 0 {
		return nil, ErrPipelineIDInvalid
	}
	if strings.TrimSpace(scmURI) == "" {
		return nil, ErrScmURIRequired
	}
	return &Pipeline{
		ID:        id,
		ScmURI:    scmURI,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Owns reports whether the pipeline owns the family of t.
func (p Pipeline) Owns(t Template) bool {
	return p.ScmURI == t.ScmURI
}
