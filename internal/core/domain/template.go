// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"cmp"
	"errors"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Name validation errors
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = errors.New("name must be at most 128 characters")
	ErrNameInvalidChars = errors.New("name can only contain alphanumeric characters, dots, dashes, underscores and slashes")

	// Version validation errors
	ErrVersionRequired      = errors.New("version is required")
	ErrVersionInvalidFormat = errors.New("version must be a dotted semantic version (e.g. 1.7 or 1.7.3)")
)

// =============================================================================
// Template
// =============================================================================

// Template is one published version of a template family.
//
// Name identifies the family across versions; (Name, Version) identifies one
// exact version. ScmURI is copied from the family owner when the version is
// created and never changes afterwards.
type Template struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	ScmURI      string    `json:"scmUri"`
	Maintainer  string    `json:"maintainer"`
	Description string    `json:"description"`
	TemplateURL string    `json:"templateUrl"`
	Labels      LabelSet  `json:"labels"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// =============================================================================
// PublishRequest
// =============================================================================

// PublishRequest is a validated request to publish a template version.
type PublishRequest struct {
	Name        string
	Version     string
	Maintainer  string
	Description string
	TemplateURL string
	Labels      LabelSet
}

// =============================================================================
// TemplateConfig
// =============================================================================

// TemplateConfig is everything needed to create a new template row.
// It carries no identity; the store assigns one on create.
type TemplateConfig struct {
	Name        string
	Version     string
	ScmURI      string
	Maintainer  string
	Description string
	TemplateURL string
	Labels      LabelSet
}

// NewTemplateConfig builds the config for a new template row.
//
// Every field comes from the request except ScmURI, which is always the
// publishing pipeline's identity.
func NewTemplateConfig(req PublishRequest, scmURI string) TemplateConfig {
	return TemplateConfig{
		Name:        req.Name,
		Version:     req.Version,
		ScmURI:      scmURI,
		Maintainer:  req.Maintainer,
		Description: req.Description,
		TemplateURL: req.TemplateURL,
		Labels:      req.Labels,
	}
}

// Template materializes the config into an unsaved template stamped with now.
func (c TemplateConfig) Template(now time.Time) *Template {
	now = now.UTC()
	return &Template{
		Name:        c.Name,
		Version:     c.Version,
		ScmURI:      c.ScmURI,
		Maintainer:  c.Maintainer,
		Description: c.Description,
		TemplateURL: c.TemplateURL,
		Labels:      c.Labels,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

const (
	// MaxNameLength is the longest template name accepted.
	MaxNameLength = 128

	// NamePattern is the set of characters a template name may use.
	NamePattern = `^[a-zA-Z0-9_./-]+$`
)

var nameRegex = regexp.MustCompile(NamePattern)

// ValidateName validates a template name.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !nameRegex.MatchString(name) {
		return ErrNameInvalidChars
	}
	return nil
}

// ValidateVersion validates a version string.
// Short forms such as "1" or "1.7" are accepted and treated as "1.0.0" and
// "1.7.0" for ordering, but the version is stored exactly as given.
func ValidateVersion(version string) error {
	if version == "" {
		return ErrVersionRequired
	}
	if _, err := semver.NewVersion(version); err != nil {
		return ErrVersionInvalidFormat
	}
	return nil
}

// CompareVersions compares two version strings.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2.
// Unparseable versions sort before parseable ones and compare as plain
// strings among themselves.
func CompareVersions(v1, v2 string) int {
	sv1, err1 := semver.NewVersion(v1)
	sv2, err2 := semver.NewVersion(v2)
	switch {
	case err1 != nil && err2 != nil:
		return cmp.Compare(v1, v2)
	case err1 != nil:
		return -1
	case err2 != nil:
		return 1
	}
	return sv1.Compare(sv2)
}

// LatestVersion returns the template with the highest version, or nil when
// templates is empty.
func LatestVersion(templates []Template) *Template {
	var latest *Template
	for i := range templates {
		if latest == nil || CompareVersions(templates[i].Version, latest.Version) > 0 {
			latest = &templates[i]
		}
	}
	return latest
}
