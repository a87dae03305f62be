package validation

import (
	"net/url"

	"github.com/artpar/tmplregistry/internal/core/domain"
)

// =============================================================================
// Template Validation Functions
// =============================================================================

// ValidatePublishFields validates the fields of a publish request.
// Returns the field name and error message of the first invalid field, or
// empty strings if all fields are valid.
//
// Example:
//
//	field, msg := ValidatePublishFields("template", "1.7", "http://foo.bar")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidatePublishFields(name, version, templateURL string) (field, message string) {
	if err := domain.ValidateName(name); err != nil {
		return "name", err.Error()
	}
	if err := domain.ValidateVersion(version); err != nil {
		return "version", err.Error()
	}
	if templateURL != "" && !isAbsoluteURL(templateURL) {
		return "templateUrl", "templateUrl must be an absolute URL"
	}
	return "", ""
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
