package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// ValidatePublishFields Tests
// =============================================================================

func TestValidatePublishFields_AllValid(t *testing.T) {
	field, msg := ValidatePublishFields("template", "1.7", "http://foo.bar")
	assert.Empty(t, field)
	assert.Empty(t, msg)
}

func TestValidatePublishFields_MissingName(t *testing.T) {
	field, msg := ValidatePublishFields("", "1.7", "http://foo.bar")
	assert.Equal(t, "name", field)
	assert.Equal(t, "name is required", msg)
}

func TestValidatePublishFields_MissingVersion(t *testing.T) {
	field, msg := ValidatePublishFields("template", "", "http://foo.bar")
	assert.Equal(t, "version", field)
	assert.Equal(t, "version is required", msg)
}

func TestValidatePublishFields_ChecksInOrder(t *testing.T) {
	// When multiple fields are invalid, first one is reported
	field, _ := ValidatePublishFields("", "", "not a url")
	assert.Equal(t, "name", field, "should check name first")
}

// =============================================================================
// Table-Driven Tests
// =============================================================================

func TestValidatePublishFields_TableDriven(t *testing.T) {
	tests := []struct {
		name        string
		inputName   string
		version     string
		templateURL string
		wantField   string
	}{
		{"all valid", "nodejs/test", "2.0.0", "https://example.com/t.yaml", ""},
		{"url is optional", "template", "1", "", ""},
		{"invalid name chars", "my template", "1.0.0", "", "name"},
		{"non semver version", "template", "latest", "", "version"},
		{"relative url", "template", "1.0.0", "/templates/t.yaml", "templateUrl"},
		{"url without host", "template", "1.0.0", "http://", "templateUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, _ := ValidatePublishFields(tt.inputName, tt.version, tt.templateURL)
			assert.Equal(t, tt.wantField, field)
		})
	}
}
