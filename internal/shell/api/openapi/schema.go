package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/tmplregistry/internal/core/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Publish Payload Schema
// =============================================================================

// ErrInvalidPayload is returned when a request body does not match its schema.
var ErrInvalidPayload = errors.New("invalid payload")

// PayloadError describes the first schema violation found in a payload.
type PayloadError struct {
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}

// PublishTemplateSchema returns the schema of a template publish payload.
func PublishTemplateSchema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema().
			WithMinLength(1).
			WithMaxLength(domain.MaxNameLength).
			WithPattern(domain.NamePattern)).
		WithProperty("version", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("maintainer", openapi3.NewStringSchema()).
		WithProperty("description", openapi3.NewStringSchema()).
		WithProperty("templateUrl", openapi3.NewStringSchema().WithFormat("uri")).
		WithProperty("labels", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	schema.Required = []string{"name", "version"}
	return schema
}

var publishTemplateSchema = PublishTemplateSchema()

// ValidatePublishPayload checks a raw publish request body against
// PublishTemplateSchema. Semantic checks such as version parsing are left
// to the validation package.
func ValidatePublishPayload(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &PayloadError{Reason: "invalid JSON"}
	}

	if err := publishTemplateSchema.VisitJSON(doc); err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			return &PayloadError{
				Field:  strings.Join(schemaErr.JSONPointer(), "."),
				Reason: schemaErr.Reason,
			}
		}
		return &PayloadError{Reason: fmt.Sprint(err)}
	}
	return nil
}
