// Package validation provides pure validation functions for API handlers.
//
// These checks run after the payload has passed schema validation and before
// the request reaches the publish resolver. All functions are pure (no I/O,
// no side effects).
//
// # Usage
//
//	if field, msg := validation.ValidatePublishFields(name, version, url); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
