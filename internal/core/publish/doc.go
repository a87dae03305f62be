// Package publish decides what a template publish request does to the registry.
//
// This package is part of the functional core. Resolve is a pure function:
// it reads the publish request, the calling pipeline and the two registry
// lookups, and returns an Outcome describing the mutation. Applying the
// outcome is the caller's job.
//
// # Policy
//
// The rules are evaluated in a fixed order:
//
//  1. No template with the requested name exists: CreateTemplate. The
//     caller's scm uri becomes the owner of the family.
//  2. The family is owned by a different scm uri: RejectUnauthorized,
//     whatever the version.
//  3. The exact (name, version) does not exist: CreateVersion.
//  4. The exact version exists: MergeLabels with the union of the stored
//     and submitted labels. Nothing else about the version changes.
//
// An exact match without a family match cannot happen against a consistent
// registry and is reported as ErrInvariantViolation.
//
// # Usage
//
//	outcome, err := publish.Resolve(req, pipeline, byName, exact)
//	if err != nil {
//	    // registry bug or caller misuse
//	}
//	switch o := outcome.(type) {
//	case publish.CreateTemplate:
//	    // create o.Config
//	case publish.RejectUnauthorized:
//	    // 401
//	}
package publish
