// Package types defines the core data types shared across medinsight.
//
// This package contains the fundamental types used throughout the module:
//   - Insight: a clinical insight persisted in the insight store
//   - Match: a query-time view of an insight, after privacy masking
//   - Message/Response: language model conversation primitives
//
// # Privacy
//
// Match values leaving the retrieval engine have already been masked.
// Medication and LabTest hold RestrictedSentinel whenever the viewer's
// verification scope differs from the insight's owner scope.
//
// # Validation
//
// Insight provides Validate() for input validation:
//
//	in := &types.Insight{Text: "check ferritin", OwnerScope: "hosp-1"}
//	if err := in.Validate(); err != nil {
//	    // Handle validation error
//	}
package types
