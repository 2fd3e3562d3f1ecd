// Package errors classifies labctl failures with a small set of codes.
//
// Stages wrap failures with a code and optional context:
//
//	return errors.WrapWithContext(errors.ErrCodeTimeout, "certificate not ready", err,
//	    map[string]any{"certificate": name})
//
// Callers branch on the classification with IsCode:
//
//	if errors.IsCode(err, errors.ErrCodeNotFound) {
//	    // create it
//	}
//
// FromHTTPStatus maps Harbor API responses onto codes. ExitCode turns the
// final error into the process exit status, and LogAttrs flattens the chain's
// context into slog attributes.
package errors
