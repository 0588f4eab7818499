package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModelCount is returned when a comparison names too few or too
// many models.
var ErrInvalidModelCount = fmt.Errorf("compare between %d and %d models", MinCompare, MaxCompare)

// ValidationError reports a bad request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError reports identifiers that did not resolve to a stored record.
type NotFoundError struct {
	Resource string
	Slugs    []string
}

func (e *NotFoundError) Error() string {
	if len(e.Slugs) > 1 {
		return fmt.Sprintf("%s not found: %s", e.Resource, strings.Join(e.Slugs, ", "))
	}
	if len(e.Slugs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.Slugs[0])
	}
	return e.Resource + " not found"
}

// UpstreamError wraps a failure of the record store. It is never returned
// for an empty result set.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
