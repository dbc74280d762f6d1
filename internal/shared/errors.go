package shared

import (
	"errors"
	"fmt"
)

// ValidationError signals that a request is structurally or semantically
// invalid. Rule identifies the violated rule so callers can map it to a
// response without parsing the message.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Rule
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// Validation builds a ValidationError for the given rule.
func Validation(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError signals that a referenced entity does not exist or is not
// visible to the caller.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity and id.
func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
