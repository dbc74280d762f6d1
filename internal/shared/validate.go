package shared

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidator converts go-playground validator errors into the domain
// ValidationError shape, naming the violated rule after the failed tag.
func FromValidator(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return Validation("invalid input", "%v", err)
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return Validation("missing required field", "%s is required", field)
	case "max":
		return Validation("field too long", "%s exceeds %s characters", field, fe.Param())
	case "min":
		return Validation("field too short", "%s must not be empty", field)
	case "accountcode":
		return Validation("invalid account code", "account code may contain only letters, digits, underscore and hyphen")
	case "banknumber":
		return Validation("invalid account number", "account number may contain only letters, digits and hyphen")
	case "oneof":
		return Validation("invalid value", "%s must be one of %s", field, fe.Param())
	default:
		return Validation("invalid input", "%s failed %s validation", field, fe.Tag())
	}
}
