package accounts

import (
	"regexp"

	"github.com/parishledger/parishledger/internal/shared"
)

// creationContext carries everything the creation rules need: the raw input,
// the resolved parent (nil when no parent was requested) and the result of the
// duplicate-code lookup. Resolution happens once in the service; rules stay
// pure so each invariant can be tested in isolation.
type creationContext struct {
	input     CreateAccountInput
	parent    *Account
	duplicate *Account
	orgID     string
}

// creationRule checks a single invariant and returns a ValidationError naming
// the violated rule, or nil.
type creationRule func(creationContext) error

var accountCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// creationRules is the ordered pipeline applied by Create. Order matters:
// structural checks run before accounting-identity checks so error messages
// point at the first actionable problem.
var creationRules = []creationRule{
	ruleCodeCharset,
	ruleKnownType,
	ruleKnownNormalBalance,
	ruleNormalBalanceMatchesType,
	ruleParentExists,
	ruleParentActive,
	ruleParentSameOrganisation,
	ruleParentSameType,
	ruleCodeUnique,
}

func runCreationRules(rc creationContext) error {
	for _, rule := range creationRules {
		if err := rule(rc); err != nil {
			return err
		}
	}
	return nil
}

func ruleCodeCharset(rc creationContext) error {
	if !accountCodePattern.MatchString(rc.input.Code) {
		return shared.Validation("invalid account code", "account code may contain only letters, digits, underscore and hyphen")
	}
	return nil
}

func ruleKnownType(rc creationContext) error {
	if !rc.input.Type.Valid() {
		return shared.Validation("invalid account type", "unknown account type %q", rc.input.Type)
	}
	return nil
}

func ruleKnownNormalBalance(rc creationContext) error {
	if !rc.input.NormalBalance.Valid() {
		return shared.Validation("invalid normal balance", "unknown normal balance %q", rc.input.NormalBalance)
	}
	return nil
}

// ruleNormalBalanceMatchesType enforces the accounting identity: the normal
// balance is functionally determined by the account type.
func ruleNormalBalanceMatchesType(rc creationContext) error {
	if expected := NormalBalanceFor(rc.input.Type); rc.input.NormalBalance != expected {
		return shared.Validation("normal balance mismatch",
			"%s accounts must have %s normal balance", rc.input.Type, expected)
	}
	return nil
}

func ruleParentExists(rc creationContext) error {
	if rc.input.ParentID != nil && rc.parent == nil {
		return shared.Validation("parent account not found", "parent account %s does not exist", rc.input.ParentID)
	}
	return nil
}

func ruleParentActive(rc creationContext) error {
	if rc.parent != nil && !rc.parent.IsActive {
		return shared.Validation("parent account inactive", "parent account %s is not active", rc.parent.Code)
	}
	return nil
}

func ruleParentSameOrganisation(rc creationContext) error {
	if rc.parent != nil && rc.parent.OrganisationID.String() != rc.orgID {
		return shared.Validation("parent account not found", "parent account %s does not exist", rc.parent.ID)
	}
	return nil
}

func ruleParentSameType(rc creationContext) error {
	if rc.parent != nil && rc.parent.Type != rc.input.Type {
		return shared.Validation("parent account type mismatch",
			"parent account is %s, child is %s", rc.parent.Type, rc.input.Type)
	}
	return nil
}

// ruleCodeUnique is a convenience pre-check. The database unique constraint on
// (organisation_id, branch_id, code) is the real guard against races.
func ruleCodeUnique(rc creationContext) error {
	if rc.duplicate != nil {
		return shared.Validation("account code already exists",
			"account code %s is already in use", rc.input.Code)
	}
	return nil
}
