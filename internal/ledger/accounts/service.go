package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/parishledger/parishledger/internal/audit"
	"github.com/parishledger/parishledger/internal/shared"
)

// AuditPort records mutations on ledger entities.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// CacheBumper invalidates derived-balance caches after chart mutations.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service is the sole writer of account structural state and the authority
// for accounting-identity validation.
type Service struct {
	repo     Repository
	auditor  AuditPort
	cache    CacheBumper
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the account registry. auditor and cache may be nil.
func NewService(repo Repository, auditor AuditPort, cache CacheBumper) *Service {
	v := validator.New()
	_ = v.RegisterValidation("accountcode", func(fl validator.FieldLevel) bool {
		return accountCodePattern.MatchString(fl.Field().String())
	})
	return &Service{repo: repo, auditor: auditor, cache: cache, validate: v, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and persists a new account. New accounts are always active
// and never system accounts.
func (s *Service) Create(ctx context.Context, input CreateAccountInput, actor shared.Actor) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Account{}, shared.FromValidator(err)
	}
	if input.Currency == "" {
		input.Currency = DefaultCurrency
	}
	if _, err := currency.ParseISO(input.Currency); err != nil {
		return Account{}, shared.Validation("invalid currency", "unknown currency code %q", input.Currency)
	}

	rc := creationContext{input: input, orgID: actor.OrganisationID.String()}
	if input.ParentID != nil {
		parent, err := s.repo.GetByIDAnyOrg(ctx, *input.ParentID)
		if err == nil {
			rc.parent = &parent
		} else if !shared.IsNotFound(err) {
			return Account{}, err
		}
	}
	if existing, err := s.repo.GetByCode(ctx, actor.OrganisationID, actor.BranchID, input.Code); err == nil {
		rc.duplicate = &existing
	} else if !shared.IsNotFound(err) {
		return Account{}, err
	}
	if err := runCreationRules(rc); err != nil {
		return Account{}, err
	}

	now := s.now()
	account := Account{
		ID:             uuid.New(),
		Code:           input.Code,
		Name:           input.Name,
		Description:    input.Description,
		Type:           input.Type,
		SubType:        input.SubType,
		NormalBalance:  input.NormalBalance,
		ParentID:       input.ParentID,
		FundID:         input.FundID,
		MinistryID:     input.MinistryID,
		Currency:       input.Currency,
		Notes:          input.Notes,
		IsActive:       true,
		OrganisationID: actor.OrganisationID,
		BranchID:       actor.BranchID,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, account); err != nil {
		return Account{}, err
	}
	s.bumpCache(ctx)
	s.record(ctx, actor, audit.ActionCreate, account.ID, map[string]any{
		"after": map[string]any{"code": account.Code, "name": account.Name, "type": account.Type},
	})
	return account, nil
}

// Update applies the supported patch shape. System accounts are immutable,
// and the patch cannot carry type, normal balance or code changes at all.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch UpdateAccountInput, actor shared.Actor) (Account, error) {
	if err := s.validate.Struct(patch); err != nil {
		return Account{}, shared.FromValidator(err)
	}
	account, err := s.repo.GetByID(ctx, actor.OrganisationID, id)
	if err != nil {
		return Account{}, err
	}
	if account.IsSystemAccount {
		return Account{}, shared.Validation("system account immutable", "system account %s cannot be modified", account.Code)
	}

	before := map[string]any{}
	after := map[string]any{}
	if patch.Name != nil && *patch.Name != account.Name {
		before["name"], after["name"] = account.Name, *patch.Name
		account.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		account.Description = *patch.Description
	}
	if patch.SubType != nil {
		account.SubType = *patch.SubType
	}
	if patch.FundID != nil {
		account.FundID = patch.FundID
	}
	if patch.MinistryID != nil {
		account.MinistryID = patch.MinistryID
	}
	if patch.Notes != nil {
		account.Notes = *patch.Notes
	}
	account.UpdatedBy = actor.UserID
	account.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, account); err != nil {
		return Account{}, err
	}
	s.bumpCache(ctx)
	s.record(ctx, actor, audit.ActionUpdate, account.ID, map[string]any{"before": before, "after": after})
	return account, nil
}

// Deactivate soft-deletes an account. Accounts with active children must be
// detached or deactivated first.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor shared.Actor) (Account, error) {
	account, err := s.repo.GetByID(ctx, actor.OrganisationID, id)
	if err != nil {
		return Account{}, err
	}
	if account.IsSystemAccount {
		return Account{}, shared.Validation("system account immutable", "system account %s cannot be deactivated", account.Code)
	}
	children, err := s.repo.CountActiveChildren(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if children > 0 {
		return Account{}, shared.Validation("account has active children",
			"deactivate or detach %d child accounts first", children)
	}
	account.IsActive = false
	account.UpdatedBy = actor.UserID
	account.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, account); err != nil {
		return Account{}, err
	}
	s.bumpCache(ctx)
	s.record(ctx, actor, audit.ActionDelete, account.ID, map[string]any{"before": map[string]any{"is_active": true}})
	return account, nil
}

// GetByID fetches one account within the organisation scope.
func (s *Service) GetByID(ctx context.Context, organisationID, id uuid.UUID) (Account, error) {
	return s.repo.GetByID(ctx, organisationID, id)
}

// GetByCode fetches one account by its code within the branch scope.
func (s *Service) GetByCode(ctx context.Context, organisationID, branchID uuid.UUID, code string) (Account, error) {
	return s.repo.GetByCode(ctx, organisationID, branchID, code)
}

// ChartOfAccounts lists active accounts, optionally filtered by type,
// ordered by code.
func (s *Service) ChartOfAccounts(ctx context.Context, organisationID, branchID uuid.UUID, accountType AccountType) ([]Account, error) {
	if accountType != "" && !accountType.Valid() {
		return nil, shared.Validation("invalid account type", "unknown account type %q", accountType)
	}
	return s.repo.List(ctx, organisationID, branchID, accountType)
}

// Hierarchy returns an account with its direct active children ordered by code.
func (s *Service) Hierarchy(ctx context.Context, organisationID, id uuid.UUID) (AccountHierarchy, error) {
	account, err := s.repo.GetByID(ctx, organisationID, id)
	if err != nil {
		return AccountHierarchy{}, err
	}
	children, err := s.repo.ListActiveChildren(ctx, id)
	if err != nil {
		return AccountHierarchy{}, err
	}
	return AccountHierarchy{Account: account, Children: children}, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action audit.Action, entityID uuid.UUID, changes map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		EntityType:     audit.EntityAccount,
		EntityID:       entityID,
		Action:         action,
		Changes:        changes,
		ActorID:        actor.UserID,
		OrganisationID: actor.OrganisationID,
		BranchID:       actor.BranchID,
		OccurredAt:     s.now(),
	})
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}
