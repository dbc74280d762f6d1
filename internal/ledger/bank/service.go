package bank

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/parishledger/parishledger/internal/audit"
	"github.com/parishledger/parishledger/internal/ledger/accounts"
	"github.com/parishledger/parishledger/internal/ledger/balance"
	"github.com/parishledger/parishledger/internal/shared"
)

const (
	minBankBalance = -10_000_000
	maxBankBalance = 1_000_000_000
)

var accountNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Registry is the slice of the account registry the tracker depends on.
type Registry interface {
	GetByID(ctx context.Context, organisationID, id uuid.UUID) (accounts.Account, error)
}

// BalanceReader derives the book balance for a GL account.
type BalanceReader interface {
	AccountBalance(ctx context.Context, organisationID, accountID uuid.UUID, asOf *time.Time) (balance.AccountBalance, error)
}

// AuditPort records mutations on bank entities.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns the bank account entity and its binding to a GL account. It
// never touches journal lines itself; book balances come from the balance
// engine.
type Service struct {
	repo     Repository
	registry Registry
	balances BalanceReader
	auditor  AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the bank reconciliation tracker. auditor may be nil.
func NewService(repo Repository, registry Registry, balances BalanceReader, auditor AuditPort) *Service {
	v := validator.New()
	_ = v.RegisterValidation("banknumber", func(fl validator.FieldLevel) bool {
		return accountNumberPattern.MatchString(fl.Field().String())
	})
	return &Service{repo: repo, registry: registry, balances: balances, auditor: auditor, validate: v, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create binds a new bank account to an existing GL account. The GL account
// must be ASSET-type, active, in the caller's organisation and not already
// bound; the flag flip and the insert happen in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (BankAccount, error) {
	input.AccountName = strings.TrimSpace(input.AccountName)
	input.BankName = strings.TrimSpace(input.BankName)
	input.AccountNumber = strings.TrimSpace(input.AccountNumber)
	if err := s.validate.Struct(input); err != nil {
		return BankAccount{}, shared.FromValidator(err)
	}
	if !input.Type.Valid() {
		return BankAccount{}, shared.Validation("invalid bank account type", "unknown bank account type %q", input.Type)
	}
	if input.Currency == "" {
		input.Currency = accounts.DefaultCurrency
	}
	if _, err := currency.ParseISO(input.Currency); err != nil {
		return BankAccount{}, shared.Validation("invalid currency", "unknown currency code %q", input.Currency)
	}

	gl, err := s.registry.GetByID(ctx, actor.OrganisationID, input.GLAccountID)
	if err != nil {
		return BankAccount{}, err
	}
	if gl.Type != accounts.AccountTypeAsset {
		return BankAccount{}, shared.Validation("gl account not asset", "account %s is %s, bank accounts bind to ASSET accounts", gl.Code, gl.Type)
	}
	if !gl.IsActive {
		return BankAccount{}, shared.Validation("gl account inactive", "account %s is not active", gl.Code)
	}
	if gl.IsBankAccount {
		return BankAccount{}, shared.Validation("gl account already linked", "account %s is already bound to a bank account", gl.Code)
	}
	if _, err := s.repo.GetByNumber(ctx, actor.OrganisationID, actor.BranchID, input.AccountNumber); err == nil {
		return BankAccount{}, shared.Validation("account number already exists", "account number %s is already in use", input.AccountNumber)
	} else if !shared.IsNotFound(err) {
		return BankAccount{}, err
	}

	now := s.now()
	account := BankAccount{
		ID:             uuid.New(),
		GLAccountID:    gl.ID,
		AccountName:    input.AccountName,
		BankName:       input.BankName,
		AccountNumber:  input.AccountNumber,
		Type:           input.Type,
		Currency:       input.Currency,
		Status:         StatusActive,
		OrganisationID: actor.OrganisationID,
		BranchID:       actor.BranchID,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateWithBinding(ctx, account); err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actor, audit.ActionCreate, account.ID, map[string]any{
		"after": map[string]any{"account_number": account.AccountNumber, "gl_account_id": gl.ID},
	})
	return account, nil
}

// Update applies descriptive field changes. A changed account number is
// re-checked for uniqueness.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch UpdateInput, actor shared.Actor) (BankAccount, error) {
	if err := s.validate.Struct(patch); err != nil {
		return BankAccount{}, shared.FromValidator(err)
	}
	account, err := s.repo.GetByID(ctx, actor.OrganisationID, id)
	if err != nil {
		return BankAccount{}, err
	}
	before := map[string]any{}
	after := map[string]any{}
	if patch.AccountName != nil {
		account.AccountName = strings.TrimSpace(*patch.AccountName)
	}
	if patch.BankName != nil {
		account.BankName = strings.TrimSpace(*patch.BankName)
	}
	if patch.AccountNumber != nil && *patch.AccountNumber != account.AccountNumber {
		if _, err := s.repo.GetByNumber(ctx, actor.OrganisationID, actor.BranchID, *patch.AccountNumber); err == nil {
			return BankAccount{}, shared.Validation("account number already exists", "account number %s is already in use", *patch.AccountNumber)
		} else if !shared.IsNotFound(err) {
			return BankAccount{}, err
		}
		before["account_number"], after["account_number"] = account.AccountNumber, *patch.AccountNumber
		account.AccountNumber = *patch.AccountNumber
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return BankAccount{}, shared.Validation("invalid bank account type", "unknown bank account type %q", *patch.Type)
		}
		account.Type = *patch.Type
	}
	account.UpdatedBy = actor.UserID
	account.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, account); err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actor, audit.ActionUpdate, account.ID, map[string]any{"before": before, "after": after})
	return account, nil
}

// UpdateBankBalance ingests an externally reported statement balance. Only the
// raw reported figure is persisted; book balance, difference and the
// reconciled flag are recomputed on every read, so there is no staleness to
// manage.
func (s *Service) UpdateBankBalance(ctx context.Context, id uuid.UUID, newBalance float64, actor shared.Actor) (BankAccount, error) {
	if math.IsNaN(newBalance) || math.IsInf(newBalance, 0) {
		return BankAccount{}, shared.Validation("invalid bank balance", "bank balance must be a finite number")
	}
	if newBalance < minBankBalance || newBalance > maxBankBalance {
		return BankAccount{}, shared.Validation("bank balance out of range",
			"bank balance must be between %d and %d", minBankBalance, maxBankBalance)
	}
	// Round-trip through cents; an absolute epsilon would misjudge large
	// amounts whose representation error exceeds it.
	if cents := math.Round(newBalance * 100); cents/100 != newBalance {
		return BankAccount{}, shared.Validation("invalid bank balance", "bank balance may have at most 2 decimal places")
	}
	account, err := s.repo.GetByID(ctx, actor.OrganisationID, id)
	if err != nil {
		return BankAccount{}, err
	}
	previous := account.BankBalance
	now := s.now()
	account.BankBalance = newBalance
	account.LastReconciled = &now
	account.UpdatedBy = actor.UserID
	account.UpdatedAt = now
	if err := s.repo.Update(ctx, account); err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actor, audit.ActionReconcile, account.ID, map[string]any{
		"before": map[string]any{"bank_balance": previous},
		"after":  map[string]any{"bank_balance": newBalance},
	})
	return account, nil
}

// Deactivate flips the status to INACTIVE. The bound GL account is untouched.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor shared.Actor) (BankAccount, error) {
	account, err := s.repo.GetByID(ctx, actor.OrganisationID, id)
	if err != nil {
		return BankAccount{}, err
	}
	account.Status = StatusInactive
	account.UpdatedBy = actor.UserID
	account.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, account); err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actor, audit.ActionUpdate, account.ID, map[string]any{
		"before": map[string]any{"status": StatusActive},
		"after":  map[string]any{"status": StatusInactive},
	})
	return account, nil
}

// FindOne returns one bank account composed with its derived reconciliation
// state.
func (s *Service) FindOne(ctx context.Context, organisationID, id uuid.UUID) (Reconciliation, error) {
	account, err := s.repo.GetByID(ctx, organisationID, id)
	if err != nil {
		return Reconciliation{}, err
	}
	return s.reconcile(ctx, account)
}

// FindAll returns every bank account in scope with derived reconciliation
// state.
func (s *Service) FindAll(ctx context.Context, organisationID, branchID uuid.UUID) ([]Reconciliation, error) {
	list, err := s.repo.List(ctx, organisationID, branchID)
	if err != nil {
		return nil, err
	}
	out := make([]Reconciliation, 0, len(list))
	for _, account := range list {
		rec, err := s.reconcile(ctx, account)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) reconcile(ctx context.Context, account BankAccount) (Reconciliation, error) {
	book, err := s.balances.AccountBalance(ctx, account.OrganisationID, account.GLAccountID, nil)
	if err != nil {
		return Reconciliation{}, err
	}
	difference := account.BankBalance - book.Balance
	return Reconciliation{
		BankAccount:  account,
		BookBalance:  book.Balance,
		Difference:   difference,
		IsReconciled: math.Abs(difference) < balance.Tolerance,
	}, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action audit.Action, entityID uuid.UUID, changes map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		EntityType:     audit.EntityBankAccount,
		EntityID:       entityID,
		Action:         action,
		Changes:        changes,
		ActorID:        actor.UserID,
		OrganisationID: actor.OrganisationID,
		BranchID:       actor.BranchID,
		OccurredAt:     s.now(),
	})
}
