package bank

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parishledger/parishledger/internal/audit"
	"github.com/parishledger/parishledger/internal/ledger/accounts"
	"github.com/parishledger/parishledger/internal/ledger/balance"
	"github.com/parishledger/parishledger/internal/shared"
)

type memoryBankRepo struct {
	accounts map[uuid.UUID]BankAccount
	gl       *stubRegistry
}

func newMemoryBankRepo(gl *stubRegistry) *memoryBankRepo {
	return &memoryBankRepo{accounts: make(map[uuid.UUID]BankAccount), gl: gl}
}

func (r *memoryBankRepo) CreateWithBinding(ctx context.Context, b BankAccount) error {
	gl, ok := r.gl.accounts[b.GLAccountID]
	if !ok || gl.IsBankAccount {
		return shared.Validation("gl account already linked", "account %s is already bound to a bank account", b.GLAccountID)
	}
	for _, existing := range r.accounts {
		if existing.OrganisationID == b.OrganisationID && existing.BranchID == b.BranchID && existing.AccountNumber == b.AccountNumber {
			return shared.Validation("account number already exists", "account number %s is already in use", b.AccountNumber)
		}
	}
	gl.IsBankAccount = true
	gl.BankAccountID = &b.ID
	r.gl.accounts[b.GLAccountID] = gl
	r.accounts[b.ID] = b
	return nil
}

func (r *memoryBankRepo) Update(ctx context.Context, b BankAccount) error {
	if _, ok := r.accounts[b.ID]; !ok {
		return shared.NotFound("bank account", b.ID.String())
	}
	r.accounts[b.ID] = b
	return nil
}

func (r *memoryBankRepo) GetByID(ctx context.Context, organisationID, id uuid.UUID) (BankAccount, error) {
	b, ok := r.accounts[id]
	if !ok || b.OrganisationID != organisationID {
		return BankAccount{}, shared.NotFound("bank account", id.String())
	}
	return b, nil
}

func (r *memoryBankRepo) GetByNumber(ctx context.Context, organisationID, branchID uuid.UUID, accountNumber string) (BankAccount, error) {
	for _, b := range r.accounts {
		if b.OrganisationID == organisationID && b.BranchID == branchID && b.AccountNumber == accountNumber {
			return b, nil
		}
	}
	return BankAccount{}, shared.NotFound("bank account", accountNumber)
}

func (r *memoryBankRepo) List(ctx context.Context, organisationID, branchID uuid.UUID) ([]BankAccount, error) {
	var out []BankAccount
	for _, b := range r.accounts {
		if b.OrganisationID == organisationID && b.BranchID == branchID {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubRegistry struct {
	accounts map[uuid.UUID]accounts.Account
}

func (s *stubRegistry) GetByID(ctx context.Context, organisationID, id uuid.UUID) (accounts.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.OrganisationID != organisationID {
		return accounts.Account{}, shared.NotFound("account", id.String())
	}
	return a, nil
}

type stubBalances struct {
	balances map[uuid.UUID]float64
}

func (s *stubBalances) AccountBalance(ctx context.Context, organisationID, accountID uuid.UUID, asOf *time.Time) (balance.AccountBalance, error) {
	return balance.AccountBalance{AccountID: accountID, Balance: s.balances[accountID]}, nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) {
	a.entries = append(a.entries, entry)
}

type harness struct {
	svc      *Service
	repo     *memoryBankRepo
	registry *stubRegistry
	balances *stubBalances
	auditor  *recordingAuditor
	actor    shared.Actor
}

func newHarness() *harness {
	registry := &stubRegistry{accounts: map[uuid.UUID]accounts.Account{}}
	repo := newMemoryBankRepo(registry)
	balances := &stubBalances{balances: map[uuid.UUID]float64{}}
	auditor := &recordingAuditor{}
	return &harness{
		svc:      NewService(repo, registry, balances, auditor),
		repo:     repo,
		registry: registry,
		balances: balances,
		auditor:  auditor,
		actor:    shared.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), BranchID: uuid.New()},
	}
}

func (h *harness) addGLAccount(t accounts.AccountType, active bool) accounts.Account {
	a := accounts.Account{
		ID:             uuid.New(),
		Code:           "1000",
		Name:           "Cash at Bank",
		Type:           t,
		NormalBalance:  accounts.NormalBalanceFor(t),
		IsActive:       active,
		OrganisationID: h.actor.OrganisationID,
		BranchID:       h.actor.BranchID,
	}
	h.registry.accounts[a.ID] = a
	return a
}

func validCreate(glID uuid.UUID) CreateInput {
	return CreateInput{
		GLAccountID:   glID,
		AccountName:   "Operating Account",
		BankName:      "First Bank",
		AccountNumber: "0123456789",
		Type:          TypeChecking,
	}
}

func TestCreateBindsGLAccount(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)

	created, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.Equal(t, gl.ID, created.GLAccountID)

	bound := h.registry.accounts[gl.ID]
	require.True(t, bound.IsBankAccount)
	require.NotNil(t, bound.BankAccountID)
	require.Equal(t, created.ID, *bound.BankAccountID)

	require.Len(t, h.auditor.entries, 1)
	require.Equal(t, audit.ActionCreate, h.auditor.entries[0].Action)
	require.Equal(t, audit.EntityBankAccount, h.auditor.entries[0].EntityType)
}

func TestCreateRejectsNonAssetGLAccount(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeRevenue, true)

	_, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "gl account not asset")
}

func TestCreateRejectsInactiveGLAccount(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, false)

	_, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "gl account inactive")
}

func TestCreateRejectsDoubleBinding(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)

	_, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)

	second := validCreate(gl.ID)
	second.AccountNumber = "9876543210"
	_, err = h.svc.Create(context.Background(), second, h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "already bound")
}

func TestCreateRejectsDuplicateAccountNumber(t *testing.T) {
	h := newHarness()
	first := h.addGLAccount(accounts.AccountTypeAsset, true)
	second := h.addGLAccount(accounts.AccountTypeAsset, true)

	_, err := h.svc.Create(context.Background(), validCreate(first.ID), h.actor)
	require.NoError(t, err)

	_, err = h.svc.Create(context.Background(), validCreate(second.ID), h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "account number already exists")
}

func TestCreateRejectsBadAccountNumberCharset(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	input := validCreate(gl.ID)
	input.AccountNumber = "01234 56789"

	_, err := h.svc.Create(context.Background(), input, h.actor)
	require.True(t, shared.IsValidation(err))
}

func TestCreateRejectsUnknownType(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	input := validCreate(gl.ID)
	input.Type = "OFFSHORE"

	_, err := h.svc.Create(context.Background(), input, h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "invalid bank account type")
}

func TestUpdateBankBalanceValidation(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	created, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)

	cases := []struct {
		name    string
		balance float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"below range", -10_000_001},
		{"above range", 1_000_000_001},
		{"three decimals", 100.125},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.UpdateBankBalance(context.Background(), created.ID, tc.balance, h.actor)
			require.True(t, shared.IsValidation(err))
		})
	}

	updated, err := h.svc.UpdateBankBalance(context.Background(), created.ID, 1000.25, h.actor)
	require.NoError(t, err)
	require.Equal(t, 1000.25, updated.BankBalance)
	require.NotNil(t, updated.LastReconciled)

	// Large amounts carry representation error above any fixed epsilon; the
	// decimal check must still accept them.
	for _, balance := range []float64{281573447.90, 999_999_999.99, -9_999_999.99} {
		updated, err := h.svc.UpdateBankBalance(context.Background(), created.ID, balance, h.actor)
		require.NoError(t, err)
		require.Equal(t, balance, updated.BankBalance)
	}
}

func TestReconciliationDerivation(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	created, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)

	_, err = h.svc.UpdateBankBalance(context.Background(), created.ID, 1000.00, h.actor)
	require.NoError(t, err)
	h.balances.balances[gl.ID] = 998.50

	rec, err := h.svc.FindOne(context.Background(), h.actor.OrganisationID, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 998.50, rec.BookBalance, 1e-9)
	require.InDelta(t, 1.50, rec.Difference, 1e-9)
	require.False(t, rec.IsReconciled)

	h.balances.balances[gl.ID] = 1000.00
	rec, err = h.svc.FindOne(context.Background(), h.actor.OrganisationID, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 0, rec.Difference, 1e-9)
	require.True(t, rec.IsReconciled)
}

func TestDeactivateLeavesGLAccountAlone(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	created, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)

	deactivated, err := h.svc.Deactivate(context.Background(), created.ID, h.actor)
	require.NoError(t, err)
	require.Equal(t, StatusInactive, deactivated.Status)
	require.True(t, h.registry.accounts[gl.ID].IsBankAccount)
}

func TestUpdateReChecksAccountNumberUniqueness(t *testing.T) {
	h := newHarness()
	first := h.addGLAccount(accounts.AccountTypeAsset, true)
	second := h.addGLAccount(accounts.AccountTypeAsset, true)

	a, err := h.svc.Create(context.Background(), validCreate(first.ID), h.actor)
	require.NoError(t, err)
	inputB := validCreate(second.ID)
	inputB.AccountNumber = "222"
	b, err := h.svc.Create(context.Background(), inputB, h.actor)
	require.NoError(t, err)

	taken := a.AccountNumber
	_, err = h.svc.Update(context.Background(), b.ID, UpdateInput{AccountNumber: &taken}, h.actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "account number already exists")
}

// End-to-end: create account, bind, derive balance from postings, reconcile.
func TestReconciliationScenario(t *testing.T) {
	h := newHarness()
	gl := h.addGLAccount(accounts.AccountTypeAsset, true)
	created, err := h.svc.Create(context.Background(), validCreate(gl.ID), h.actor)
	require.NoError(t, err)

	// Posted lines: debit 500, credit 200 → book balance 300.
	h.balances.balances[gl.ID] = 300.00

	_, err = h.svc.UpdateBankBalance(context.Background(), created.ID, 300.00, h.actor)
	require.NoError(t, err)

	rec, err := h.svc.FindOne(context.Background(), h.actor.OrganisationID, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 0, rec.Difference, 1e-9)
	require.True(t, rec.IsReconciled)
}
