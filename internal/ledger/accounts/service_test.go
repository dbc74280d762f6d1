package accounts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parishledger/parishledger/internal/audit"
	"github.com/parishledger/parishledger/internal/shared"
)

type memoryRepo struct {
	accounts map[uuid.UUID]Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[uuid.UUID]Account)}
}

func (r *memoryRepo) Insert(ctx context.Context, a Account) error {
	for _, existing := range r.accounts {
		if existing.OrganisationID == a.OrganisationID && existing.BranchID == a.BranchID && existing.Code == a.Code {
			return shared.Validation("account code already exists", "account code %s is already in use", a.Code)
		}
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, a Account) error {
	if _, ok := r.accounts[a.ID]; !ok {
		return shared.NotFound("account", a.ID.String())
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, organisationID, id uuid.UUID) (Account, error) {
	a, ok := r.accounts[id]
	if !ok || a.OrganisationID != organisationID {
		return Account{}, shared.NotFound("account", id.String())
	}
	return a, nil
}

func (r *memoryRepo) GetByIDAnyOrg(ctx context.Context, id uuid.UUID) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.NotFound("account", id.String())
	}
	return a, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, organisationID, branchID uuid.UUID, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.OrganisationID == organisationID && a.BranchID == branchID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.NotFound("account", code)
}

func (r *memoryRepo) List(ctx context.Context, organisationID, branchID uuid.UUID, accountType AccountType) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.OrganisationID != organisationID || a.BranchID != branchID || !a.IsActive {
			continue
		}
		if accountType != "" && a.Type != accountType {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) ListActiveChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == parentID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) CountActiveChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	children, _ := r.ListActiveChildren(ctx, parentID)
	return len(children), nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) {
	a.entries = append(a.entries, entry)
}

func testActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), BranchID: uuid.New()}
}

func validInput() CreateAccountInput {
	return CreateAccountInput{
		Code:          "1000",
		Name:          "Cash",
		Type:          AccountTypeAsset,
		NormalBalance: NormalBalanceDebit,
	}
}

func TestCreateAccount(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)
	actor := testActor()

	account, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)
	require.True(t, account.IsActive)
	require.False(t, account.IsSystemAccount)
	require.Equal(t, DefaultCurrency, account.Currency)
	require.Equal(t, actor.OrganisationID, account.OrganisationID)
	require.Len(t, auditor.entries, 1)
	require.Equal(t, audit.ActionCreate, auditor.entries[0].Action)
	require.Equal(t, audit.EntityAccount, auditor.entries[0].EntityType)
}

func TestCreateAccountRejectsNormalBalanceMismatch(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	input := validInput()
	input.NormalBalance = NormalBalanceCredit

	_, err := svc.Create(context.Background(), input, testActor())
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "normal balance mismatch")
}

func TestCreateAccountRejectsMissingFields(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	input := validInput()
	input.Name = ""

	_, err := svc.Create(context.Background(), input, testActor())
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "missing required field")
}

func TestCreateAccountRejectsLongName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	input := validInput()
	input.Name = strings.Repeat("x", 201)

	_, err := svc.Create(context.Background(), input, testActor())
	require.True(t, shared.IsValidation(err))
}

func TestCreateAccountRejectsUnknownCurrency(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	input := validInput()
	input.Currency = "BLORT"

	_, err := svc.Create(context.Background(), input, testActor())
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "invalid currency")
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	actor := testActor()

	_, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)

	input := validInput()
	input.Name = "Petty Cash"
	_, err = svc.Create(context.Background(), input, actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "account code already exists")
}

func TestCreateAccountParentTypeMismatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	actor := testActor()

	parent, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)

	child := CreateAccountInput{
		Code:          "4000",
		Name:          "Tithes",
		Type:          AccountTypeRevenue,
		NormalBalance: NormalBalanceCredit,
		ParentID:      &parent.ID,
	}
	_, err = svc.Create(context.Background(), child, actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "parent account type mismatch")
}

func TestCreateAccountParentFromOtherOrganisation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	parent, err := svc.Create(context.Background(), validInput(), testActor())
	require.NoError(t, err)

	child := validInput()
	child.Code = "1100"
	child.ParentID = &parent.ID
	_, err = svc.Create(context.Background(), child, testActor())
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "parent account not found")
}

func TestUpdateSystemAccountImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	actor := testActor()

	account, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)
	account.IsSystemAccount = true
	repo.accounts[account.ID] = account

	name := "Renamed"
	_, err = svc.Update(context.Background(), account.ID, UpdateAccountInput{Name: &name}, actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "system account immutable")

	_, err = svc.Deactivate(context.Background(), account.ID, actor)
	require.True(t, shared.IsValidation(err))
}

func TestUpdateAccountAppliesPatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })
	actor := testActor()

	account, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)

	name := "Main Cash"
	notes := "teller drawer"
	updated, err := svc.Update(context.Background(), account.ID, UpdateAccountInput{Name: &name, Notes: &notes}, actor)
	require.NoError(t, err)
	require.Equal(t, "Main Cash", updated.Name)
	require.Equal(t, "teller drawer", updated.Notes)
	require.Equal(t, fixed, updated.UpdatedAt)
	// Type and normal balance cannot change through the patch shape.
	require.Equal(t, AccountTypeAsset, updated.Type)
	require.Equal(t, NormalBalanceDebit, updated.NormalBalance)
}

func TestUpdateMissingAccount(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	name := "x"
	_, err := svc.Update(context.Background(), uuid.New(), UpdateAccountInput{Name: &name}, testActor())
	require.True(t, shared.IsNotFound(err))
}

func TestDeactivateRefusedWithActiveChildren(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	actor := testActor()

	parent, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)

	child := validInput()
	child.Code = "1100"
	child.Name = "Till"
	child.ParentID = &parent.ID
	childAccount, err := svc.Create(context.Background(), child, actor)
	require.NoError(t, err)

	_, err = svc.Deactivate(context.Background(), parent.ID, actor)
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "account has active children")

	_, err = svc.Deactivate(context.Background(), childAccount.ID, actor)
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(context.Background(), parent.ID, actor)
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)
}

func TestHierarchyListsDirectActiveChildren(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	actor := testActor()

	parent, err := svc.Create(context.Background(), validInput(), actor)
	require.NoError(t, err)
	for _, code := range []string{"1100", "1200"} {
		child := validInput()
		child.Code = code
		child.Name = "Sub " + code
		child.ParentID = &parent.ID
		_, err = svc.Create(context.Background(), child, actor)
		require.NoError(t, err)
	}

	h, err := svc.Hierarchy(context.Background(), actor.OrganisationID, parent.ID)
	require.NoError(t, err)
	require.Equal(t, parent.ID, h.ID)
	require.Len(t, h.Children, 2)
}
