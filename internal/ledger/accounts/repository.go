package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parishledger/parishledger/internal/platform/db"
	"github.com/parishledger/parishledger/internal/shared"
)

// Repository encapsulates storage operations for chart-of-accounts rows.
type Repository interface {
	Insert(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
	GetByID(ctx context.Context, organisationID, id uuid.UUID) (Account, error)
	// GetByIDAnyOrg resolves an account without tenant scoping. It exists for
	// parent resolution only, so the cross-organisation rule can fire.
	GetByIDAnyOrg(ctx context.Context, id uuid.UUID) (Account, error)
	GetByCode(ctx context.Context, organisationID, branchID uuid.UUID, code string) (Account, error)
	List(ctx context.Context, organisationID, branchID uuid.UUID, accountType AccountType) ([]Account, error)
	ListActiveChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error)
	CountActiveChildren(ctx context.Context, parentID uuid.UUID) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a pgx-backed account repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const accountColumns = `id, code, name, description, type, sub_type, normal_balance, parent_id, fund_id, ministry_id,
currency, notes, is_active, is_system_account, is_bank_account, bank_account_id,
organisation_id, branch_id, created_by, updated_by, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Type, &a.SubType, &a.NormalBalance,
		&a.ParentID, &a.FundID, &a.MinistryID, &a.Currency, &a.Notes,
		&a.IsActive, &a.IsSystemAccount, &a.IsBankAccount, &a.BankAccountID,
		&a.OrganisationID, &a.BranchID, &a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Insert(ctx context.Context, a Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, code, name, description, type, sub_type, normal_balance, parent_id, fund_id, ministry_id,
currency, notes, is_active, is_system_account, is_bank_account, organisation_id, branch_id, created_by, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		a.ID, a.Code, a.Name, a.Description, a.Type, a.SubType, a.NormalBalance, a.ParentID, a.FundID, a.MinistryID,
		a.Currency, a.Notes, a.IsActive, a.IsSystemAccount, a.IsBankAccount,
		a.OrganisationID, a.BranchID, a.CreatedBy, a.UpdatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_org_branch_code") {
			return shared.Validation("account code already exists", "account code %s is already in use", a.Code)
		}
		return err
	}
	return nil
}

func (r *repository) Update(ctx context.Context, a Account) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET name=$2, description=$3, sub_type=$4, fund_id=$5, ministry_id=$6,
notes=$7, is_active=$8, is_bank_account=$9, bank_account_id=$10, updated_by=$11, updated_at=$12 WHERE id=$1`,
		a.ID, a.Name, a.Description, a.SubType, a.FundID, a.MinistryID,
		a.Notes, a.IsActive, a.IsBankAccount, a.BankAccountID, a.UpdatedBy, a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account", a.ID.String())
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, organisationID, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND organisation_id=$2`, id, organisationID)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", id.String())
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByIDAnyOrg(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", id.String())
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByCode(ctx context.Context, organisationID, branchID uuid.UUID, code string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE organisation_id=$1 AND branch_id=$2 AND code=$3`,
		organisationID, branchID, code)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, organisationID, branchID uuid.UUID, accountType AccountType) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE organisation_id=$1 AND branch_id=$2 AND is_active`
	args := []any{organisationID, branchID}
	if accountType != "" {
		query += ` AND type=$3`
		args = append(args, accountType)
	}
	query += ` ORDER BY code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) ListActiveChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id=$1 AND is_active ORDER BY code`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) CountActiveChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1 AND is_active`, parentID).Scan(&count)
	return count, err
}
