package bank

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parishledger/parishledger/internal/platform/db"
	"github.com/parishledger/parishledger/internal/shared"
)

// Repository encapsulates storage operations for bank accounts, including the
// transactional binding to the GL account.
type Repository interface {
	// CreateWithBinding inserts the bank account and flips the GL account's
	// bank flag in a single transaction. Partial failure leaves neither side
	// updated.
	CreateWithBinding(ctx context.Context, account BankAccount) error
	Update(ctx context.Context, account BankAccount) error
	GetByID(ctx context.Context, organisationID, id uuid.UUID) (BankAccount, error)
	GetByNumber(ctx context.Context, organisationID, branchID uuid.UUID, accountNumber string) (BankAccount, error)
	List(ctx context.Context, organisationID, branchID uuid.UUID) ([]BankAccount, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a pgx-backed bank account repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const bankColumns = `id, gl_account_id, account_name, bank_name, account_number, type, currency, bank_balance,
status, last_reconciled, organisation_id, branch_id, created_by, updated_by, created_at, updated_at`

func scanBankAccount(row pgx.Row) (BankAccount, error) {
	var b BankAccount
	err := row.Scan(&b.ID, &b.GLAccountID, &b.AccountName, &b.BankName, &b.AccountNumber, &b.Type, &b.Currency,
		&b.BankBalance, &b.Status, &b.LastReconciled, &b.OrganisationID, &b.BranchID,
		&b.CreatedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *repository) CreateWithBinding(ctx context.Context, b BankAccount) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// The WHERE guard makes concurrent bindings of the same GL account
		// lose cleanly instead of double-linking.
		cmd, err := tx.Exec(ctx, `UPDATE accounts SET is_bank_account = TRUE, bank_account_id = $2, updated_at = $3
WHERE id = $1 AND is_bank_account = FALSE`, b.GLAccountID, b.ID, b.UpdatedAt)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return shared.Validation("gl account already linked", "account %s is already bound to a bank account", b.GLAccountID)
		}
		_, err = tx.Exec(ctx, `INSERT INTO bank_accounts (id, gl_account_id, account_name, bank_name, account_number, type, currency, bank_balance,
status, last_reconciled, organisation_id, branch_id, created_by, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			b.ID, b.GLAccountID, b.AccountName, b.BankName, b.AccountNumber, b.Type, b.Currency, b.BankBalance,
			b.Status, b.LastReconciled, b.OrganisationID, b.BranchID, b.CreatedBy, b.UpdatedBy, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err, "uq_bank_accounts_org_branch_number") {
				return shared.Validation("account number already exists", "account number %s is already in use", b.AccountNumber)
			}
			if db.IsUniqueViolation(err, "uq_bank_accounts_gl_account") {
				return shared.Validation("gl account already linked", "account %s is already bound to a bank account", b.GLAccountID)
			}
			return err
		}
		return nil
	})
}

func (r *repository) Update(ctx context.Context, b BankAccount) error {
	cmd, err := r.db.Exec(ctx, `UPDATE bank_accounts SET account_name=$2, bank_name=$3, account_number=$4, type=$5,
bank_balance=$6, status=$7, last_reconciled=$8, updated_by=$9, updated_at=$10 WHERE id=$1`,
		b.ID, b.AccountName, b.BankName, b.AccountNumber, b.Type,
		b.BankBalance, b.Status, b.LastReconciled, b.UpdatedBy, b.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bank_accounts_org_branch_number") {
			return shared.Validation("account number already exists", "account number %s is already in use", b.AccountNumber)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("bank account", b.ID.String())
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, organisationID, id uuid.UUID) (BankAccount, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bankColumns+` FROM bank_accounts WHERE id=$1 AND organisation_id=$2`, id, organisationID)
	b, err := scanBankAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, shared.NotFound("bank account", id.String())
		}
		return BankAccount{}, err
	}
	return b, nil
}

func (r *repository) GetByNumber(ctx context.Context, organisationID, branchID uuid.UUID, accountNumber string) (BankAccount, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bankColumns+` FROM bank_accounts WHERE organisation_id=$1 AND branch_id=$2 AND account_number=$3`,
		organisationID, branchID, accountNumber)
	b, err := scanBankAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, shared.NotFound("bank account", accountNumber)
		}
		return BankAccount{}, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, organisationID, branchID uuid.UUID) ([]BankAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bankColumns+` FROM bank_accounts WHERE organisation_id=$1 AND branch_id=$2 ORDER BY account_name`,
		organisationID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BankAccount
	for rows.Next() {
		b, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
