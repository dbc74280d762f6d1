package journals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader exposes the aggregations the balance engine needs. The POSTED filter
// lives in the query itself: unposted and post-dated activity never reaches
// the caller.
type Reader interface {
	LineTotals(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (Totals, error)
	ActivityByAccount(ctx context.Context, organisationID, branchID uuid.UUID, asOf time.Time) ([]AccountActivity, error)
}

type reader struct {
	db *pgxpool.Pool
}

// NewReader builds a pgx-backed journal reader.
func NewReader(pool *pgxpool.Pool) Reader {
	return &reader{db: pool}
}

func (r *reader) LineTotals(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (Totals, error) {
	query := `SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = $1 AND e.status = 'POSTED'`
	args := []any{accountID}
	if asOf != nil {
		query += ` AND e.posting_date <= $2`
		args = append(args, *asOf)
	}
	var t Totals
	if err := r.db.QueryRow(ctx, query, args...).Scan(&t.Debit, &t.Credit); err != nil {
		return Totals{}, err
	}
	return t, nil
}

func (r *reader) ActivityByAccount(ctx context.Context, organisationID, branchID uuid.UUID, asOf time.Time) ([]AccountActivity, error) {
	rows, err := r.db.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.organisation_id = $1 AND e.branch_id = $2 AND e.status = 'POSTED' AND e.posting_date <= $3
GROUP BY l.account_id`, organisationID, branchID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Debit, &a.Credit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
