package balance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/ledger/accounts"
	"github.com/parishledger/parishledger/internal/ledger/journals"
	"github.com/parishledger/parishledger/internal/shared"
)

// Registry is the slice of the account registry the engine depends on.
type Registry interface {
	GetByID(ctx context.Context, organisationID, id uuid.UUID) (accounts.Account, error)
	ChartOfAccounts(ctx context.Context, organisationID, branchID uuid.UUID, accountType accounts.AccountType) ([]accounts.Account, error)
	Hierarchy(ctx context.Context, organisationID, id uuid.UUID) (accounts.AccountHierarchy, error)
}

// AccountBalance is the derived monetary state of one account.
type AccountBalance struct {
	AccountID   uuid.UUID
	DebitTotal  float64
	CreditTotal float64
	Balance     float64
}

// UnbalancedObserver counts trial balances whose columns diverged, normally
// backed by the Prometheus metrics registry.
type UnbalancedObserver interface {
	ObserveUnbalancedLedger(organisationID string)
}

// Engine derives monetary state from the journal without mutating anything.
type Engine struct {
	registry Registry
	journal  journals.Reader
	cache    *Cache
	observer UnbalancedObserver
}

// NewEngine builds the balance engine. cache may be nil.
func NewEngine(registry Registry, journal journals.Reader, cache *Cache) *Engine {
	return &Engine{registry: registry, journal: journal, cache: cache}
}

// WithObserver attaches an imbalance observer.
func (e *Engine) WithObserver(observer UnbalancedObserver) *Engine {
	e.observer = observer
	return e
}

// AccountBalance sums posted debit and credit activity for one account and
// applies the balance formula for its normal balance. asOf, when given,
// bounds the aggregation by posting date.
func (e *Engine) AccountBalance(ctx context.Context, organisationID, accountID uuid.UUID, asOf *time.Time) (AccountBalance, error) {
	account, err := e.registry.GetByID(ctx, organisationID, accountID)
	if err != nil {
		return AccountBalance{}, err
	}
	totals, err := e.journal.LineTotals(ctx, accountID, asOf)
	if err != nil {
		return AccountBalance{}, err
	}
	return AccountBalance{
		AccountID:   account.ID,
		DebitTotal:  totals.Debit,
		CreditTotal: totals.Credit,
		Balance:     Of(account.NormalBalance, totals.Debit, totals.Credit),
	}, nil
}

// AccountHierarchy is a structural read; existence checking is delegated to
// the registry.
func (e *Engine) AccountHierarchy(ctx context.Context, organisationID, accountID uuid.UUID) (accounts.AccountHierarchy, error) {
	return e.registry.Hierarchy(ctx, organisationID, accountID)
}

// TrialBalance computes the organisation-wide trial balance for a fiscal
// period. Results are cached until the chart of accounts changes or the TTL
// expires.
func (e *Engine) TrialBalance(ctx context.Context, organisationID, branchID uuid.UUID, fiscalYear, fiscalPeriod int) (TrialBalance, error) {
	if fiscalPeriod < 1 || fiscalPeriod > 12 {
		return TrialBalance{}, shared.Validation("invalid fiscal period", "fiscal period must be between 1 and 12, got %d", fiscalPeriod)
	}
	if fiscalYear < 1900 || fiscalYear > 9999 {
		return TrialBalance{}, shared.Validation("invalid fiscal year", "fiscal year %d out of range", fiscalYear)
	}

	if tb, ok := e.cache.GetTrialBalance(ctx, organisationID, branchID, fiscalYear, fiscalPeriod); ok {
		return tb, nil
	}

	active, err := e.registry.ChartOfAccounts(ctx, organisationID, branchID, "")
	if err != nil {
		return TrialBalance{}, err
	}
	asOf := periodEnd(fiscalYear, fiscalPeriod)
	activity, err := e.journal.ActivityByAccount(ctx, organisationID, branchID, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	byAccount := make(map[uuid.UUID]journals.AccountActivity, len(activity))
	for _, a := range activity {
		byAccount[a.AccountID] = a
	}

	rows := make([]AccountRow, 0, len(active))
	for _, account := range active {
		act := byAccount[account.ID]
		rows = append(rows, AccountRow{
			AccountID:     account.ID,
			Code:          account.Code,
			Name:          account.Name,
			Type:          account.Type,
			NormalBalance: account.NormalBalance,
			DebitTotal:    act.Debit,
			CreditTotal:   act.Credit,
		})
	}
	tb := BuildTrialBalance(fiscalYear, fiscalPeriod, rows)
	if !tb.IsBalanced && e.observer != nil {
		e.observer.ObserveUnbalancedLedger(organisationID.String())
	}
	e.cache.SetTrialBalance(ctx, organisationID, branchID, tb)
	return tb, nil
}

// periodEnd resolves a fiscal (year, month) to the last instant of the month.
func periodEnd(year, month int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}
