package balance

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/ledger/accounts"
)

// Tolerance absorbs floating-point rounding noise in balance comparisons.
// It is not a business allowance: a genuinely unbalanced ledger fails the
// trial balance check and the engine reports it rather than repairs it.
const Tolerance = 0.01

// Of applies the single balance formula used everywhere in the core:
// debit-normal accounts carry debit minus credit, credit-normal the reverse.
func Of(normal accounts.NormalBalance, debitTotal, creditTotal float64) float64 {
	if normal == accounts.NormalBalanceDebit {
		return debitTotal - creditTotal
	}
	return creditTotal - debitTotal
}

// AccountRow is one account with its aggregated posted activity, the input to
// BuildTrialBalance.
type AccountRow struct {
	AccountID     uuid.UUID
	Code          string
	Name          string
	Type          accounts.AccountType
	NormalBalance accounts.NormalBalance
	DebitTotal    float64
	CreditTotal   float64
}

// TrialBalanceRow is one presented line of the trial balance.
type TrialBalanceRow struct {
	AccountID     uuid.UUID
	Code          string
	Name          string
	Type          accounts.AccountType
	DebitBalance  float64
	CreditBalance float64
}

// TrialBalance lists every account's balance split into debit and credit
// columns, whose totals match when the ledger is internally consistent.
type TrialBalance struct {
	FiscalYear   int
	FiscalPeriod int
	Accounts     []TrialBalanceRow
	TotalDebits  float64
	TotalCredits float64
	IsBalanced   bool
}

// BuildTrialBalance classifies each account's derived balance into its normal
// column. A debit-normal account with a negative derived balance contributes
// nothing to either column; it is never flipped into the credit column. This
// mirrors standard trial-balance presentation.
func BuildTrialBalance(fiscalYear, fiscalPeriod int, rows []AccountRow) TrialBalance {
	tb := TrialBalance{FiscalYear: fiscalYear, FiscalPeriod: fiscalPeriod}
	for _, row := range rows {
		derived := Of(row.NormalBalance, row.DebitTotal, row.CreditTotal)
		out := TrialBalanceRow{AccountID: row.AccountID, Code: row.Code, Name: row.Name, Type: row.Type}
		if derived > 0 {
			if row.NormalBalance == accounts.NormalBalanceDebit {
				out.DebitBalance = derived
			} else {
				out.CreditBalance = derived
			}
		}
		tb.Accounts = append(tb.Accounts, out)
		tb.TotalDebits += out.DebitBalance
		tb.TotalCredits += out.CreditBalance
	}
	sort.Slice(tb.Accounts, func(i, j int) bool {
		return tb.Accounts[i].Code < tb.Accounts[j].Code
	})
	tb.IsBalanced = math.Abs(tb.TotalDebits-tb.TotalCredits) < Tolerance
	return tb
}
