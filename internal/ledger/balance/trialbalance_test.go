package balance

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/ledger/accounts"
)

func TestBalanceFormula(t *testing.T) {
	if got := Of(accounts.NormalBalanceDebit, 500, 200); got != 300 {
		t.Fatalf("debit-normal balance = %v, want 300", got)
	}
	if got := Of(accounts.NormalBalanceCredit, 500, 200); got != -300 {
		t.Fatalf("credit-normal balance = %v, want -300", got)
	}
}

func TestBuildTrialBalanceBalanced(t *testing.T) {
	rows := []AccountRow{
		{AccountID: uuid.New(), Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalBalanceDebit, DebitTotal: 700, CreditTotal: 200},
		{AccountID: uuid.New(), Code: "4000", Name: "Tithes", Type: accounts.AccountTypeRevenue, NormalBalance: accounts.NormalBalanceCredit, DebitTotal: 0, CreditTotal: 700},
		{AccountID: uuid.New(), Code: "5000", Name: "Utilities", Type: accounts.AccountTypeExpense, NormalBalance: accounts.NormalBalanceDebit, DebitTotal: 200, CreditTotal: 0},
	}

	tb := BuildTrialBalance(2025, 6, rows)
	if tb.TotalDebits != 700 {
		t.Fatalf("total debits = %v, want 700", tb.TotalDebits)
	}
	if tb.TotalCredits != 700 {
		t.Fatalf("total credits = %v, want 700", tb.TotalCredits)
	}
	if !tb.IsBalanced {
		t.Fatal("expected balanced trial balance")
	}
	if tb.Accounts[0].Code != "1000" || tb.Accounts[2].Code != "5000" {
		t.Fatalf("rows not ordered by code: %+v", tb.Accounts)
	}
}

func TestBuildTrialBalanceDetectsImbalance(t *testing.T) {
	rows := []AccountRow{
		{Code: "1000", NormalBalance: accounts.NormalBalanceDebit, DebitTotal: 500, CreditTotal: 0},
		{Code: "4000", NormalBalance: accounts.NormalBalanceCredit, DebitTotal: 0, CreditTotal: 300},
	}

	tb := BuildTrialBalance(2025, 6, rows)
	if tb.IsBalanced {
		t.Fatal("expected unbalanced trial balance")
	}
	if diff := math.Abs(tb.TotalDebits - tb.TotalCredits); diff < Tolerance {
		t.Fatalf("difference %v below tolerance", diff)
	}
}

func TestBuildTrialBalanceNeverFlipsColumns(t *testing.T) {
	// A debit-normal account driven negative stays out of both columns.
	rows := []AccountRow{
		{Code: "1000", NormalBalance: accounts.NormalBalanceDebit, DebitTotal: 100, CreditTotal: 400},
	}

	tb := BuildTrialBalance(2025, 1, rows)
	row := tb.Accounts[0]
	if row.DebitBalance != 0 || row.CreditBalance != 0 {
		t.Fatalf("negative balance leaked into columns: %+v", row)
	}
}

func TestBuildTrialBalanceToleratesRoundingNoise(t *testing.T) {
	rows := []AccountRow{
		{Code: "1000", NormalBalance: accounts.NormalBalanceDebit, DebitTotal: 0.1 + 0.2, CreditTotal: 0},
		{Code: "4000", NormalBalance: accounts.NormalBalanceCredit, DebitTotal: 0, CreditTotal: 0.3},
	}

	tb := BuildTrialBalance(2025, 1, rows)
	if !tb.IsBalanced {
		t.Fatalf("rounding noise should stay within tolerance, diff=%v", tb.TotalDebits-tb.TotalCredits)
	}
}
