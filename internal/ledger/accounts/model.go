package accounts

import (
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a recognised account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance is the side on which an account's balance is conventionally positive.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Valid reports whether n is a recognised normal balance.
func (n NormalBalance) Valid() bool {
	return n == NormalBalanceDebit || n == NormalBalanceCredit
}

// NormalBalanceFor returns the normal balance an account type requires.
// ASSET and EXPENSE accounts are debit-normal; everything else credit-normal.
func NormalBalanceFor(t AccountType) NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalBalanceDebit
	}
	return NormalBalanceCredit
}

// DefaultCurrency is applied when account creation omits a currency code.
const DefaultCurrency = "USD"

// Account models a chart-of-accounts node scoped to an organisation branch.
type Account struct {
	ID              uuid.UUID
	Code            string
	Name            string
	Description     string
	Type            AccountType
	SubType         string
	NormalBalance   NormalBalance
	ParentID        *uuid.UUID
	FundID          *uuid.UUID
	MinistryID      *uuid.UUID
	Currency        string
	Notes           string
	IsActive        bool
	IsSystemAccount bool
	IsBankAccount   bool
	BankAccountID   *uuid.UUID
	OrganisationID  uuid.UUID
	BranchID        uuid.UUID
	CreatedBy       uuid.UUID
	UpdatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateAccountInput carries the caller-supplied fields for account creation.
type CreateAccountInput struct {
	Code          string `validate:"required,max=20,accountcode"`
	Name          string `validate:"required,max=200"`
	Description   string `validate:"max=500"`
	Type          AccountType
	SubType       string `validate:"max=100"`
	NormalBalance NormalBalance
	ParentID      *uuid.UUID
	FundID        *uuid.UUID
	MinistryID    *uuid.UUID
	Currency      string
	Notes         string `validate:"max=1000"`
}

// UpdateAccountInput is the supported patch shape. Type, normal balance, code
// and the system flag are deliberately absent: they cannot be mutated.
type UpdateAccountInput struct {
	Name        *string `validate:"omitempty,min=1,max=200"`
	Description *string `validate:"omitempty,max=500"`
	SubType     *string `validate:"omitempty,max=100"`
	FundID      *uuid.UUID
	MinistryID  *uuid.UUID
	Notes       *string `validate:"omitempty,max=1000"`
}

// AccountHierarchy is an account with its direct active children.
type AccountHierarchy struct {
	Account
	Children []Account
}
