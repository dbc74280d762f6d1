package bank

import (
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates supported external bank account kinds.
type AccountType string

const (
	TypeChecking    AccountType = "CHECKING"
	TypeSavings     AccountType = "SAVINGS"
	TypeMoneyMarket AccountType = "MONEY_MARKET"
	TypeCreditCard  AccountType = "CREDIT_CARD"
)

// Valid reports whether t is a recognised bank account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeChecking, TypeSavings, TypeMoneyMarket, TypeCreditCard:
		return true
	}
	return false
}

// Status enumerates bank account lifecycle values. There is no structural
// deletion; accounts are flipped INACTIVE.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// BankAccount mirrors one external bank account and binds to exactly one
// ASSET-type GL account. BankBalance is the last externally reported figure;
// book balance and the reconciliation difference are derived on read, never
// stored.
type BankAccount struct {
	ID             uuid.UUID
	GLAccountID    uuid.UUID
	AccountName    string
	BankName       string
	AccountNumber  string
	Type           AccountType
	Currency       string
	BankBalance    float64
	Status         Status
	LastReconciled *time.Time
	OrganisationID uuid.UUID
	BranchID       uuid.UUID
	CreatedBy      uuid.UUID
	UpdatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconciliation composes the stored record with the derived book state at
// response time.
type Reconciliation struct {
	BankAccount
	BookBalance  float64
	Difference   float64
	IsReconciled bool
}

// CreateInput carries the caller-supplied fields for bank account creation.
type CreateInput struct {
	GLAccountID   uuid.UUID
	AccountName   string `validate:"required,max=200"`
	BankName      string `validate:"required,max=200"`
	AccountNumber string `validate:"required,max=50,banknumber"`
	Type          AccountType
	Currency      string
}

// UpdateInput is the supported patch shape. The GL binding cannot be changed
// after creation.
type UpdateInput struct {
	AccountName   *string `validate:"omitempty,min=1,max=200"`
	BankName      *string `validate:"omitempty,min=1,max=200"`
	AccountNumber *string `validate:"omitempty,min=1,max=50,banknumber"`
	Type          *AccountType
}
