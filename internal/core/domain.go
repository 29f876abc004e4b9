package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	Bank       AccountType = "bank"
	CreditCard AccountType = "credit_card"
	Tracking   AccountType = "tracking"
)

const (
	Pending    TransactionStatus = "pending"
	Cleared    TransactionStatus = "cleared"
	Reconciled TransactionStatus = "reconciled"
)

// Reserved names created with every budget.
const (
	StartingBalancePayee = "Starting Balance"
	ReconciliationPayee  = "Reconciliation Balance Adjustment"
	InflowGroupName      = "Inflow"
	InflowCategoryName   = "To be Budgeted"
	TransferPayeePrefix  = "Transfer : "
)

type (
	AccountType string

	TransactionStatus string

	Date struct {
		time.Time
	}

	Budget struct {
		ID      string    `json:"id"`
		Name    string    `json:"name"`
		Created time.Time `json:"created"`
		Updated time.Time `json:"updated"`
	}

	Account struct {
		ID              string      `json:"id"`
		BudgetID        string      `json:"budgetId"`
		Name            string      `json:"name"`
		Type            AccountType `json:"type"`
		TransferPayeeID string      `json:"transferPayeeId"`
		Cleared         Money       `json:"cleared"`
		Uncleared       Money       `json:"uncleared"`
		Balance         Money       `json:"balance"` // always Cleared + Uncleared
		Order           int         `json:"order"`
		Created         time.Time   `json:"created"`
		Updated         time.Time   `json:"updated"`
	}

	Payee struct {
		ID                string    `json:"id"`
		BudgetID          string    `json:"budgetId"`
		Name              string    `json:"name"`
		TransferAccountID string    `json:"transferAccountId,omitempty"` // set on an account's transfer payee
		Internal          bool      `json:"internal"`
		Created           time.Time `json:"created"`
		Updated           time.Time `json:"updated"`
	}

	CategoryGroup struct {
		ID       string    `json:"id"`
		BudgetID string    `json:"budgetId"`
		Name     string    `json:"name"`
		Internal bool      `json:"internal"`
		Locked   bool      `json:"locked"`
		Order    int       `json:"order"`
		Created  time.Time `json:"created"`
		Updated  time.Time `json:"updated"`
	}

	Category struct {
		ID              string    `json:"id"`
		BudgetID        string    `json:"budgetId"`
		CategoryGroupID string    `json:"categoryGroupId"`
		Name            string    `json:"name"`
		Inflow          bool      `json:"inflow"`
		Locked          bool      `json:"locked"`
		Order           int       `json:"order"`
		Created         time.Time `json:"created"`
		Updated         time.Time `json:"updated"`
	}

	CategoryMonth struct {
		ID         string    `json:"id"`
		BudgetID   string    `json:"budgetId"`
		CategoryID string    `json:"categoryId"`
		Month      Month     `json:"month"`
		Budgeted   Money     `json:"budgeted"`
		Activity   Money     `json:"activity"`
		Balance    Money     `json:"balance"`
		Created    time.Time `json:"created"`
		Updated    time.Time `json:"updated"`
	}

	Transaction struct {
		ID                    string            `json:"id"`
		BudgetID              string            `json:"budgetId"`
		AccountID             string            `json:"accountId"`
		PayeeID               string            `json:"payeeId"`
		CategoryID            string            `json:"categoryId,omitempty"` // empty: uncategorized or transfer
		TransferAccountID     string            `json:"transferAccountId,omitempty"`
		TransferTransactionID string            `json:"transferTransactionId,omitempty"`
		Amount                Money             `json:"amount"`
		Date                  Date              `json:"date"`
		Memo                  string            `json:"memo"`
		Status                TransactionStatus `json:"status"`
		Created               time.Time         `json:"created"`
		Updated               time.Time         `json:"updated"`
	}
)

func (t AccountType) Validate() error {
	switch t {
	case Bank, CreditCard, Tracking:
		return nil
	}
	return ErrInvalidType
}

func (s TransactionStatus) Validate() error {
	switch s {
	case Pending, Cleared, Reconciled:
		return nil
	}
	return ErrInvalidStatus
}

// IsCleared reports whether amounts with this status count toward the
// cleared bucket of an account.
func (s TransactionStatus) IsCleared() bool {
	return s == Cleared || s == Reconciled
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD date. Full RFC 3339 timestamps are accepted
// and truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the budget month the date falls in.
func (d Date) Month() Month {
	return MonthOf(d.Time)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsTransfer reports whether the transaction moves money between two
// accounts of the same budget.
func (t Transaction) IsTransfer() bool {
	return t.TransferAccountID != ""
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if strings.TrimSpace(t.PayeeID) == "" {
		return ErrMissingPayee
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Memo) > 500 {
		return Validationf("memo too long (max 500 characters)")
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 200 {
		return Validationf("name too long (max 200 characters)")
	}
	return a.Type.Validate()
}

// ValidateName checks a user supplied entity name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return Validationf("name too long (max 200 characters)")
	}
	return nil
}
