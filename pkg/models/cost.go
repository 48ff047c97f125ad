package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cost is the cost record attached to an event: a *FileCost for files or a
// CostSummary for folders. Folder summaries are derived and have no patch type.
type Cost interface {
	Kind() EventType
}

// FileCost holds the explicit amounts of a file event.
// An empty currency is stored as NULL and leaves the row out of rollups.
type FileCost struct {
	ProjectEventID        uuid.UUID       `json:"project_event_id"`
	BudgetIncomeCurrency  string          `json:"budget_income_currency"`
	BudgetIncome          decimal.Decimal `json:"budget_income"`
	BudgetExpenseCurrency string          `json:"budget_expense_currency"`
	BudgetExpense         decimal.Decimal `json:"budget_expense"`
	RealIncomeCurrency    string          `json:"real_income_currency"`
	RealIncome            decimal.Decimal `json:"real_income"`
	RealIncomeCreatedAt   *time.Time      `json:"real_income_created_at"`
	RealExpenseCurrency   string          `json:"real_expense_currency"`
	RealExpense           decimal.Decimal `json:"real_expense"`
	RealExpenseCreatedAt  *time.Time      `json:"real_expense_created_at"`
}

// Kind implements Cost.
func (*FileCost) Kind() EventType { return EventTypeFile }

// SummaryCurrency is the currency a file's amounts are grouped under.
func (c *FileCost) SummaryCurrency() string {
	return c.BudgetIncomeCurrency
}

// FileCostPatch is a partial update of a FileCost.
type FileCostPatch struct {
	BudgetIncomeCurrency  *string
	BudgetIncome          *decimal.Decimal
	BudgetExpenseCurrency *string
	BudgetExpense         *decimal.Decimal
	RealIncomeCurrency    *string
	RealIncome            *decimal.Decimal
	RealIncomeCreatedAt   *time.Time
	RealExpenseCurrency   *string
	RealExpense           *decimal.Decimal
	RealExpenseCreatedAt  *time.Time
}

// Apply copies the set fields onto c. When normalize is true currency codes
// are trimmed and upper-cased before they are stored.
func (p FileCostPatch) Apply(c *FileCost, normalize bool) {
	currency := func(v string) string {
		if normalize {
			return NormalizeCurrency(v)
		}
		return v
	}

	if p.BudgetIncomeCurrency != nil {
		c.BudgetIncomeCurrency = currency(*p.BudgetIncomeCurrency)
	}
	if p.BudgetIncome != nil {
		c.BudgetIncome = *p.BudgetIncome
	}
	if p.BudgetExpenseCurrency != nil {
		c.BudgetExpenseCurrency = currency(*p.BudgetExpenseCurrency)
	}
	if p.BudgetExpense != nil {
		c.BudgetExpense = *p.BudgetExpense
	}
	if p.RealIncomeCurrency != nil {
		c.RealIncomeCurrency = currency(*p.RealIncomeCurrency)
	}
	if p.RealIncome != nil {
		c.RealIncome = *p.RealIncome
	}
	if p.RealIncomeCreatedAt != nil {
		c.RealIncomeCreatedAt = p.RealIncomeCreatedAt
	}
	if p.RealExpenseCurrency != nil {
		c.RealExpenseCurrency = currency(*p.RealExpenseCurrency)
	}
	if p.RealExpense != nil {
		c.RealExpense = *p.RealExpense
	}
	if p.RealExpenseCreatedAt != nil {
		c.RealExpenseCreatedAt = p.RealExpenseCreatedAt
	}
}

// Amounts are stored as NUMERIC(18, 2).
const (
	AmountScale         = 2
	AmountIntegerDigits = 16
)

var maxAmount = decimal.New(1, AmountIntegerDigits)

// ValidAmount reports whether d fits the amount columns without rounding.
func ValidAmount(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale)) && d.Abs().LessThan(maxAmount)
}

// InvalidAmounts returns the names of the set amounts that do not fit the
// amount columns.
func (p FileCostPatch) InvalidAmounts() []string {
	var bad []string
	for _, a := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"budget_income", p.BudgetIncome},
		{"budget_expense", p.BudgetExpense},
		{"real_income", p.RealIncome},
		{"real_expense", p.RealExpense},
	} {
		if a.value != nil && !ValidAmount(*a.value) {
			bad = append(bad, a.name)
		}
	}
	return bad
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CurrencyTotals are the summed amounts of one currency.
type CurrencyTotals struct {
	BudgetIncome  decimal.Decimal `json:"budget_income"`
	BudgetExpense decimal.Decimal `json:"budget_expense"`
	RealIncome    decimal.Decimal `json:"real_income"`
	RealExpense   decimal.Decimal `json:"real_expense"`
}

// Add returns t plus the amounts of c.
func (t CurrencyTotals) Add(c *FileCost) CurrencyTotals {
	return CurrencyTotals{
		BudgetIncome:  t.BudgetIncome.Add(c.BudgetIncome),
		BudgetExpense: t.BudgetExpense.Add(c.BudgetExpense),
		RealIncome:    t.RealIncome.Add(c.RealIncome),
		RealExpense:   t.RealExpense.Add(c.RealExpense),
	}
}

// Equal compares totals numerically.
func (t CurrencyTotals) Equal(o CurrencyTotals) bool {
	return t.BudgetIncome.Equal(o.BudgetIncome) &&
		t.BudgetExpense.Equal(o.BudgetExpense) &&
		t.RealIncome.Equal(o.RealIncome) &&
		t.RealExpense.Equal(o.RealExpense)
}

// CostSummary is a folder's derived cost: currency code to totals.
type CostSummary map[string]CurrencyTotals

// Kind implements Cost.
func (CostSummary) Kind() EventType { return EventTypeFolder }
