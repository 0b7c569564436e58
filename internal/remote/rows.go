package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zetafin/internal/core"
)

// Wire values for transactions.type on the backend.
const (
	rowIncome  = "RECEITA"
	rowExpense = "DESPESA"
)

// TransactionRow is the backend representation of a transaction.
type TransactionRow struct {
	ID              core.ID         `json:"id"`
	UserID          string          `json:"user_id,omitempty"`
	CategoryID      *core.ID        `json:"category_id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	Notes           *string         `json:"notes"`
	RecordedBy      *string         `json:"recorded_by"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// CategoryRow is the backend representation of a category.
type CategoryRow struct {
	ID          core.ID    `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon"`
	Color       string     `json:"color"`
	DefaultType string     `json:"default_type"`
	Active      *bool      `json:"active"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// RowType maps a transaction type to its backend spelling.
func RowType(t core.TransactionType) string {
	if t == core.Income {
		return rowIncome
	}
	return rowExpense
}

// TransactionToRow converts a domain transaction for writing.
func TransactionToRow(t core.Transaction, userID string) TransactionRow {
	t = t.Normalize()
	row := TransactionRow{
		ID:              t.ID,
		UserID:          userID,
		Description:     t.Description,
		Amount:          t.Amount.Decimal(),
		Type:            RowType(t.Type),
		TransactionDate: t.Date.String(),
	}
	if !t.CategoryID.IsZero() {
		id := t.CategoryID
		row.CategoryID = &id
	}
	if t.Notes != "" {
		n := t.Notes
		row.Notes = &n
	}
	if t.RecordedBy != "" {
		r := t.RecordedBy
		row.RecordedBy = &r
	}
	if !t.CreatedAt.IsZero() {
		c := t.CreatedAt.UTC()
		row.CreatedAt = &c
	}
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt.UTC()
		row.UpdatedAt = &u
	}
	return row
}

// Transaction converts a backend row to the domain type.
func (r TransactionRow) Transaction() (core.Transaction, error) {
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	raw := strings.TrimSpace(r.TransactionDate)
	if len(raw) > len(core.DateLayout) {
		raw = raw[:len(core.DateLayout)]
	}
	date, err := core.ParseDate(raw)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	amount, err := core.MoneyFromDecimal(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	t := core.Transaction{
		ID:          r.ID,
		Description: r.Description,
		Amount:      amount,
		Type:        typ,
		Date:        date,
	}
	if r.CategoryID != nil {
		t.CategoryID = *r.CategoryID
	}
	if r.Notes != nil {
		t.Notes = *r.Notes
	}
	if r.RecordedBy != nil {
		t.RecordedBy = *r.RecordedBy
	}
	if r.CreatedAt != nil {
		t.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		t.UpdatedAt = *r.UpdatedAt
	}
	return t.Normalize(), nil
}

// CategoryToRow converts a domain category for writing.
func CategoryToRow(c core.Category) CategoryRow {
	active := c.Active
	row := CategoryRow{
		ID:          c.ID.Normalize(),
		Name:        c.Name,
		Icon:        c.Icon,
		Color:       c.Color,
		DefaultType: string(c.DefaultType),
		Active:      &active,
	}
	if !c.CreatedAt.IsZero() {
		t := c.CreatedAt.UTC()
		row.CreatedAt = &t
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt.UTC()
		row.UpdatedAt = &t
	}
	return row
}

// Category converts a backend row to the domain type. A missing active
// column means active, and an unknown default_type means BOTH.
func (r CategoryRow) Category() core.Category {
	c := core.Category{
		ID:          r.ID.Normalize(),
		Name:        r.Name,
		Icon:        r.Icon,
		Color:       r.Color,
		DefaultType: core.CategoryType(strings.ToUpper(strings.TrimSpace(r.DefaultType))),
		Active:      r.Active == nil || *r.Active,
	}
	switch c.DefaultType {
	case "RECEITA":
		c.DefaultType = core.CategoryIncome
	case "DESPESA":
		c.DefaultType = core.CategoryExpense
	}
	if !c.DefaultType.Valid() {
		c.DefaultType = core.CategoryBoth
	}
	if c.Icon == "" {
		c.Icon = core.DefaultCategoryIcon
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	if r.CreatedAt != nil {
		c.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		c.UpdatedAt = *r.UpdatedAt
	}
	return c
}
