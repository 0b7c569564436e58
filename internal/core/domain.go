package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	CategoryIncome  CategoryType = "INCOME"
	CategoryExpense CategoryType = "EXPENSE"
	CategoryBoth    CategoryType = "BOTH"
)

// Presentation defaults for categories and for uncategorized transactions.
const (
	DefaultCategoryName  = "Outros"
	DefaultCategoryIcon  = "📝"
	DefaultCategoryColor = "#6366F1"
)

const maxDescriptionLen = 200

type (
	TransactionType string

	CategoryType string

	Category struct {
		ID          ID           `json:"id"`
		Name        string       `json:"name"`
		DefaultType CategoryType `json:"defaultType"`
		Color       string       `json:"color"`
		Icon        string       `json:"icon"`
		Active      bool         `json:"active"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	Transaction struct {
		ID          ID              `json:"id"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Date        Date            `json:"date"`
		CategoryID  ID              `json:"categoryId,omitempty"`
		RecordedBy  string          `json:"recordedBy,omitempty"`
		Notes       string          `json:"notes,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// TransactionInput carries the user-editable fields of a new transaction.
	TransactionInput struct {
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Date        Date            `json:"date"`
		CategoryID  ID              `json:"categoryId,omitempty"`
		RecordedBy  string          `json:"recordedBy,omitempty"`
		Notes       string          `json:"notes,omitempty"`
	}

	// TransactionPatch is a partial update; nil fields are left unchanged.
	TransactionPatch struct {
		Description *string          `json:"description,omitempty"`
		Amount      *Money           `json:"amount,omitempty"`
		Type        *TransactionType `json:"type,omitempty"`
		Date        *Date            `json:"date,omitempty"`
		CategoryID  *ID              `json:"categoryId,omitempty"`
		RecordedBy  *string          `json:"recordedBy,omitempty"`
		Notes       *string          `json:"notes,omitempty"`
	}

	CategoryInput struct {
		Name        string       `json:"name"`
		DefaultType CategoryType `json:"defaultType"`
		Color       string       `json:"color,omitempty"`
		Icon        string       `json:"icon,omitempty"`
	}

	CategoryPatch struct {
		Name        *string       `json:"name,omitempty"`
		DefaultType *CategoryType `json:"defaultType,omitempty"`
		Color       *string       `json:"color,omitempty"`
		Icon        *string       `json:"icon,omitempty"`
		Active      *bool         `json:"active,omitempty"`
	}
)

// ParseTransactionType accepts the canonical names plus the lowercase export
// names and the Portuguese remote names.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME", "RECEITA":
		return Income, nil
	case "EXPENSE", "DESPESA":
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Sign is +1 for income and -1 for expense.
func (t TransactionType) Sign() int64 {
	if t == Income {
		return 1
	}
	return -1
}

func (c CategoryType) Valid() bool {
	switch c {
	case CategoryIncome, CategoryExpense, CategoryBoth:
		return true
	default:
		return false
	}
}

// Signed returns the contribution of t to a running balance.
func (t Transaction) Signed() Money {
	return Money{Cents: t.Type.Sign() * t.Amount.Cents}
}

// Normalize folds ids to their canonical form and trims free text.
func (t Transaction) Normalize() Transaction {
	t.ID = t.ID.Normalize()
	t.CategoryID = t.CategoryID.Normalize()
	t.Description = strings.TrimSpace(t.Description)
	t.RecordedBy = strings.TrimSpace(t.RecordedBy)
	return t
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

// Transaction builds an unsaved transaction from the input.
func (in TransactionInput) Transaction() Transaction {
	return Transaction{
		Description: in.Description,
		Amount:      in.Amount,
		Type:        in.Type,
		Date:        in.Date,
		CategoryID:  in.CategoryID,
		RecordedBy:  in.RecordedBy,
		Notes:       in.Notes,
	}.Normalize()
}

// Apply merges the non-nil fields of p into t.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.RecordedBy != nil {
		t.RecordedBy = *p.RecordedBy
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t.Normalize()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.DefaultType.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

// Category builds an unsaved, active category with presentation defaults.
func (in CategoryInput) Category() Category {
	c := Category{
		Name:        strings.TrimSpace(in.Name),
		DefaultType: in.DefaultType,
		Color:       strings.TrimSpace(in.Color),
		Icon:        strings.TrimSpace(in.Icon),
		Active:      true,
	}
	if c.DefaultType == "" {
		c.DefaultType = CategoryBoth
	}
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	return c
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.DefaultType != nil {
		c.DefaultType = *p.DefaultType
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	c.ID = c.ID.Normalize()
	return c
}
