package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and form format for calendar dates.
const DateLayout = "2006-01-02"

const (
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Housing        Category = "Housing"
	Utilities      Category = "Utilities"
	Entertainment  Category = "Entertainment"
	Healthcare     Category = "Healthcare"
	Education      Category = "Education"
	Shopping       Category = "Shopping"
	PersonalCare   Category = "Personal Care"
	Travel         Category = "Travel"
	Other          Category = "Other"
)

// Field length limits shared by the validation rules and Expense.Validate.
const (
	DescriptionMinLen = 3
	DescriptionMaxLen = 255
	NotesMaxLen       = 500
)

type (
	// ID is the opaque server-assigned identifier of a persisted expense.
	ID string

	// Category is one of the fixed expense categories offered by the forms.
	Category string

	Date struct {
		time.Time
	}

	Expense struct {
		ID          ID
		Description string
		Amount      decimal.Decimal
		Category    Category
		Date        Date
		Notes       string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

var categories = []Category{
	Food, Transportation, Housing, Utilities, Entertainment,
	Healthcare, Education, Shopping, PersonalCare, Travel, Other,
}

// Categories returns the closed set of categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Known reports whether c belongs to the fixed category set.
func (c Category) Known() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// IsEmpty reports whether the record has not been persisted yet.
func (id ID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

func (id ID) String() string { return string(id) }

// MarshalJSON emits canonical integers as JSON numbers and anything else, including
// "007" or "+5", as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Longer ISO timestamps are accepted and truncated
// to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expense date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// expenseJSON is the record shape exchanged with the expense API.
type expenseJSON struct {
	ID          ID          `json:"id,omitempty"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Category    Category    `json:"category"`
	Date        Date        `json:"date"`
	Notes       string      `json:"notes,omitempty"`
}

func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		ID:          e.ID,
		Description: e.Description,
		Amount:      json.Number(e.Amount.String()),
		Category:    e.Category,
		Date:        e.Date,
		Notes:       e.Notes,
	})
}

func (e *Expense) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          ID              `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Date        Date            `json:"date"`
		Notes       *string         `json:"notes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Expense{
		ID:          raw.ID,
		Description: raw.Description,
		Amount:      raw.Amount,
		Category:    raw.Category,
		Date:        raw.Date,
	}
	if raw.Notes != nil {
		e.Notes = *raw.Notes
	}
	return nil
}

// Validate checks a typed record against the same constraints the forms enforce.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if n := utf8.RuneCountInString(e.Description); n < DescriptionMinLen || n > DescriptionMaxLen {
		return fmt.Errorf("description must be %d-%d characters, got %d", DescriptionMinLen, DescriptionMaxLen, n)
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(string(e.Category)) == "" {
		return ErrEmptyCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(e.Notes); n > NotesMaxLen {
		return fmt.Errorf("notes too long (max %d characters)", NotesMaxLen)
	}
	return nil
}
