package core

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Form field names, shared by the templates, the request parser and FieldErrors.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldNotes       = "notes"
)

// Draft is a candidate expense as typed into a form: every field is still a string.
type Draft struct {
	Description string
	Amount      string
	Category    string
	Date        string
	Notes       string
}

// FieldErrors maps a form field name to the single message shown next to it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return "invalid expense: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Get returns the message for field, or "".
func (fe FieldErrors) Get(field string) string {
	return fe[field]
}

// DraftFrom renders an existing record back into form values.
func DraftFrom(e Expense) Draft {
	d := Draft{
		Description: e.Description,
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Notes:       e.Notes,
	}
	if !e.Amount.IsZero() {
		d.Amount = e.Amount.String()
	}
	return d
}

// ValidateDraft checks every field of d and, when all pass, returns the typed record.
// On failure the returned FieldErrors holds one message per invalid field and the
// Expense must not be submitted.
func ValidateDraft(d Draft) (Expense, FieldErrors) {
	errs := FieldErrors{}
	var e Expense

	switch n := utf8.RuneCountInString(d.Description); {
	case strings.TrimSpace(d.Description) == "":
		errs[FieldDescription] = "Description is required"
	case n < DescriptionMinLen:
		errs[FieldDescription] = "Description must be at least 3 characters"
	case n > DescriptionMaxLen:
		errs[FieldDescription] = "Description must be at most 255 characters"
	default:
		e.Description = d.Description
	}

	if strings.TrimSpace(d.Amount) == "" {
		errs[FieldAmount] = "Amount is required"
	} else if amount, err := ParseAmount(d.Amount); err != nil {
		errs[FieldAmount] = "Amount must be a number"
	} else if !amount.IsPositive() {
		errs[FieldAmount] = "Amount must be positive"
	} else {
		e.Amount = amount
	}

	if c := strings.TrimSpace(d.Category); c == "" {
		errs[FieldCategory] = "Category is required"
	} else {
		e.Category = Category(c)
	}

	if strings.TrimSpace(d.Date) == "" {
		errs[FieldDate] = "Date is required"
	} else if date, err := ParseDate(d.Date); err != nil {
		errs[FieldDate] = "Date must be a valid date"
	} else {
		e.Date = date
	}

	if utf8.RuneCountInString(d.Notes) > NotesMaxLen {
		errs[FieldNotes] = "Notes must be at most 500 characters"
	} else {
		e.Notes = d.Notes
	}

	if len(errs) > 0 {
		return Expense{}, errs
	}
	return e, nil
}
