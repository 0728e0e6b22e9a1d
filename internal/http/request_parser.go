// Package http serves the expense pages.
//
// This file implements utilities for parsing HTTP request data into core types.

package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"expensetracker/internal/core"
)

// Query parameter names of the list page filter form.
const (
	paramCategory  = "category"
	paramStartDate = "startDate"
	paramEndDate   = "endDate"
)

// FilterForm echoes the list filter inputs back into the page.
type FilterForm struct {
	Category  string
	StartDate string
	EndDate   string
}

// ParseFilter reads the list filter from query parameters. Dates that do not parse are
// treated as unset, which makes a half-typed range fall back like a partial one.
func ParseFilter(query url.Values) (core.Filter, FilterForm) {
	form := FilterForm{
		Category:  sanitizeInput(query.Get(paramCategory)),
		StartDate: sanitizeInput(query.Get(paramStartDate)),
		EndDate:   sanitizeInput(query.Get(paramEndDate)),
	}

	f := core.Filter{Category: core.Category(form.Category)}
	if d, err := core.ParseDate(form.StartDate); err == nil {
		f.Start = d
	}
	if d, err := core.ParseDate(form.EndDate); err == nil {
		f.End = d
	}
	return f, form
}

// ParseDraft reads the expense form fields.
func ParseDraft(form url.Values) core.Draft {
	return core.Draft{
		Description: sanitizeInput(form.Get(core.FieldDescription)),
		Amount:      sanitizeInput(form.Get(core.FieldAmount)),
		Category:    sanitizeInput(form.Get(core.FieldCategory)),
		Date:        sanitizeInput(form.Get(core.FieldDate)),
		Notes:       sanitizeInput(form.Get(core.FieldNotes)),
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// expenseID returns the {id} route parameter.
func expenseID(r *http.Request) core.ID {
	return core.ID(strings.TrimSpace(chi.URLParam(r, "id")))
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters except tab, newline and carriage return,
// and trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
