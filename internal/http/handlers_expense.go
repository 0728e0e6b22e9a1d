package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
	applog "expensetracker/internal/log"
)

const listPath = "/expenses"

// User-facing messages. Error text from the gateway is logged, never shown.
const (
	msgListFailed      = "Failed to fetch expenses. Please try again later."
	msgFilterFailed    = "Failed to filter expenses. Please try again later."
	msgAddFailed       = "Failed to add expense. Please try again."
	msgAddSucceeded    = "Expense added successfully! Redirecting to expense list..."
	msgFetchOneFailed  = "Failed to fetch expense details. Please try again later."
	msgUpdateFailed    = "Failed to update expense. Please try again."
	msgUpdateSucceeded = "Expense updated successfully! Redirecting to expense list..."
	msgDeleteFailed    = "Failed to delete expense. Please try again later."
)

// pageMeta is shared by every page for the layout header.
type pageMeta struct {
	Title           string
	Active          string
	RedirectURL     string
	RedirectSeconds int
}

type listPage struct {
	pageMeta
	Error      string
	Filter     FilterForm
	Filtered   bool
	Categories []string
	Expenses   []core.Expense
}

type formPage struct {
	pageMeta
	Heading     string
	Action      string
	SubmitLabel string
	Draft       core.Draft
	Errors      core.FieldErrors
	Error       string
	Success     string
	ShowForm    bool
	Categories  []string
}

type confirmDeletePage struct {
	pageMeta
	ID          core.ID
	Description string
	Error       string
}

// handleListExpenses renders the list page. The query string selects which listing
// endpoint is called.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, form := ParseFilter(r.URL.Query())
	q := f.Select()

	page := listPage{
		pageMeta:   pageMeta{Title: "Expenses", Active: "expenses"},
		Filter:     form,
		Filtered:   q.Kind != core.QueryAll,
		Categories: categoryNames(),
	}
	fields := applog.NewFields().WithFilter(q.Kind.String(), string(q.Category), q.Start.String(), q.End.String())

	items, err := s.expenses.List(r.Context(), f)
	if err != nil {
		page.Error = msgListFailed
		if page.Filtered {
			page.Error = msgFilterFailed
		}
		s.gatewayFailure(r.Context(), "Expense listing failed", err, applog.OpFilter, fields)
		s.render(w, r, http.StatusBadGateway, "expenses.html", page)
		return
	}
	page.Expenses = items

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Expenses listed",
		append(fields.WithOperation(applog.OpList).ToSlice(), applog.FieldCount, len(items))...)

	s.render(w, r, http.StatusOK, "expenses.html", page)
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	page := s.addPage()
	page.Draft.Date = core.Today().String()
	s.render(w, r, http.StatusOK, "expense_form.html", page)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	page := s.addPage()
	page.Draft = ParseDraft(r.PostForm)

	e, errs := core.ValidateDraft(page.Draft)
	if len(errs) > 0 {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Expense form rejected",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, errs.Error())
		page.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", page)
		return
	}

	created, err := s.expenses.Create(r.Context(), e)
	if err != nil {
		s.gatewayFailure(r.Context(), "Expense creation failed", err, applog.OpCreate,
			applog.NewFields().WithExpense("", e.Description, e.Amount.String(), string(e.Category), e.Date.String()))
		page.Error = msgAddFailed
		s.render(w, r, http.StatusBadGateway, "expense_form.html", page)
		return
	}

	s.appMetrics.created.Add(1)
	requestLog(r.Context()).LogExpenseMutation(r.Context(), applog.OpCreate,
		created.ID.String(), created.Description, created.Amount.String(), string(created.Category), created.Date.String())

	page.Success = msgAddSucceeded
	page.ShowForm = false
	s.redirectToList(w, &page)
	s.render(w, r, http.StatusOK, "expense_form.html", page)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := expenseID(r)
	page := s.editPage(id)

	e, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		s.gatewayFailure(r.Context(), "Expense fetch failed", err, applog.OpRead,
			applog.NewFields().WithExpenseID(id.String()))
		page.Error = msgFetchOneFailed
		page.ShowForm = false
		status := http.StatusBadGateway
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		s.render(w, r, status, "expense_form.html", page)
		return
	}

	page.Draft = core.DraftFrom(e)
	s.render(w, r, http.StatusOK, "expense_form.html", page)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := expenseID(r)
	page := s.editPage(id)
	page.Draft = ParseDraft(r.PostForm)

	e, errs := core.ValidateDraft(page.Draft)
	if len(errs) > 0 {
		page.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", page)
		return
	}

	updated, err := s.expenses.Update(r.Context(), id, e)
	if err != nil {
		s.gatewayFailure(r.Context(), "Expense update failed", err, applog.OpUpdate,
			applog.NewFields().WithExpense(id.String(), e.Description, e.Amount.String(), string(e.Category), e.Date.String()))
		page.Error = msgUpdateFailed
		s.render(w, r, http.StatusBadGateway, "expense_form.html", page)
		return
	}

	s.appMetrics.updated.Add(1)
	requestLog(r.Context()).LogExpenseMutation(r.Context(), applog.OpUpdate,
		updated.ID.String(), updated.Description, updated.Amount.String(), string(updated.Category), updated.Date.String())

	page.Success = msgUpdateSucceeded
	page.ShowForm = false
	s.redirectToList(w, &page)
	s.render(w, r, http.StatusOK, "expense_form.html", page)
}

// handleDeleteExpense serves the list row's delete button. On success the empty body
// replaces the row, so the list is not fetched again.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := expenseID(r)

	if err := s.expenses.Delete(r.Context(), id); err != nil {
		s.gatewayFailure(r.Context(), "Expense deletion failed", err, applog.OpDelete,
			applog.NewFields().WithExpenseID(id.String()))
		if !isHTMX(r) {
			BadGatewayError(msgDeleteFailed).Write(w)
			return
		}
		// htmx only swaps 2xx responses.
		ErrorResponse(http.StatusOK, msgDeleteFailed).
			Retarget("#list-error", "innerHTML").
			TriggerErrorNotification(msgDeleteFailed).
			Write(w)
		return
	}

	s.deleted(r, id)
	NewHTMXResponse().
		TriggerExpenseDeleted(id.String()).
		BodyHTML("").
		Write(w)
}

// handleConfirmDelete is the confirmation step for browsers without JavaScript.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	id := expenseID(r)
	page := confirmDeletePage{pageMeta: pageMeta{Title: "Delete expense", Active: "expenses"}, ID: id}

	e, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Could not load expense for delete confirmation",
			applog.FieldExpenseID, id.String(),
			applog.FieldError, err)
		page.Description = "#" + id.String()
	} else {
		page.Description = e.Description
	}

	s.render(w, r, http.StatusOK, "confirm_delete.html", page)
}

func (s *Server) handleDeleteConfirmed(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := expenseID(r)
	if r.PostForm.Get("confirm") != "yes" {
		// Declined: back to the list without an error.
		http.Redirect(w, r, listPath, http.StatusSeeOther)
		return
	}

	if err := s.expenses.Delete(r.Context(), id); err != nil {
		s.gatewayFailure(r.Context(), "Expense deletion failed", err, applog.OpDelete,
			applog.NewFields().WithExpenseID(id.String()))
		page := confirmDeletePage{
			pageMeta:    pageMeta{Title: "Delete expense", Active: "expenses"},
			ID:          id,
			Description: sanitizeInput(r.PostForm.Get("description")),
			Error:       msgDeleteFailed,
		}
		if page.Description == "" {
			page.Description = "#" + id.String()
		}
		s.render(w, r, http.StatusBadGateway, "confirm_delete.html", page)
		return
	}

	s.deleted(r, id)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

func (s *Server) deleted(r *http.Request, id core.ID) {
	s.appMetrics.deleted.Add(1)
	requestLog(r.Context()).LogExpenseMutation(r.Context(), applog.OpDelete, id.String(), "", "", "", "")
}

func (s *Server) addPage() formPage {
	return formPage{
		pageMeta:    pageMeta{Title: "Add expense", Active: "add"},
		Heading:     "Add New Expense",
		Action:      "/add-expense",
		SubmitLabel: "Add Expense",
		ShowForm:    true,
		Categories:  categoryNames(),
	}
}

func (s *Server) editPage(id core.ID) formPage {
	return formPage{
		pageMeta:    pageMeta{Title: "Edit expense", Active: "expenses"},
		Heading:     "Edit Expense",
		Action:      "/edit-expense/" + url.PathEscape(id.String()),
		SubmitLabel: "Update Expense",
		ShowForm:    true,
		Categories:  categoryNames(),
	}
}

// redirectToList schedules navigation to the list page after the configured delay.
func (s *Server) redirectToList(w http.ResponseWriter, page *formPage) {
	seconds := int(s.redirectDelay.Round(time.Second) / time.Second)
	page.RedirectURL = listPath
	page.RedirectSeconds = seconds
	w.Header().Set("Refresh", strconv.Itoa(seconds)+"; url="+listPath)
}

func isNotFound(err error) bool {
	return errors.Is(err, gateway.ErrNotFound)
}
