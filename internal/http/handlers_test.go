package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
	applog "expensetracker/internal/log"
)

// recordingService remembers the filter of the last List call.
type recordingService struct {
	failingService
	filter core.Filter
	calls  int
}

func (r *recordingService) List(_ context.Context, f core.Filter) ([]core.Expense, error) {
	r.filter = f
	r.calls++
	return nil, nil
}

// notFoundService reports every record as missing.
type notFoundService struct{ failingService }

func (notFoundService) Get(_ context.Context, id core.ID) (core.Expense, error) {
	return core.Expense{}, &gateway.StatusError{Op: "get expense", StatusCode: http.StatusNotFound}
}

func TestDashboard(t *testing.T) {
	svc, _ := seededService(t,
		expense("Groceries", "40.00", core.Food, 2024, 1, 10),
		expense("Bus pass", "60.00", core.Transportation, 2024, 2, 1),
		expense("Dinner", "20.00", core.Food, 2023, 1, 5),
	)
	s := newTestServer(t, svc, Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"$120.00", // total
		"$40.00",  // average
		"Transportation",
		"Recent Expenses",
		"View All Expenses",
		"width: 100%", // Food 60 and January 60 are the maxima
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboardEmpty(t *testing.T) {
	svc, _ := seededService(t)
	s := newTestServer(t, svc, Options{})

	body := serve(s, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(body, "No expenses recorded yet") || !strings.Contains(body, "No data available") {
		t.Fatalf("empty states missing:\n%s", body)
	}
	if !strings.Contains(body, "$0.00") {
		t.Fatalf("zero total missing")
	}
}

func TestDashboardGatewayFailure(t *testing.T) {
	s := newTestServer(t, failingService{}, Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), msgDashboardFailed) {
		t.Fatalf("missing error message")
	}
	if strings.Contains(rr.Body.String(), errUpstream.Error()) {
		t.Fatalf("upstream error text leaked to the page")
	}
	if s.appMetrics.gatewayFailures.Load() != 1 {
		t.Fatalf("gateway failure not counted")
	}
}

func TestListSelectsQueryFromParams(t *testing.T) {
	tests := []struct {
		query string
		want  core.QueryKind
	}{
		{"", core.QueryAll},
		{"?category=Food", core.QueryCategory},
		{"?startDate=2024-01-01&endDate=2024-01-31", core.QueryDateRange},
		{"?category=Food&startDate=2024-01-01&endDate=2024-01-31", core.QueryCategoryAndDateRange},
		{"?startDate=2024-01-01", core.QueryAll},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := &recordingService{}
			s := newTestServer(t, rec, Options{})

			rr := serve(s, httptest.NewRequest(http.MethodGet, "/expenses"+tt.query, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			if rec.calls != 1 {
				t.Fatalf("expected one gateway call, got %d", rec.calls)
			}
			if got := rec.filter.Select().Kind; got != tt.want {
				t.Fatalf("kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestListRendersRows(t *testing.T) {
	svc, _ := seededService(t,
		expense("Groceries", "40.00", core.Food, 2024, 1, 10),
		expense("Haircut", "25.00", core.PersonalCare, 2024, 1, 12),
	)
	s := newTestServer(t, svc, Options{})

	body := serve(s, httptest.NewRequest(http.MethodGet, "/expenses?category=Personal+Care", nil)).Body.String()
	if !strings.Contains(body, "Haircut") || strings.Contains(body, "Groceries") {
		t.Fatalf("category filter not applied:\n%s", body)
	}
	if !strings.Contains(body, `<option value="Personal Care" selected>`) {
		t.Fatalf("selected category not echoed")
	}
	if !strings.Contains(body, `hx-delete="/expenses/2"`) {
		t.Fatalf("delete button missing")
	}
	if !strings.Contains(body, "<td>-</td>") {
		t.Fatalf("empty notes should render as -")
	}
	// The empty state is present but hidden so the page can reveal it after deletes.
	if !strings.Contains(body, `id="list-empty" hidden>`) || !strings.Contains(body, `<table id="expense-table">`) {
		t.Fatalf("list markup missing table or hidden empty state:\n%s", body)
	}
}

func TestListEmptyState(t *testing.T) {
	svc, _ := seededService(t)
	s := newTestServer(t, svc, Options{})

	body := serve(s, httptest.NewRequest(http.MethodGet, "/expenses", nil)).Body.String()
	if !strings.Contains(body, `<p class="empty" id="list-empty">No expenses found. Add some expenses to get started!</p>`) {
		t.Fatalf("visible empty state missing:\n%s", body)
	}
	if strings.Contains(body, "<table") {
		t.Fatalf("no table expected for an empty list")
	}
}

func TestListFailureMessages(t *testing.T) {
	s := newTestServer(t, failingService{}, Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), msgListFailed) {
		t.Fatalf("unfiltered: status=%d", rr.Code)
	}

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/expenses?category=Food", nil))
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), msgFilterFailed) {
		t.Fatalf("filtered: status=%d", rr.Code)
	}
}

func TestAddFormDefaultsToToday(t *testing.T) {
	svc, _ := seededService(t)
	s := newTestServer(t, svc, Options{})

	body := serve(s, httptest.NewRequest(http.MethodGet, "/add-expense", nil)).Body.String()
	if !strings.Contains(body, `value="`+core.Today().String()+`"`) {
		t.Fatalf("date not defaulted to today")
	}
	if !strings.Contains(body, "Add New Expense") {
		t.Fatalf("heading missing")
	}
}

func TestCreateExpense(t *testing.T) {
	valid := url.Values{
		"description": {"Train ticket"},
		"amount":      {"12,50"},
		"category":    {"Travel"},
		"date":        {"2024-04-02"},
		"notes":       {"return trip"},
	}

	t.Run("validation errors", func(t *testing.T) {
		svc, store := seededService(t)
		s := newTestServer(t, svc, Options{})

		form := url.Values{"description": {"ab"}, "amount": {"0"}, "category": {""}, "date": {"2024-02-30"}}
		rr := serve(s, postForm("/add-expense", form))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rr.Code)
		}
		body := rr.Body.String()
		for _, want := range []string{
			"Description must be at least 3 characters",
			"Amount must be positive",
			"Category is required",
			"Date must be a valid date",
			`value="ab"`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
		if store.Len() != 0 {
			t.Fatalf("invalid form must not be submitted")
		}
	})

	t.Run("success redirects after delay", func(t *testing.T) {
		svc, store := seededService(t)
		s := newTestServer(t, svc, Options{})

		rr := serve(s, postForm("/add-expense", valid))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("Refresh"); got != "2; url=/expenses" {
			t.Fatalf("Refresh = %q", got)
		}
		if !strings.Contains(rr.Body.String(), msgAddSucceeded) {
			t.Fatalf("success message missing")
		}
		got, err := store.Get(context.Background(), "1")
		if err != nil {
			t.Fatalf("record not stored: %v", err)
		}
		if got.Description != "Train ticket" || got.Amount.String() != "12.5" || got.Notes != "return trip" {
			t.Fatalf("stored = %+v", got)
		}
	})

	t.Run("gateway failure keeps form populated", func(t *testing.T) {
		s := newTestServer(t, failingService{}, Options{})

		rr := serve(s, postForm("/add-expense", valid))
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("status = %d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, msgAddFailed) || !strings.Contains(body, `value="Train ticket"`) {
			t.Fatalf("form not kept:\n%s", body)
		}
		if rr.Header().Get("Refresh") != "" {
			t.Fatalf("failure must not redirect")
		}
	})
}

func TestEditExpense(t *testing.T) {
	t.Run("prefills the form", func(t *testing.T) {
		svc, _ := seededService(t, expense("Groceries", "40.125", core.Food, 2024, 1, 10))
		s := newTestServer(t, svc, Options{})

		rr := serve(s, httptest.NewRequest(http.MethodGet, "/edit-expense/1", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		body := rr.Body.String()
		for _, want := range []string{`value="Groceries"`, `value="40.125"`, `value="2024-01-10"`, `<option value="Food" selected>`, `action="/edit-expense/1"`} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
	})

	t.Run("missing record", func(t *testing.T) {
		s := newTestServer(t, notFoundService{}, Options{})

		rr := serve(s, httptest.NewRequest(http.MethodGet, "/edit-expense/99", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), msgFetchOneFailed) {
			t.Fatalf("message missing")
		}
		if strings.Contains(rr.Body.String(), "<form") {
			t.Fatalf("form should not render without a record")
		}
	})

	t.Run("update", func(t *testing.T) {
		svc, store := seededService(t, expense("Groceries", "40", core.Food, 2024, 1, 10))
		s := newTestServer(t, svc, Options{RedirectDelay: -1})

		rr := serve(s, postForm("/edit-expense/1", url.Values{
			"description": {"Groceries and wine"},
			"amount":      {"55.20"},
			"category":    {"Food"},
			"date":        {"2024-01-11"},
		}))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Refresh") != "0; url=/expenses" {
			t.Fatalf("Refresh = %q", rr.Header().Get("Refresh"))
		}
		got, _ := store.Get(context.Background(), "1")
		if got.Description != "Groceries and wine" || got.Date.String() != "2024-01-11" {
			t.Fatalf("not updated: %+v", got)
		}
	})

	t.Run("update failure", func(t *testing.T) {
		s := newTestServer(t, failingService{}, Options{})

		rr := serve(s, postForm("/edit-expense/1", url.Values{
			"description": {"Groceries"},
			"amount":      {"5"},
			"category":    {"Food"},
			"date":        {"2024-01-11"},
		}))
		if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), msgUpdateFailed) {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestDeleteExpenseHTMX(t *testing.T) {
	svc, store := seededService(t,
		expense("Groceries", "40", core.Food, 2024, 1, 10),
		expense("Cinema", "12", core.Entertainment, 2024, 1, 11),
	)
	s := newTestServer(t, svc, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/expenses/1", nil)
	req.Header.Set("HX-Request", "true")
	rr := serve(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("row replacement must be empty, got %q", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:deleted") {
		t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	items, _ := store.List(context.Background())
	if len(items) != 1 || items[0].ID != "2" {
		t.Fatalf("remaining = %+v", items)
	}
	if _, err := store.Get(context.Background(), "1"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("deleted record still readable: %v", err)
	}
}

func TestDeleteExpenseFailure(t *testing.T) {
	s := newTestServer(t, failingService{}, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/expenses/1", nil)
	req.Header.Set("HX-Request", "true")
	rr := serve(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("htmx status = %d", rr.Code)
	}
	if rr.Header().Get("HX-Retarget") != "#list-error" {
		t.Fatalf("HX-Retarget = %q", rr.Header().Get("HX-Retarget"))
	}
	if !strings.Contains(rr.Body.String(), msgDeleteFailed) {
		t.Fatalf("body = %q", rr.Body.String())
	}

	rr = serve(s, httptest.NewRequest(http.MethodDelete, "/expenses/1", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("plain status = %d", rr.Code)
	}
}

func TestDeleteWithoutJavaScript(t *testing.T) {
	svc, store := seededService(t, expense("Groceries", "40", core.Food, 2024, 1, 10))
	s := newTestServer(t, svc, Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/expenses/1/delete", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Groceries") {
		t.Fatalf("confirmation page: status=%d", rr.Code)
	}

	rr = serve(s, postForm("/expenses/1/delete", url.Values{"confirm": {"no"}}))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/expenses" {
		t.Fatalf("declined: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if store.Len() != 1 {
		t.Fatalf("declined confirmation must not delete")
	}

	rr = serve(s, postForm("/expenses/1/delete", url.Values{"confirm": {"yes"}}))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("confirmed: status=%d", rr.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("record not deleted")
	}
}

func TestDeleteConfirmedFailure(t *testing.T) {
	s := newTestServer(t, failingService{}, Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/expenses/7/delete", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "#7") {
		t.Fatalf("fallback description missing: %d", rr.Code)
	}

	rr = serve(s, postForm("/expenses/7/delete", url.Values{"confirm": {"yes"}, "description": {"Rent"}}))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), msgDeleteFailed) || !strings.Contains(rr.Body.String(), "Rent") {
		t.Fatalf("body missing message or description")
	}
}

func TestGatewayFailureLogCarriesRequestID(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(t, failingService{}, Options{
		Logger: applog.New(applog.Config{Output: &logs, Component: applog.ComponentApp}),
	})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/expenses?category=Food", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	id := rr.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("missing X-Request-ID")
	}

	var line string
	for _, l := range strings.Split(logs.String(), "\n") {
		if strings.Contains(l, "Expense listing failed") {
			line = l
			break
		}
	}
	if line == "" {
		t.Fatalf("no gateway failure logged:\n%s", logs.String())
	}
	for _, want := range []string{"request_id=" + id, "component=gateway", "error=\"upstream unavailable\""} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}
