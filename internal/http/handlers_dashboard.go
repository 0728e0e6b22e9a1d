package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

const msgDashboardFailed = "Failed to fetch expense data. Please try again later."

type barRow struct {
	Name   string
	Amount decimal.Decimal
	Width  int
}

type dashboardPage struct {
	pageMeta
	Error      string
	Summary    core.Summary
	Categories []barRow
	Months     []barRow
}

// handleDashboard renders totals, the category and month breakdowns and the most recent
// records from one list-all call.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := dashboardPage{pageMeta: pageMeta{Title: "Dashboard", Active: "dashboard"}}

	summary, err := s.expenses.Dashboard(r.Context())
	if err != nil {
		s.gatewayFailure(r.Context(), "Dashboard fetch failed", err, applog.OpSummary, nil)
		page.Error = msgDashboardFailed
		s.render(w, r, http.StatusBadGateway, "dashboard.html", page)
		return
	}

	page.Summary = summary
	page.Categories = categoryBars(summary.ByCategory)
	page.Months = monthBars(summary.ByMonth)

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Dashboard computed",
		applog.FieldOperation, applog.OpSummary,
		applog.FieldCount, summary.Count,
		applog.FieldAmount, summary.Total.String())

	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

func categoryBars(rows []core.CategoryAmount) []barRow {
	max := decimal.Zero
	for _, r := range rows {
		if r.Amount.GreaterThan(max) {
			max = r.Amount
		}
	}
	bars := make([]barRow, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, barRow{Name: string(r.Name), Amount: r.Amount, Width: barWidth(r.Amount, max)})
	}
	return bars
}

func monthBars(months [12]core.MonthAmount) []barRow {
	max := decimal.Zero
	for _, m := range months {
		if m.Amount.GreaterThan(max) {
			max = m.Amount
		}
	}
	bars := make([]barRow, 0, len(months))
	for _, m := range months {
		bars = append(bars, barRow{Name: m.Label, Amount: m.Amount, Width: barWidth(m.Amount, max)})
	}
	return bars
}
