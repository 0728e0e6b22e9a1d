package http

import (
	"html/template"
	"net"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// clientIP returns the caller address. RemoteAddr has already been rewritten by
// chi's RealIP middleware when a proxy header was present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// templateFuncs are available to every page template.
var templateFuncs = template.FuncMap{
	"money": core.FormatAmount,
	"date": func(d core.Date) string {
		return d.String()
	},
	"notes": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	},
}

// barWidth returns amount as a rounded percentage of max, for the dashboard bars.
// Non-zero amounts get at least 2% so they stay visible.
func barWidth(amount, max decimal.Decimal) int {
	if !max.IsPositive() || !amount.IsPositive() {
		return 0
	}
	width := int(amount.Mul(decimal.NewFromInt(100)).Div(max).Round(0).IntPart())
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// categoryNames lists the selectable categories for the forms.
func categoryNames() []string {
	cats := core.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}
