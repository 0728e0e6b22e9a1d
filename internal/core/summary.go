package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RecentLimit is how many records the dashboard lists as recent.
const RecentLimit = 5

// MonthLabels are the fixed month buckets, January first.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   Category
	Amount decimal.Decimal
}

// MonthAmount is one calendar-month bucket.
type MonthAmount struct {
	Label  string
	Amount decimal.Decimal
}

// Summary is everything the dashboard shows, computed from one fetched list.
type Summary struct {
	Count      int
	Total      decimal.Decimal
	Average    decimal.Decimal
	ByCategory []CategoryAmount
	ByMonth    [12]MonthAmount
	Recent     []Expense
}

// Summarize recomputes every aggregate from scratch.
func Summarize(expenses []Expense) Summary {
	total := Total(expenses)
	return Summary{
		Count:      len(expenses),
		Total:      total,
		Average:    average(total, len(expenses)),
		ByCategory: ByCategory(expenses),
		ByMonth:    ByMonth(expenses),
		Recent:     Recent(expenses, RecentLimit),
	}
}

// Total sums all amounts; zero for no records.
func Total(expenses []Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// Average is Total divided by the record count, or zero when there are no records.
func Average(expenses []Expense) decimal.Decimal {
	return average(Total(expenses), len(expenses))
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}

// ByCategory sums amounts per category. Only categories present in the input appear,
// in order of first occurrence.
func ByCategory(expenses []Expense) []CategoryAmount {
	index := make(map[Category]int)
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// ByMonth sums amounts into the twelve calendar-month buckets. The year is ignored:
// March 2023 and March 2024 land in the same bucket.
func ByMonth(expenses []Expense) [12]MonthAmount {
	var out [12]MonthAmount
	for i, label := range MonthLabels {
		out[i] = MonthAmount{Label: label, Amount: decimal.Zero}
	}
	for _, e := range expenses {
		m := int(e.Date.Month()) - 1
		out[m].Amount = out[m].Amount.Add(e.Amount)
	}
	return out
}

// Recent returns at most n records sorted by date, newest first. Records sharing a
// date keep their input order. The input slice is not modified.
func Recent(expenses []Expense, n int) []Expense {
	sorted := make([]Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
