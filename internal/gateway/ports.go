// Package gateway talks to the remote expense REST API.
//
// The ports below mirror the API's endpoints one to one; Client implements them over
// HTTP and the memory subpackage implements them in process for development and tests.
package gateway

import (
	"context"
	"fmt"

	"expensetracker/internal/core"
)

// Ports for the remote expense resource.
type (
	ExpenseReader interface {
		Get(ctx context.Context, id core.ID) (core.Expense, error)
	}

	ExpenseWriter interface {
		// Create persists e (its ID is ignored) and returns the record with the server-assigned ID.
		Create(ctx context.Context, e core.Expense) (core.Expense, error)
		// Update replaces every field of the record identified by id.
		Update(ctx context.Context, id core.ID, e core.Expense) (core.Expense, error)
	}

	ExpenseDeleter interface {
		Delete(ctx context.Context, id core.ID) error
	}

	// ExpenseLister exposes the four listing endpoints.
	ExpenseLister interface {
		List(ctx context.Context) ([]core.Expense, error)
		ListByCategory(ctx context.Context, category core.Category) ([]core.Expense, error)
		ListByDateRange(ctx context.Context, start, end core.Date) ([]core.Expense, error)
		ListByCategoryAndDateRange(ctx context.Context, category core.Category, start, end core.Date) ([]core.Expense, error)
	}

	// Gateway is the full expense resource.
	Gateway interface {
		ExpenseReader
		ExpenseWriter
		ExpenseDeleter
		ExpenseLister
	}
)

// Fetch issues exactly one listing call, chosen by the filter's selection rules.
func Fetch(ctx context.Context, l ExpenseLister, f core.Filter) ([]core.Expense, error) {
	q := f.Select()
	switch q.Kind {
	case core.QueryCategoryAndDateRange:
		return l.ListByCategoryAndDateRange(ctx, q.Category, q.Start, q.End)
	case core.QueryDateRange:
		return l.ListByDateRange(ctx, q.Start, q.End)
	case core.QueryCategory:
		return l.ListByCategory(ctx, q.Category)
	case core.QueryAll:
		return l.List(ctx)
	default:
		return nil, fmt.Errorf("unsupported query kind %d", q.Kind)
	}
}
