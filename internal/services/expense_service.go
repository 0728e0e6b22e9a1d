// Package services orchestrates expense operations across the gateway and event publishing.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

// Publisher announces completed mutations.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, t amqp.EventType, id core.ID) error
}

// ExpenseService runs page operations against the gateway and publishes events after
// successful mutations.
type ExpenseService struct {
	gateway   gateway.Gateway
	publisher Publisher
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(gw gateway.Gateway, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		gateway:   gw,
		publisher: publisher,
	}
}

// List fetches the records matching f with a single gateway call.
func (s *ExpenseService) List(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	items, err := gateway.Fetch(ctx, s.gateway, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses (%s): %w", f.Select().Kind, err)
	}
	return items, nil
}

// Dashboard fetches every record and aggregates it.
func (s *ExpenseService) Dashboard(ctx context.Context) (core.Summary, error) {
	items, err := s.gateway.List(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("dashboard: %w", err)
	}
	return core.Summarize(items), nil
}

func (s *ExpenseService) Get(ctx context.Context, id core.ID) (core.Expense, error) {
	e, err := s.gateway.Get(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, nil
}

// Create validates and submits a new record.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	created, err := s.gateway.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, amqp.ExpenseCreated, created.ID)
	return created, nil
}

// Update validates and replaces the record identified by id.
func (s *ExpenseService) Update(ctx context.Context, id core.ID, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	updated, err := s.gateway.Update(ctx, id, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	if updated.ID.IsEmpty() {
		updated.ID = id
	}
	s.publish(ctx, amqp.ExpenseUpdated, updated.ID)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id core.ID) error {
	if err := s.gateway.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.publish(ctx, amqp.ExpenseDeleted, id)
	return nil
}

// publish never fails the caller; the mutation already happened upstream.
func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, id core.ID) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "event", t, "expense_id", id)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, t, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", t,
			"expense_id", id,
			"error", err)
	}
}

// Close releases the gateway and publisher when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error

	if c, ok := s.gateway.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
