// Package worker reacts to expense events published after mutations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
	applog "expensetracker/internal/log"
)

// ActivityLog writes one line per expense event. Created and updated records are
// looked up in the expense API so the line shows the current values.
type ActivityLog struct {
	reader gateway.ExpenseReader
	mu     sync.Mutex
	out    io.Writer
}

func NewActivityLog(reader gateway.ExpenseReader, out io.Writer) *ActivityLog {
	return &ActivityLog{
		reader: reader,
		out:    out,
	}
}

// HandleEvent processes a single expense event. Lookup failures other than a missing
// record are returned so the event is retried.
func (w *ActivityLog) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.DebugContext(ctx, "Processing expense event",
		applog.FieldEvent, ev.Type,
		applog.FieldExpenseID, ev.ID)

	prefix := fmt.Sprintf("%s  %-15s  #%s", ev.Timestamp.UTC().Format(time.DateTime), ev.Type, ev.ID)

	if ev.Type == amqp.ExpenseDeleted {
		return w.write(prefix)
	}

	e, err := w.reader.Get(ctx, ev.ID)
	if errors.Is(err, gateway.ErrNotFound) {
		// Deleted before this event was read.
		return w.write(prefix + "  (no longer exists)")
	}
	if err != nil {
		return fmt.Errorf("fetch expense %s: %w", ev.ID, err)
	}

	return w.write(fmt.Sprintf("%s  %s  %s  %s  %s",
		prefix, e.Date, e.Category, core.FormatAmount(e.Amount), e.Description))
}

func (w *ActivityLog) write(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.out, line); err != nil {
		return fmt.Errorf("write activity: %w", err)
	}
	return nil
}
