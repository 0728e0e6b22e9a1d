package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RoutingPattern matches every expense event type.
const RoutingPattern = "expense.*"

// Handler processes one decoded event. A non-nil error requeues the delivery.
type Handler func(ctx context.Context, ev *ExpenseEvent) error

// acknowledger is the part of amqp091.Delivery that dispatch needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ConsumeExpenseEvents binds queue to the exchange for all expense events and hands each
// one to handler until ctx is done. An empty queue name declares an exclusive,
// server-named queue that disappears with the connection.
func (c *Client) ConsumeExpenseEvents(ctx context.Context, queue string, handler Handler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errors.New("consume: connection closed")
	}

	temporary := queue == ""
	q, err := channel.QueueDeclare(
		queue,      // name
		!temporary, // durable
		temporary,  // auto-delete
		temporary,  // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := channel.QueueBind(q.Name, RoutingPattern, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack (we want manual ack)
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming expense events",
		"queue", q.Name,
		"exchange", c.exchangeName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			dispatch(ctx, delivery.Body, delivery, handler)
		}
	}
}

// dispatch decodes body and runs handler. Undecodable messages are dropped; handler
// failures are requeued.
func dispatch(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	ev, err := ExpenseEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode expense event", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to handle expense event",
			"event", ev.Type,
			"expense_id", ev.ID,
			"error", err)
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
	slog.DebugContext(ctx, "Handled expense event", "event", ev.Type, "expense_id", ev.ID)
}
