package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/subcommands"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/worker"
)

type expenseService interface {
	List(ctx context.Context, f core.Filter) ([]core.Expense, error)
	Dashboard(ctx context.Context) (core.Summary, error)
	Get(ctx context.Context, id core.ID) (core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id core.ID) error
}

// app carries what every subcommand needs. open is called once per command run; events
// selects whether mutations publish expense events. consume blocks delivering expense
// events to the handler until ctx is done.
type app struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	open    func(events bool) (expenseService, func(), error)
	consume func(ctx context.Context, queue string, handler amqp.Handler) error
}

func (a *app) register(c *subcommands.Commander) {
	c.Register(&listCmd{app: a}, "expenses")
	c.Register(&summaryCmd{app: a}, "expenses")
	c.Register(&addCmd{app: a}, "expenses")
	c.Register(&deleteCmd{app: a}, "expenses")
	c.Register(&watchCmd{app: a}, "events")
}

// run opens the service, runs fn and reports its error on stderr.
func (a *app) run(ctx context.Context, fn func(context.Context, expenseService) error) subcommands.ExitStatus {
	return a.runWith(ctx, true, fn)
}

func (a *app) runWith(ctx context.Context, events bool, fn func(context.Context, expenseService) error) subcommands.ExitStatus {
	svc, closeFn, err := a.open(events)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if err := fn(ctx, svc); err != nil {
		fmt.Fprintln(a.errOut, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type listCmd struct {
	app      *app
	category string
	start    string
	end      string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list expenses, optionally filtered by category and date range" }
func (*listCmd) Usage() string {
	return `expensectl list [-category <category>] [-start <YYYY-MM-DD> -end <YYYY-MM-DD>]

  Lists expenses. A date range is only applied when both -start and -end are given.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "", "Only list expenses of this category.")
	f.StringVar(&c.start, "start", "", "First day of the date range (inclusive).")
	f.StringVar(&c.end, "end", "", "Last day of the date range (inclusive).")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := core.Filter{Category: core.Category(strings.TrimSpace(c.category))}
	for _, d := range []struct {
		flag, value string
		dst         *core.Date
	}{{"start", c.start, &filter.Start}, {"end", c.end, &filter.End}} {
		if d.value == "" {
			continue
		}
		parsed, err := core.ParseDate(d.value)
		if err != nil {
			fmt.Fprintf(c.app.errOut, "Error parsing -%s: %v\n", d.flag, err)
			return subcommands.ExitUsageError
		}
		*d.dst = parsed
	}

	return c.app.run(ctx, func(ctx context.Context, svc expenseService) error {
		items, err := svc.List(ctx, filter)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(c.app.out, "No expenses found.")
			return nil
		}
		return writeExpenses(c.app.out, items)
	})
}

type summaryCmd struct {
	app *app
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show totals, category and month breakdowns and recent expenses" }
func (*summaryCmd) Usage() string {
	return `expensectl summary

  Prints the same figures as the dashboard page.
`
}

func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(ctx context.Context, svc expenseService) error {
		s, err := svc.Dashboard(ctx)
		if err != nil {
			return err
		}
		return writeSummary(c.app.out, s)
	})
}

type addCmd struct {
	app         *app
	description string
	amount      string
	category    string
	date        string
	notes       string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new expense" }
func (*addCmd) Usage() string {
	return `expensectl add -description <text> -amount <amount> -category <category> [-date <YYYY-MM-DD>] [-notes <text>]

  Validates the expense with the same rules as the add page, then creates it.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "description", "", "What the money was spent on (3-255 characters).")
	f.StringVar(&c.amount, "amount", "", "Positive amount, e.g. 12.50.")
	f.StringVar(&c.category, "category", "", "One of: "+categoryList()+".")
	f.StringVar(&c.date, "date", "", "Day of the expense (defaults to today).")
	f.StringVar(&c.notes, "notes", "", "Optional notes (up to 500 characters).")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	draft := core.Draft{
		Description: strings.TrimSpace(c.description),
		Amount:      c.amount,
		Category:    c.category,
		Date:        c.date,
		Notes:       c.notes,
	}
	if strings.TrimSpace(draft.Date) == "" {
		draft.Date = core.Today().String()
	}

	e, errs := core.ValidateDraft(draft)
	// The web form restricts categories with a select; here the flag is free text.
	if !errs.Has(core.FieldCategory) && !core.Category(strings.TrimSpace(draft.Category)).Known() {
		if errs == nil {
			errs = core.FieldErrors{}
		}
		errs[core.FieldCategory] = "Category must be one of: " + categoryList()
	}
	if len(errs) > 0 {
		writeFieldErrors(c.app.errOut, errs)
		return subcommands.ExitUsageError
	}

	return c.app.run(ctx, func(ctx context.Context, svc expenseService) error {
		created, err := svc.Create(ctx, e)
		if err != nil {
			return fmt.Errorf("failed to add expense: %w", err)
		}
		fmt.Fprintf(c.app.out, "Added expense %s: %s %s (%s, %s)\n",
			created.ID, created.Description, core.FormatAmount(created.Amount), created.Category, created.Date)
		return nil
	})
}

type deleteCmd struct {
	app *app
	yes bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an expense after confirmation" }
func (*deleteCmd) Usage() string {
	return `expensectl delete [-y] <id>

  Asks for confirmation before deleting unless -y is given. Declining leaves the
  expense untouched.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "Delete without asking for confirmation.")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.app.errOut, c.Usage())
		return subcommands.ExitUsageError
	}
	id := core.ID(strings.TrimSpace(f.Arg(0)))

	return c.app.run(ctx, func(ctx context.Context, svc expenseService) error {
		if !c.yes {
			label := "#" + id.String()
			if e, err := svc.Get(ctx, id); err == nil {
				label = fmt.Sprintf("%q (%s)", e.Description, core.FormatAmount(e.Amount))
			}
			fmt.Fprintf(c.app.out, "Delete expense %s? [y/N]: ", label)
			if !confirmed(c.app.in) {
				return nil
			}
		}
		if err := svc.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		fmt.Fprintf(c.app.out, "Deleted expense %s\n", id)
		return nil
	})
}

type watchCmd struct {
	app   *app
	queue string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "print expense changes as they are published" }
func (*watchCmd) Usage() string {
	return `expensectl watch [-queue <name>]

  Follows the expense events exchange and prints one line per change until
  interrupted. Without -queue a temporary queue is used, so events published
  while nothing is watching are not seen.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.queue, "queue", "", "Durable queue to consume from.")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// Watching only reads, so no publisher connection is opened.
	return c.app.runWith(ctx, false, func(ctx context.Context, svc expenseService) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		activity := worker.NewActivityLog(svc, c.app.out)
		err := c.app.consume(ctx, strings.TrimSpace(c.queue), activity.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func confirmed(in io.Reader) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func writeExpenses(w io.Writer, items []core.Expense) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION\tNOTES")
	for _, e := range items {
		notes := e.Notes
		if strings.TrimSpace(notes) == "" {
			notes = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Category, core.FormatAmount(e.Amount), e.Description, notes)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, s core.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total:\t%s\n", core.FormatAmount(s.Total))
	fmt.Fprintf(tw, "Expenses:\t%d\n", s.Count)
	fmt.Fprintf(tw, "Average:\t%s\n", core.FormatAmount(s.Average))

	fmt.Fprintln(tw, "\nBy category:\t")
	if len(s.ByCategory) == 0 {
		fmt.Fprintln(tw, "  No data available\t")
	}
	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, core.FormatAmount(c.Amount))
	}

	fmt.Fprintln(tw, "\nBy month:\t")
	for _, m := range s.ByMonth {
		fmt.Fprintf(tw, "  %s\t%s\n", m.Label, core.FormatAmount(m.Amount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRecent:")
	if len(s.Recent) == 0 {
		fmt.Fprintln(w, "  No expenses recorded yet")
		return nil
	}
	return writeExpenses(w, s.Recent)
}

func writeFieldErrors(w io.Writer, errs core.FieldErrors) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "%s: %s\n", f, errs[f])
	}
}

func categoryList() string {
	cats := core.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
