package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

func sample(desc string, cat core.Category, day int) core.Expense {
	return core.Expense{
		Description: desc,
		Amount:      decimal.RequireFromString("12.50"),
		Category:    cat,
		Date:        core.NewDate(2024, 1, day),
	}
}

func TestStoreCreateAssignsFreshIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Create(ctx, sample("Lunch", core.Food, 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := s.Create(ctx, sample("Bus", core.Transportation, 2))
	if a.ID != "1" || b.ID != "2" {
		t.Fatalf("unexpected ids %s %s", a.ID, b.ID)
	}
	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c, _ := s.Create(ctx, sample("Cinema", core.Entertainment, 3))
	if c.ID != "3" {
		t.Fatalf("ids must not be reused, got %s", c.ID)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := New()
	bad := sample("Lunch", core.Food, 1)
	bad.Amount = decimal.Zero
	if _, err := s.Create(context.Background(), bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("invalid record stored")
	}
}

func TestStoreUpdateAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, _ := s.Create(ctx, sample("Lunch", core.Food, 1))

	changed := sample("Dinner", core.Food, 4)
	changed.Notes = "with friends"
	got, err := s.Update(ctx, created.ID, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ID != created.ID || got.Description != "Dinner" || got.Notes != "with friends" {
		t.Fatalf("unexpected update result %+v", got)
	}
	fetched, _ := s.Get(ctx, created.ID)
	if fetched.Description != "Dinner" {
		t.Fatalf("update not persisted")
	}

	if _, err := s.Get(ctx, "99"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := s.Update(ctx, "99", changed); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := s.Delete(ctx, "99"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestStoreListings(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, e := range []core.Expense{
		sample("Lunch", core.Food, 1),
		sample("Bus", core.Transportation, 10),
		sample("Groceries", core.Food, 20),
		sample("Flight", core.Travel, 31),
	} {
		if _, err := s.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.List(ctx)
	if len(all) != 4 {
		t.Fatalf("list: %d", len(all))
	}
	food, _ := s.ListByCategory(ctx, core.Food)
	if len(food) != 2 {
		t.Fatalf("by category: %d", len(food))
	}
	// Bounds are inclusive.
	ranged, _ := s.ListByDateRange(ctx, core.NewDate(2024, 1, 10), core.NewDate(2024, 1, 20))
	if len(ranged) != 2 {
		t.Fatalf("by range: %d", len(ranged))
	}
	both, _ := s.ListByCategoryAndDateRange(ctx, core.Food, core.NewDate(2024, 1, 2), core.NewDate(2024, 1, 31))
	if len(both) != 1 || both[0].Description != "Groceries" {
		t.Fatalf("by category and range: %+v", both)
	}

	// Results are copies.
	all[0].Description = "mutated"
	again, _ := s.List(ctx)
	if again[0].Description != "Lunch" {
		t.Fatalf("listing leaked internal state")
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	seed := `[
		{"id": 40, "description": "Coffee", "amount": 3.5, "category": "Food", "date": "2024-02-01"},
		{"description": "Rent", "amount": "900.00", "category": "Housing", "date": "2024-02-01T00:00:00", "notes": null}
	]`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	items, _ := s.List(context.Background())
	if len(items) != 2 || items[0].ID != "1" || items[1].ID != "2" {
		t.Fatalf("unexpected seed result: %+v", items)
	}
	if !items[1].Amount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("amount = %s", items[1].Amount)
	}

	if s, err := NewFromFile(""); err != nil || s.Len() != 0 {
		t.Fatalf("empty path should give an empty store")
	}
	if _, err := NewFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
