package tracker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/model"
)

func TestReopenPreservesPurchases(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "grocery.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tr, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	qty := decimal.NewFromInt(12)
	inputs := []model.NewPurchase{
		{ItemName: "Milk", Price: decimal.RequireFromString("3.99"), PurchaseDate: &d},
		{ItemName: "Eggs", Price: decimal.RequireFromString("4.99"), Quantity: &qty, Unit: "count", Store: "Target", PurchaseDate: &d},
		{ItemName: "Bread", Price: decimal.RequireFromString("2.49"), PurchaseDate: &d},
	}
	for _, in := range inputs {
		if _, err := tr.Purchases.Add(ctx, in); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	before, err := tr.Purchases.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	tr, err = Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tr.Close()

	after, err := tr.Purchases.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all after reopen: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected %d purchases after reopen, got %d", len(before), len(after))
	}

	byID := make(map[int64]model.Purchase, len(before))
	for _, p := range before {
		byID[p.ID] = p
	}
	for _, p := range after {
		want, ok := byID[p.ID]
		if !ok {
			t.Errorf("unexpected purchase id %d after reopen", p.ID)
			continue
		}
		if p.ItemName != want.ItemName || !p.Price.Equal(want.Price) || p.Store != want.Store ||
			p.Unit != want.Unit || p.Date() != want.Date() {
			t.Errorf("purchase %d changed: got %+v, want %+v", p.ID, p, want)
		}
		if (p.Quantity == nil) != (want.Quantity == nil) {
			t.Errorf("purchase %d quantity presence changed", p.ID)
		}
	}

	// Ids keep increasing across restarts.
	id, err := tr.Purchases.Add(ctx, model.NewPurchase{ItemName: "Milk", Price: decimal.NewFromInt(4)})
	if err != nil {
		t.Fatalf("add after reopen: %v", err)
	}
	for _, p := range before {
		if id <= p.ID {
			t.Errorf("new id %d not greater than existing id %d", id, p.ID)
		}
	}
}

func TestSummaryWiredToStore(t *testing.T) {
	tr, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()
	ctx := context.Background()

	for _, name := range []string{"Milk", "MILK"} {
		if _, err := tr.Purchases.Add(ctx, model.NewPurchase{ItemName: name, Price: decimal.NewFromInt(3)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	summaries, err := tr.Summary.PriceSummary(ctx)
	if err != nil {
		t.Fatalf("price summary: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 case-sensitive groups, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.PurchaseCount != 1 {
			t.Errorf("%s purchase_count = %d, want 1", s.ItemName, s.PurchaseCount)
		}
	}

	history, err := tr.Summary.ItemHistory(ctx, "milk")
	if err != nil {
		t.Fatalf("item history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(history))
	}
}
