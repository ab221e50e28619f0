package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/repository"
	"sphincs.io/sphincs/internal/testutil"
)

func TestDemoFixture_Loads(t *testing.T) {
	t.Parallel()

	fx, err := loadFixture("")
	if err != nil {
		t.Fatalf("loadFixture(embedded) error = %v", err)
	}
	if len(fx.Inventory) != 3 || len(fx.Batches) != 3 || len(fx.Orders) != 3 {
		t.Fatalf("demo fixture counts = inventory %d, batches %d, orders %d; want 3 each",
			len(fx.Inventory), len(fx.Batches), len(fx.Orders))
	}
}

func TestLoadFixture_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	doc := "inventory:\n  - name: Sugar\n    quantity: 1\n    reorder_level: 5\n    unit: kg\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fx, err := loadFixture(path)
	if err != nil {
		t.Fatalf("loadFixture(%s) error = %v", path, err)
	}
	if len(fx.Inventory) != 1 || fx.Inventory[0].Name != "Sugar" {
		t.Fatalf("inventory = %+v, want one Sugar item", fx.Inventory)
	}

	if _, err := loadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("loadFixture(missing) error = nil, want error")
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "malformed yaml", doc: "inventory: [", want: "parse fixture"},
		{name: "unnamed item", doc: "inventory:\n  - quantity: 1\n", want: "inventory[0]: name is required"},
		{name: "unknown maintenance status", doc: "maintenance:\n  - title: x\n    status: later\n", want: `maintenance[0]: unknown status "later"`},
		{name: "unknown incident severity", doc: "incidents:\n  - title: x\n    status: open\n    severity: huge\n", want: `incidents[0]: unknown severity "huge"`},
		{name: "order without number", doc: "orders:\n  - status: pending\n", want: "orders[0]: number is required"},
		{name: "negative alert window", doc: "batches:\n  - item: Cream\n    alert_days_before: -1\n", want: "alert_days_before must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseFixture([]byte(tt.doc))
			if err == nil {
				t.Fatalf("parseFixture error = nil, want %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("parseFixture error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

type recordedHooks struct {
	stock  []domain.StockLevel
	orders []int64
}

func (h *recordedHooks) OnStockAdjusted(_ context.Context, item domain.StockLevel) {
	h.stock = append(h.stock, item)
}

func (h *recordedHooks) OnOrderCreated(_ context.Context, orderID int64, _ string, _ float64) {
	h.orders = append(h.orders, orderID)
}

func TestApply_WritesRecordsAndFiresTriggers(t *testing.T) {
	t.Parallel()

	fx, err := loadFixture("")
	if err != nil {
		t.Fatalf("loadFixture error = %v", err)
	}

	db := testutil.OpenSQLite(t)
	repo := repository.NewConditionRepository(db)
	hooks := &recordedHooks{}
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	sum, err := fx.apply(context.Background(), repo, hooks, now)
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	want := seedSummary{Items: 3, Batches: 3, Tasks: 2, Audits: 1, Incidents: 2, Orders: 3}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}

	if len(hooks.stock) != 3 || len(hooks.orders) != 3 {
		t.Fatalf("hooks fired stock=%d orders=%d, want 3 each", len(hooks.stock), len(hooks.orders))
	}
	for _, item := range hooks.stock {
		if item.ItemID <= 0 {
			t.Fatalf("stock hook got item %+v without id", item)
		}
	}

	low, err := repo.LowStock(context.Background())
	if err != nil {
		t.Fatalf("LowStock error = %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("LowStock = %d items, want 2", len(low))
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("SEED_TEST_KEY", "")
	if got := envOrDefault("SEED_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("envOrDefault empty = %q, want fallback", got)
	}

	t.Setenv("SEED_TEST_KEY", "  configured  ")
	if got := envOrDefault("SEED_TEST_KEY", "fallback"); got != "configured" {
		t.Fatalf("envOrDefault value = %q, want configured", got)
	}
}
