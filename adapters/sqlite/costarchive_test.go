package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/costgate/adapters/sqlite"
	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/money"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "costgate-test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestCostArchive_RecordBatch(t *testing.T) {
	archive := sqlite.NewCostArchive(openTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	records := []cost.Record{
		{ID: "r1", UserID: "u1", Service: "tts", Amount: money.MustParse("0.02"), CreatedAt: now},
		{ID: "r2", UserID: "u1", Service: "tts", Amount: money.MustParse("0.015"), CreatedAt: now},
		{ID: "r3", UserID: "u1", Service: "llm", Amount: money.MustParse("0.30"), CreatedAt: now},
		{ID: "r4", UserID: "u2", Service: "tts", Amount: money.MustParse("0.10"), CreatedAt: now},
	}

	if err := archive.RecordBatch(ctx, records); err != nil {
		t.Fatalf("RecordBatch failed: %v", err)
	}

	totals, err := archive.ServiceTotals(ctx, "u1")
	if err != nil {
		t.Fatalf("ServiceTotals failed: %v", err)
	}
	if totals["tts"] != money.MustParse("0.035") {
		t.Errorf("tts total = %s, want 0.035", totals["tts"])
	}
	if totals["llm"] != money.MustParse("0.30") {
		t.Errorf("llm total = %s, want 0.30", totals["llm"])
	}
}

func TestCostArchive_RecordBatch_Empty(t *testing.T) {
	archive := sqlite.NewCostArchive(openTestDB(t))

	if err := archive.RecordBatch(context.Background(), nil); err != nil {
		t.Fatalf("RecordBatch with no records failed: %v", err)
	}
}

func TestCostArchive_GlobalTotal(t *testing.T) {
	archive := sqlite.NewCostArchive(openTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	archive.RecordBatch(ctx, []cost.Record{
		{ID: "r1", UserID: "u1", Service: "tts", Amount: money.MustParse("0.02"), CreatedAt: old},
		{ID: "r2", UserID: "u2", Service: "llm", Amount: money.MustParse("0.30"), CreatedAt: now},
	})

	total, err := archive.GlobalTotal(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GlobalTotal failed: %v", err)
	}
	if total != money.MustParse("0.30") {
		t.Errorf("GlobalTotal = %s, want 0.30 (old record excluded)", total)
	}

	all, _ := archive.GlobalTotal(ctx, time.Time{})
	if all != money.MustParse("0.32") {
		t.Errorf("GlobalTotal since zero = %s, want 0.32", all)
	}
}

func TestCostArchive_RecentRecords(t *testing.T) {
	archive := sqlite.NewCostArchive(openTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	var records []cost.Record
	for i := 0; i < 5; i++ {
		records = append(records, cost.Record{
			ID:        "r" + string(rune('a'+i)),
			UserID:    "u1",
			Service:   "tts",
			Amount:    money.MustParse("0.01"),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	archive.RecordBatch(ctx, records)

	recent, err := archive.RecentRecords(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("RecentRecords failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d records, want 3", len(recent))
	}
	if recent[0].ID != "re" {
		t.Errorf("newest record = %s, want re", recent[0].ID)
	}

	none, err := archive.RecentRecords(ctx, "unknown", 3)
	if err != nil {
		t.Fatalf("RecentRecords for unknown user failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d records for unknown user, want 0", len(none))
	}
}
